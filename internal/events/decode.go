package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"
)

// Decode turns an envelope into a typed event. Unknown types and malformed
// payloads are reported as errors; callers drop them.
func Decode(env Envelope) (Event, error) {
	switch env.EventType {
	case EventTypeMessageCreated, EventTypeReplyCreated:
		var p MessagePayload
		if err := unmarshal(env, &p); err != nil {
			return nil, err
		}
		if p.ID == "" || p.ConversationID == "" {
			return nil, fmt.Errorf("%s: missing message or conversation id: %w", env.EventType, chat_errors.ErrInvalidInput)
		}
		return MessageCreated{Type: env.EventType, Message: p}, nil
	case EventTypeMessageForwarded:
		return decodeInto[MessageForwarded](env)
	case EventTypeStatusUpdated:
		var e StatusUpdated
		if err := unmarshal(env, &e); err != nil {
			return nil, err
		}
		if !e.Status.Valid() {
			return nil, fmt.Errorf("%s: status %q: %w", env.EventType, e.Status, chat_errors.ErrInvalidInput)
		}
		return e, nil
	case EventTypeReactionUpdated:
		return decodeInto[ReactionUpdated](env)
	case EventTypeMessageRecalled:
		var e MessageRecalled
		if err := unmarshal(env, &e); err != nil {
			return nil, err
		}
		if e.Scope == "" {
			e.Scope = message.RecallEveryone
		}
		return e, nil
	case EventTypeMessagePinned, EventTypeMessageUnpinned:
		var e MessagePinned
		if err := unmarshal(env, &e); err != nil {
			return nil, err
		}
		e.Pinned = env.EventType == EventTypeMessagePinned
		return e, nil
	case EventTypeMessageEdited:
		return decodeInto[MessageEdited](env)
	case EventTypeGroupCreated:
		return decodeInto[GroupCreated](env)
	case EventTypeParticipantsAdded, EventTypeParticipantsRemoved, EventTypeGroupLeft:
		var e ParticipantsChanged
		if err := unmarshal(env, &e); err != nil {
			return nil, err
		}
		e.Type = env.EventType
		return e, nil
	case EventTypeGroupInfoEdited:
		return decodeInto[GroupInfoEdited](env)
	}

	if strings.HasSuffix(env.EventType, ErrorSuffix) {
		var e CommandError
		if err := unmarshal(env, &e); err != nil {
			return nil, err
		}
		e.CommandType = strings.TrimSuffix(env.EventType, ErrorSuffix)
		return e, nil
	}
	return nil, fmt.Errorf("%q: %w", env.EventType, chat_errors.ErrUnknownEvent)
}

func unmarshal(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload: %w", env.EventType, chat_errors.ErrInvalidInput)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: %v: %w", env.EventType, err, chat_errors.ErrInvalidInput)
	}
	return nil
}

func decodeInto[T Event](env Envelope) (Event, error) {
	var e T
	if err := unmarshal(env, &e); err != nil {
		return nil, err
	}
	return e, nil
}
