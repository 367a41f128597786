package commands

import (
	"fmt"
	"strings"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"
)

func invalid(field string) error {
	return fmt.Errorf("%s is required: %w", field, chat_errors.ErrInvalidInput)
}

// SendMessageCommand covers message.send and, when ReplyToMessageID is set, message.reply.
type SendMessageCommand struct {
	RequestID        string         `json:"-"`
	ConversationID   string         `json:"conversation_id"`
	ClientMessageID  string         `json:"client_message_id"`
	Content          string         `json:"content"`
	Type             message.Type   `json:"type"`
	ReplyToMessageID string         `json:"reply_to_message_id,omitempty"`
	Media            *message.Media `json:"media,omitempty"`
}

func (c SendMessageCommand) CommandType() string {
	if c.ReplyToMessageID != "" {
		return TypeSendReply
	}
	return TypeSendMessage
}

func (c SendMessageCommand) Validate() error {
	if c.ConversationID == "" {
		return invalid("conversation_id")
	}
	if strings.TrimSpace(c.Content) == "" && c.Media == nil {
		return invalid("content")
	}
	return nil
}

func (c SendMessageCommand) IdempotencyKey() string { return c.RequestID }

// ReactCommand covers reaction.add and reaction.remove.
type ReactCommand struct {
	RequestID      string `json:"-"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Emoji          string `json:"emoji"`
	Remove         bool   `json:"-"`
}

func (c ReactCommand) CommandType() string {
	if c.Remove {
		return TypeRemoveReaction
	}
	return TypeReact
}

func (c ReactCommand) Validate() error {
	if c.MessageID == "" {
		return invalid("message_id")
	}
	if c.Emoji == "" {
		return invalid("emoji")
	}
	return nil
}

func (c ReactCommand) IdempotencyKey() string { return c.RequestID }

type RecallCommand struct {
	RequestID      string              `json:"-"`
	ConversationID string              `json:"conversation_id"`
	MessageID      string              `json:"message_id"`
	Scope          message.RecallScope `json:"scope"`
}

func (RecallCommand) CommandType() string { return TypeRecall }

func (c RecallCommand) Validate() error {
	if c.MessageID == "" {
		return invalid("message_id")
	}
	if !c.Scope.Valid() {
		return invalid("scope")
	}
	return nil
}

func (c RecallCommand) IdempotencyKey() string { return c.RequestID }

type PinCommand struct {
	RequestID      string `json:"-"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Pinned         bool   `json:"pinned"`
}

func (PinCommand) CommandType() string { return TypePin }

func (c PinCommand) Validate() error {
	if c.MessageID == "" {
		return invalid("message_id")
	}
	return nil
}

func (c PinCommand) IdempotencyKey() string { return c.RequestID }

type EditMessageCommand struct {
	RequestID      string `json:"-"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
}

func (EditMessageCommand) CommandType() string { return TypeEditMessage }

func (c EditMessageCommand) Validate() error {
	if c.MessageID == "" {
		return invalid("message_id")
	}
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content")
	}
	return nil
}

func (c EditMessageCommand) IdempotencyKey() string { return c.RequestID }

// ForwardMessageCommand forwards one message into several conversations.
// ClientMessageIDs maps each target conversation to its placeholder's client id.
type ForwardMessageCommand struct {
	RequestID             string            `json:"-"`
	MessageID             string            `json:"message_id"`
	TargetConversationIDs []string          `json:"target_conversation_ids"`
	ClientMessageIDs      map[string]string `json:"client_message_ids,omitempty"`
}

func (ForwardMessageCommand) CommandType() string { return TypeForwardMessage }

func (c ForwardMessageCommand) Validate() error {
	if c.MessageID == "" {
		return invalid("message_id")
	}
	if len(c.TargetConversationIDs) == 0 {
		return invalid("target_conversation_ids")
	}
	return nil
}

func (c ForwardMessageCommand) IdempotencyKey() string { return c.RequestID }
