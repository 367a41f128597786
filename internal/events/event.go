package events

import (
	"time"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
)

// Event is a decoded inbound fact.
type Event interface {
	EventType() string
}

// MessagePayload is the authoritative shape of a message on the wire.
type MessagePayload struct {
	ID               string            `json:"id"`
	ClientMessageID  string            `json:"client_message_id,omitempty"`
	ConversationID   string            `json:"conversation_id"`
	SenderID         string            `json:"sender_id"`
	Content          string            `json:"content"`
	CreatedAt        time.Time         `json:"created_at"`
	Type             message.Type      `json:"type"`
	Status           message.Status    `json:"status,omitempty"`
	ReplyToMessageID string            `json:"reply_to_message_id,omitempty"`
	Reactions        message.Reactions `json:"reactions,omitempty"`
	Pinned           bool              `json:"pinned,omitempty"`
	Edited           bool              `json:"edited,omitempty"`
	Forwarded        bool              `json:"forwarded,omitempty"`
	Media            *message.Media    `json:"media,omitempty"`
}

// ToMessage builds the local entity. Authoritative messages are at least SENT.
func (p MessagePayload) ToMessage() *message.Message {
	status := message.StatusSent
	if next, ok := status.Advance(p.Status); ok {
		status = next
	}
	typ := p.Type
	if typ == "" {
		typ = message.TypeText
	}
	var media *message.Media
	if p.Media != nil {
		m := *p.Media
		media = &m
	}
	return &message.Message{
		ID:               p.ID,
		ClientMessageID:  p.ClientMessageID,
		ConversationID:   p.ConversationID,
		SenderID:         p.SenderID,
		Content:          p.Content,
		CreatedAt:        p.CreatedAt,
		Type:             typ,
		Status:           status,
		Reactions:        p.Reactions.Clone(),
		Pinned:           p.Pinned,
		ReplyToMessageID: p.ReplyToMessageID,
		Edited:           p.Edited,
		Forwarded:        p.Forwarded,
		Media:            media,
	}
}

// ConversationPayload is a conversation snapshot carried by group events.
type ConversationPayload struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"display_name"`
	Kind           conversation.Kind `json:"kind"`
	Participants   []string          `json:"participants"`
	LastActivityAt time.Time         `json:"last_activity_at"`
}

func (p ConversationPayload) ToConversation() *conversation.Conversation {
	kind := p.Kind
	if kind == "" {
		kind = conversation.KindGroup
	}
	return &conversation.Conversation{
		ID:             p.ID,
		DisplayName:    p.DisplayName,
		Kind:           kind,
		Participants:   conversation.NormalizeParticipants(p.Participants),
		LastActivityAt: p.LastActivityAt,
	}
}

// MessageCreated covers message.created and message.reply_created.
type MessageCreated struct {
	Type    string
	Message MessagePayload
}

func (e MessageCreated) EventType() string { return e.Type }

type MessageForwarded struct {
	Messages []MessagePayload `json:"messages"`
}

func (MessageForwarded) EventType() string { return EventTypeMessageForwarded }

type StatusUpdated struct {
	ConversationID string         `json:"conversation_id"`
	MessageIDs     []string       `json:"message_ids"`
	Status         message.Status `json:"status"`
}

func (StatusUpdated) EventType() string { return EventTypeStatusUpdated }

type ReactionUpdated struct {
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	Reactions      message.Reactions `json:"reactions"`
}

func (ReactionUpdated) EventType() string { return EventTypeReactionUpdated }

type MessageRecalled struct {
	ConversationID string              `json:"conversation_id"`
	MessageID      string              `json:"message_id"`
	ActorID        string              `json:"actor_id"`
	Scope          message.RecallScope `json:"scope"`
}

func (MessageRecalled) EventType() string { return EventTypeMessageRecalled }

// MessagePinned covers message.pinned and message.unpinned.
type MessagePinned struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Pinned         bool   `json:"-"`
}

func (e MessagePinned) EventType() string {
	if e.Pinned {
		return EventTypeMessagePinned
	}
	return EventTypeMessageUnpinned
}

type MessageEdited struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
}

func (MessageEdited) EventType() string { return EventTypeMessageEdited }

type GroupCreated struct {
	ActorID      string              `json:"actor_id"`
	Conversation ConversationPayload `json:"conversation"`
}

func (GroupCreated) EventType() string { return EventTypeGroupCreated }

// ParticipantsChanged covers participant.added, participant.removed and participant.left.
type ParticipantsChanged struct {
	Type           string   `json:"-"`
	ConversationID string   `json:"conversation_id"`
	ActorID        string   `json:"actor_id"`
	UserIDs        []string `json:"user_ids"`
}

func (e ParticipantsChanged) EventType() string { return e.Type }

type GroupInfoEdited struct {
	ConversationID string `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
}

func (GroupInfoEdited) EventType() string { return EventTypeGroupInfoEdited }

// CommandError is the rejection paired with a user-initiated command.
type CommandError struct {
	CommandType string   `json:"command_type"`
	RequestID   string   `json:"request_id"`
	Reason      string   `json:"reason"`
	FailedItems []string `json:"failed_items,omitempty"`
}

func (e CommandError) EventType() string { return e.CommandType + ErrorSuffix }
