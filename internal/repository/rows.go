package repository

import (
	"encoding/json"
	"time"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/reaction"
)

// messageColumns must stay in step with messageRow.dest.
const messageColumns = `
	m.id::text,
	COALESCE(m.client_message_id, ''),
	m.conversation_id::text,
	m.sender_id::text,
	COALESCE(m.content, ''),
	m.created_at,
	m.type,
	m.is_forwarded,
	COALESCE(m.reply_to_msg_id::text, ''),
	m.edited_at IS NOT NULL,
	m.deleted_at IS NOT NULL,
	COALESCE((m.metadata::jsonb ->> 'pinned')::boolean, false),
	m.metadata::jsonb -> 'media',
	COALESCE((
		SELECT CASE
			WHEN bool_and(r.read_at IS NOT NULL) THEN 'SEEN'
			WHEN bool_and(r.delivered_at IS NOT NULL) THEN 'DELIVERED'
		END
		FROM message_receipts r
		WHERE r.message_id = m.id AND r.user_id <> m.sender_id
	), 'SENT')`

type messageRow struct {
	ID              string
	ClientMessageID string
	ConversationID  string
	SenderID        string
	Content         string
	CreatedAt       time.Time
	Type            string
	Forwarded       bool
	ReplyTo         string
	Edited          bool
	Deleted         bool
	Pinned          bool
	Media           []byte
	Status          string
}

func (r *messageRow) dest() []any {
	return []any{
		&r.ID, &r.ClientMessageID, &r.ConversationID, &r.SenderID, &r.Content,
		&r.CreatedAt, &r.Type, &r.Forwarded, &r.ReplyTo, &r.Edited, &r.Deleted,
		&r.Pinned, &r.Media, &r.Status,
	}
}

func (r *messageRow) toMessage() *message.Message {
	m := &message.Message{
		ID:               r.ID,
		ClientMessageID:  r.ClientMessageID,
		ConversationID:   r.ConversationID,
		SenderID:         r.SenderID,
		Content:          r.Content,
		CreatedAt:        r.CreatedAt.UTC(),
		Type:             messageType(r.Type, r.ReplyTo),
		Status:           message.Status(r.Status),
		Pinned:           r.Pinned,
		ReplyToMessageID: r.ReplyTo,
		Edited:           r.Edited,
		Forwarded:        r.Forwarded,
	}
	if !m.Status.Valid() || m.Status == message.StatusPending {
		m.Status = message.StatusSent
	}
	if r.Deleted {
		m.Recalled = message.RecallEveryone
		m.Content = ""
	}
	if len(r.Media) > 0 && string(r.Media) != "null" {
		var media message.Media
		if err := json.Unmarshal(r.Media, &media); err == nil {
			m.Media = &media
		}
	}
	return m
}

// messageType maps stored type names onto the local kinds.
func messageType(stored, replyTo string) message.Type {
	switch message.Type(stored) {
	case message.TypeMedia, message.TypeSystem, message.TypeSystemReaction, message.TypeSystemMembership:
		return message.Type(stored)
	case "IMAGE", "VIDEO", "AUDIO", "FILE":
		return message.TypeMedia
	}
	if replyTo != "" {
		return message.TypeReply
	}
	return message.TypeText
}

type reactionRow struct {
	MessageID string
	Emoji     string
	UserID    string
}

// attachReactions folds rows, in creation order, into the messages they
// belong to.
func attachReactions(msgs []*message.Message, rows []reactionRow, self string) {
	byID := make(map[string]*message.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	for _, row := range rows {
		m, ok := byID[row.MessageID]
		if !ok {
			continue
		}
		m.Reactions, _ = reaction.Add(m.Reactions, row.Emoji, row.UserID, self)
	}
}

type conversationRow struct {
	ID             string
	Kind           string
	Subject        string
	PeerName       string
	Participants   []string
	Unread         int
	LastActivityAt time.Time
}

func (r *conversationRow) toConversation() *conversation.Conversation {
	kind := conversation.KindGroup
	if r.Kind == string(conversation.KindDirect) {
		kind = conversation.KindDirect
	}
	name := r.Subject
	if name == "" {
		name = r.PeerName
	}
	return &conversation.Conversation{
		ID:             r.ID,
		DisplayName:    name,
		Kind:           kind,
		Participants:   conversation.NormalizeParticipants(r.Participants),
		UnreadCount:    r.Unread,
		LastActivityAt: r.LastActivityAt.UTC(),
	}
}
