package store

import (
	"time"

	"chat-sync/internal/domain/message"
)

// EchoQuery describes an authoritative message looking for its local placeholder.
type EchoQuery struct {
	ConversationID  string
	SenderID        string
	ClientMessageID string
	Content         string
	CreatedAt       time.Time
	Tolerance       time.Duration
}

// FindPendingEcho returns the placeholder an authoritative message confirms.
//
// When the server echoes a client message id only an exact match counts.
// Otherwise the oldest pending message from the same sender with identical
// content and a createdAt within Tolerance wins. Two identical sends inside
// the window are paired in send order, which is only correct while the
// server preserves that order.
func (s *Store) FindPendingEcho(q EchoQuery) *message.Message {
	list := s.messages[q.ConversationID]
	if q.ClientMessageID != "" {
		for _, m := range list {
			if m.IsPending() && m.ClientMessageID == q.ClientMessageID {
				return m
			}
		}
		return nil
	}
	for _, m := range list {
		if !m.IsPending() || m.SenderID != q.SenderID || m.Content != q.Content {
			continue
		}
		if absDuration(m.CreatedAt.Sub(q.CreatedAt)) <= q.Tolerance {
			return m
		}
	}
	return nil
}

// PendingMessages returns the ids of all local placeholders in a conversation.
func (s *Store) PendingMessages(conversationID string) []string {
	var ids []string
	for _, m := range s.messages[conversationID] {
		if m.IsPending() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
