// Package aggregator keeps each conversation's derived fields in step with
// its messages: last message, last activity and unread count.
package aggregator

import (
	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/reaction"
	"chat-sync/internal/store"
)

type Aggregator struct {
	store *store.Store
}

func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Refresh recomputes LastMessage and LastActivityAt from the store.
// Activity never moves backwards, so a rolled back placeholder does not
// push a conversation down the list.
func (a *Aggregator) Refresh(conversationID string) bool {
	latest := a.store.LatestMessage(conversationID)
	return a.store.UpdateConversation(conversationID, func(c *conversation.Conversation) bool {
		changed := false
		if !sameMessage(c.LastMessage, latest) {
			c.LastMessage = latest.Clone()
			changed = true
		}
		if latest != nil && latest.CreatedAt.After(c.LastActivityAt) {
			c.LastActivityAt = latest.CreatedAt
			changed = true
		}
		return changed
	})
}

// CountNew applies the unread rule to a message that was not in the store
// before. It reports whether the counter moved.
func (a *Aggregator) CountNew(m *message.Message) bool {
	if !a.qualifies(m) {
		return false
	}
	return a.store.UpdateConversation(m.ConversationID, func(c *conversation.Conversation) bool {
		c.UnreadCount++
		return true
	})
}

func (a *Aggregator) qualifies(m *message.Message) bool {
	if m == nil || m.IsPending() {
		return false
	}
	if m.ConversationID == a.store.OpenID() {
		return false
	}
	if m.Type.IsSystem() && m.SenderID == a.store.Self() {
		return false
	}
	return true
}

// MarkRead resets the unread counter of a conversation.
func (a *Aggregator) MarkRead(conversationID string) bool {
	return a.store.UpdateConversation(conversationID, func(c *conversation.Conversation) bool {
		if c.UnreadCount == 0 {
			return false
		}
		c.UnreadCount = 0
		return true
	})
}

func sameMessage(a, b *message.Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID &&
		a.Status == b.Status &&
		a.Content == b.Content &&
		a.Recalled == b.Recalled &&
		a.Edited == b.Edited &&
		a.Pinned == b.Pinned &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		reaction.Equal(a.Reactions, b.Reactions)
}
