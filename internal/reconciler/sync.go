package reconciler

import (
	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
)

// MergeHistory folds a fetched page of history into the store. Messages are
// deduplicated by id, pending placeholders are kept or matched to their
// echo, and nothing here counts as unread.
func (r *Reconciler) MergeHistory(conversationID string, history []*message.Message) bool {
	if r.store.Conversation(conversationID) == nil {
		r.drop("history", conversationID)
		return false
	}
	changed := false
	for _, m := range history {
		if m == nil || m.ConversationID != conversationID {
			continue
		}
		if next, ok := message.StatusSent.Advance(m.Status); ok {
			m.Status = next
		} else {
			m.Status = message.StatusSent
		}
		c, _ := r.message(m, false)
		changed = changed || c
	}
	return changed
}

// ReplaceConversations applies an authoritative conversation list. Unread
// counts come from the server; messages already held locally are kept, and
// conversations missing from the list are removed.
func (r *Reconciler) ReplaceConversations(list []*conversation.Conversation) Outcome {
	var out Outcome
	seen := make(map[string]struct{}, len(list))
	for _, incoming := range list {
		if incoming == nil || incoming.ID == "" {
			continue
		}
		seen[incoming.ID] = struct{}{}
		cur := r.store.Conversation(incoming.ID)
		if cur == nil {
			c := incoming.Clone()
			c.LastMessage = nil
			r.store.PutConversation(c)
			r.agg.Refresh(c.ID)
			out.Changed = true
			continue
		}
		participants := conversation.NormalizeParticipants(incoming.Participants)
		unread := incoming.UnreadCount
		if r.store.OpenID() == incoming.ID {
			unread = 0
		}
		if r.store.UpdateConversation(incoming.ID, func(c *conversation.Conversation) bool {
			changed := false
			if c.DisplayName != incoming.DisplayName {
				c.DisplayName = incoming.DisplayName
				changed = true
			}
			if c.Kind != incoming.Kind && incoming.Kind != "" {
				c.Kind = incoming.Kind
				changed = true
			}
			if !conversation.SameParticipants(c.Participants, participants) {
				c.Participants = participants
				changed = true
			}
			if c.UnreadCount != unread {
				c.UnreadCount = unread
				changed = true
			}
			if incoming.LastActivityAt.After(c.LastActivityAt) {
				c.LastActivityAt = incoming.LastActivityAt
				changed = true
			}
			return changed
		}) {
			out.Changed = true
		}
		if r.agg.Refresh(incoming.ID) {
			out.Changed = true
		}
	}

	open := r.store.OpenID()
	for _, id := range r.store.ConversationIDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		r.store.RemoveConversation(id)
		out.Changed = true
		if id == open {
			out.ClearSelection = true
		}
	}
	return out
}
