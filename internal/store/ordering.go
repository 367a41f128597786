package store

import (
	"sort"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
)

// insertOrdered places m after every message with createdAt <= m.createdAt,
// so equal timestamps keep arrival order.
func insertOrdered(list []*message.Message, m *message.Message) []*message.Message {
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt.After(m.CreatedAt)
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = m
	return list
}

func reorder(list []*message.Message) []*message.Message {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func removeByID(list []*message.Message, id string) []*message.Message {
	for i, m := range list {
		if m.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func sortConversations(list []*conversation.Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		return a.ID < b.ID
	})
}

// IsOrdered reports whether messages are in non-decreasing createdAt order.
func IsOrdered(list []*message.Message) bool {
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			return false
		}
	}
	return true
}
