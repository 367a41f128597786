package conversation

import (
	"sort"
	"time"

	"chat-sync/internal/domain/message"
)

type Kind string

const (
	KindDirect Kind = "DIRECT"
	KindGroup  Kind = "GROUP"
)

// Conversation is the local projection of a conversation the viewing user belongs to.
// UnreadCount, LastMessage and LastActivityAt are maintained by the aggregator.
type Conversation struct {
	ID             string           `json:"id"`
	DisplayName    string           `json:"display_name"`
	Kind           Kind             `json:"kind"`
	Participants   []string         `json:"participants"`
	LastMessage    *message.Message `json:"last_message,omitempty"`
	UnreadCount    int              `json:"unread_count"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.LastMessage = c.LastMessage.Clone()
	return &out
}

func (c *Conversation) HasParticipant(userID string) bool {
	i := sort.SearchStrings(c.Participants, userID)
	return i < len(c.Participants) && c.Participants[i] == userID
}

// NormalizeParticipants returns a sorted copy of ids without duplicates or blanks.
func NormalizeParticipants(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// WithParticipants returns the union of current and added.
func WithParticipants(current, added []string) []string {
	merged := make([]string, 0, len(current)+len(added))
	merged = append(merged, current...)
	merged = append(merged, added...)
	return NormalizeParticipants(merged)
}

// WithoutParticipants returns current minus removed.
func WithoutParticipants(current, removed []string) []string {
	drop := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		drop[id] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, id := range current {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return NormalizeParticipants(out)
}

// SameParticipants reports whether two normalized sets are equal.
func SameParticipants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
