package websocket

import (
	"context"
	"strings"

	"chat-sync/internal/events"
)

// MembershipChecker answers whether a user participates in a conversation.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// OpenMembership admits every user to every conversation. Development relays
// without a database use it.
type OpenMembership struct{}

func (OpenMembership) IsParticipant(context.Context, string, string) (bool, error) {
	return true, nil
}

// ChannelAuthorizer handles authorization for channel subscriptions
type ChannelAuthorizer struct {
	members MembershipChecker
}

func NewChannelAuthorizer(members MembershipChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{members: members}
}

// CanSubscribe checks if a user is authorized to subscribe to a channel
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	// User's own channel - always allowed
	if channel == events.ChannelPrefixUser+userID {
		return true, nil
	}

	// Conversation channels - check if user is a participant
	if strings.HasPrefix(channel, events.ChannelPrefixConversation) {
		convID := strings.TrimPrefix(channel, events.ChannelPrefixConversation)
		if convID == "" {
			return false, nil
		}
		return a.members.IsParticipant(ctx, convID, userID)
	}

	// System channels and other users' channels are never subscribable
	return false, nil
}
