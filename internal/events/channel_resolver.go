package events

// ChannelResolver determines which pub/sub channels carry a scope's events.
type ChannelResolver interface {
	ConversationChannel(conversationID string) string
	UserChannel(userID string) string
}

// HybridChannelResolver routes per-conversation events to conversation
// channels and membership/error events to the viewing user's channel.
type HybridChannelResolver struct{}

func NewHybridChannelResolver() *HybridChannelResolver {
	return &HybridChannelResolver{}
}

func (r *HybridChannelResolver) ConversationChannel(conversationID string) string {
	return ChannelPrefixConversation + conversationID
}

func (r *HybridChannelResolver) UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}
