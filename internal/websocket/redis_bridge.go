package websocket

import (
	"context"

	"chat-sync/internal/events"
)

// Subscriber streams pub/sub messages matching patterns to handler until ctx
// is done or the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// RedisBridge fans backend events published on redis out to relay clients.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Patterns lists the channel patterns the bridge forwards.
var Patterns = []string{
	events.ChannelPrefixConversation + "*",
	events.ChannelPrefixUser + "*",
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, Patterns, b.hub.Broadcast)
}
