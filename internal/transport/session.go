// Package transport defines the push connection the engine talks through.
package transport

import (
	"context"

	"chat-sync/internal/commands"
	"chat-sync/internal/events"
)

// Session is a live connection to the chat backend.
//
// Run connects and keeps the session connected until ctx is done, signalling
// Reconnected after every successful (re)connect. Send returns an error
// wrapping errors.ErrTransportUnavailable while disconnected. Events are
// delivered at least once and in no guaranteed order.
type Session interface {
	Run(ctx context.Context) error
	Subscribe(ctx context.Context, conversationID string) error
	Unsubscribe(ctx context.Context, conversationID string) error
	Send(ctx context.Context, cmd commands.Command) error
	Events() <-chan events.Envelope
	Reconnected() <-chan struct{}
}
