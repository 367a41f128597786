package engine

import (
	"context"
	"fmt"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/store"
	chat_errors "chat-sync/pkg/errors"
)

// Snapshot is a consistent read of the conversation list.
type Snapshot struct {
	OpenID        string
	Conversations []*conversation.Conversation
}

func (e *Engine) Conversations(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() error {
		snap = Snapshot{OpenID: e.store.OpenID(), Conversations: e.store.Conversations()}
		return nil
	})
	return snap, err
}

func (e *Engine) Messages(ctx context.Context, conversationID string) ([]*message.Message, error) {
	var list []*message.Message
	err := e.do(ctx, func() error {
		if e.store.Conversation(conversationID) == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, chat_errors.ErrNotFound)
		}
		list = e.store.Messages(conversationID)
		return nil
	})
	return list, err
}

// Notices returns the most recent user-facing notices, oldest first.
func (e *Engine) Notices(ctx context.Context) ([]reconciler.Notice, error) {
	var out []reconciler.Notice
	err := e.do(ctx, func() error {
		out = append(out, e.notices...)
		return nil
	})
	return out, err
}

// Outstanding returns the number of commands still awaiting confirmation.
func (e *Engine) Outstanding(ctx context.Context) (int, error) {
	var n int
	err := e.do(ctx, func() error {
		n = e.buffer.Outstanding()
		return nil
	})
	return n, err
}

// Subscribe registers fn for store changes. fn runs on the engine loop and
// must not call back into the engine.
func (e *Engine) Subscribe(ctx context.Context, fn func(store.Change)) (func(), error) {
	var cancel func()
	err := e.do(ctx, func() error {
		cancel = e.store.Subscribe(fn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return func() {
		e.post(cancel)
	}, nil
}
