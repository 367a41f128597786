package engine

import (
	"context"
	"time"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
)

// ConversationFetcher loads the viewing user's conversation list.
type ConversationFetcher interface {
	ListConversations(ctx context.Context) ([]*conversation.Conversation, error)
}

// HistoryFetcher loads a conversation's message history.
type HistoryFetcher interface {
	MessageHistory(ctx context.Context, conversationID string) ([]*message.Message, error)
}

// Uploader stores an attachment and describes where it ended up.
type Uploader interface {
	Upload(ctx context.Context, file message.File) (message.Media, error)
}

// loopScheduler fires typing timers back on the engine loop.
type loopScheduler struct {
	post func(func()) bool
}

func (s loopScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { s.post(fn) })
	return func() { t.Stop() }
}
