package engine

import (
	"context"
	"fmt"

	"chat-sync/internal/commands"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reconciler"
	chat_errors "chat-sync/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

// Open makes conversationID the focused conversation. Opening the already
// open conversation only marks it read.
func (e *Engine) Open(ctx context.Context, conversationID string) error {
	return e.do(ctx, func() error { return e.open(conversationID) })
}

func (e *Engine) open(id string) error {
	if e.store.Conversation(id) == nil {
		return fmt.Errorf("conversation %s: %w", id, chat_errors.ErrNotFound)
	}
	prev := e.store.OpenID()
	e.agg.MarkRead(id)
	if prev == id {
		return nil
	}
	e.typing.Cancel()
	e.store.SetOpen(id)
	e.switchScope(prev, id)
	e.fetchHistory(id)
	return nil
}

// Close clears the focused conversation.
func (e *Engine) Close(ctx context.Context) error {
	return e.do(ctx, func() error {
		prev := e.store.OpenID()
		if prev == "" {
			return nil
		}
		e.typing.Cancel()
		e.store.SetOpen("")
		e.switchScope(prev, "")
		return nil
	})
}

func (e *Engine) switchScope(prev, next string) {
	job := func(ctx context.Context) {
		if prev != "" {
			if err := e.session.Unsubscribe(ctx, prev); err != nil {
				e.log.Warn("unsubscribe failed", zap.String("conversation_id", prev), zap.Error(err))
			}
		}
		if next != "" {
			if err := e.session.Subscribe(ctx, next); err != nil {
				e.log.Warn("subscribe failed", zap.String("conversation_id", next), zap.Error(err))
			}
		}
	}
	if !e.enqueue(job) {
		e.goIO(job)
	}
}

// Submit applies action optimistically and sends its command.
func (e *Engine) Submit(ctx context.Context, action optimistic.Action) (commands.Command, error) {
	var cmd commands.Command
	err := e.do(ctx, func() error {
		var err error
		cmd, err = e.submit(action)
		return err
	})
	return cmd, err
}

func (e *Engine) submit(action optimistic.Action) (commands.Command, error) {
	cmd, err := e.buffer.Submit(action)
	if err != nil {
		return nil, err
	}
	if c, ok := cmd.(commands.SendMessageCommand); ok && c.ConversationID == e.typing.Active() {
		e.typing.Cancel()
	}
	e.dispatch(cmd)
	return cmd, nil
}

// Retry re-sends a command that failed for lack of a transport.
func (e *Engine) Retry(ctx context.Context, requestID string) error {
	return e.do(ctx, func() error {
		cmd, err := e.buffer.Retry(requestID)
		if err != nil {
			return err
		}
		e.dispatch(cmd)
		return nil
	})
}

// Typing records a keystroke in conversationID.
func (e *Engine) Typing(ctx context.Context, conversationID string) error {
	return e.do(ctx, func() error {
		if e.store.Conversation(conversationID) == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, chat_errors.ErrNotFound)
		}
		e.typing.Notify(conversationID)
		return nil
	})
}

// StopTyping is called when the input is cleared.
func (e *Engine) StopTyping(ctx context.Context) error {
	return e.do(ctx, func() error {
		e.typing.Cancel()
		return nil
	})
}

// MediaResult reports a multi-file send.
type MediaResult struct {
	Commands []commands.Command
	Failed   []string
}

// SendMedia uploads files concurrently and sends one MEDIA message per
// uploaded file. Files that fail to upload are reported together in one
// partial-failure notice; the rest are sent.
func (e *Engine) SendMedia(ctx context.Context, conversationID, caption string, files []message.File) (MediaResult, error) {
	if e.uploader == nil {
		return MediaResult{}, fmt.Errorf("no uploader configured: %w", chat_errors.ErrInvalidInput)
	}
	if len(files) == 0 {
		return MediaResult{}, fmt.Errorf("files are required: %w", chat_errors.ErrInvalidInput)
	}
	if err := e.do(ctx, func() error {
		if e.store.Conversation(conversationID) == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, chat_errors.ErrNotFound)
		}
		return nil
	}); err != nil {
		return MediaResult{}, err
	}

	media := make([]message.Media, len(files))
	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			media[i], errs[i] = e.uploader.Upload(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	var result MediaResult
	err := e.do(ctx, func() error {
		var firstErr error
		for i, f := range files {
			err := errs[i]
			if err == nil {
				action := optimistic.SendMedia{ConversationID: conversationID, Media: media[i]}
				if len(result.Commands) == 0 {
					action.Caption = caption
				}
				var cmd commands.Command
				cmd, err = e.submit(action)
				if err == nil {
					result.Commands = append(result.Commands, cmd)
					continue
				}
			}
			e.log.Warn("media not sent", zap.String("file", f.Name), zap.Error(err))
			result.Failed = append(result.Failed, f.Name)
			if firstErr == nil {
				firstErr = err
			}
		}
		if len(result.Failed) == 0 {
			return nil
		}
		e.notify(reconciler.Notice{
			Kind:           reconciler.NoticePartialFailure,
			CommandType:    commands.TypeSendMessage,
			ConversationID: conversationID,
			FailedItems:    result.Failed,
		})
		if len(result.Commands) == 0 {
			return fmt.Errorf("all %d uploads failed: %w", len(files), firstErr)
		}
		return nil
	})
	return result, err
}
