package engine

import (
	"context"
	"fmt"
	"strconv"

	"chat-sync/internal/commands"
	"chat-sync/internal/metrics"
	"chat-sync/internal/reconciler"
	chat_errors "chat-sync/pkg/errors"

	"go.uber.org/zap"
)

// dispatch queues cmd for the sender goroutine. Commands and subscription
// changes leave in the order they were issued.
func (e *Engine) dispatch(cmd commands.Command) {
	ok := e.enqueue(func(ctx context.Context) {
		err := e.bus.Execute(ctx, cmd)
		e.post(func() { e.sent(cmd, err) })
	})
	if !ok {
		e.sent(cmd, fmt.Errorf("outbox full: %w", chat_errors.ErrTransportUnavailable))
	}
}

func (e *Engine) enqueue(job func(ctx context.Context)) bool {
	select {
	case e.outbox <- job:
		return true
	default:
		return false
	}
}

func (e *Engine) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.outbox:
			job(ctx)
		}
	}
}

// sent records the transport's verdict on cmd.
func (e *Engine) sent(cmd commands.Command, err error) {
	requestID := cmd.IdempotencyKey()
	if requestID == "" {
		if err != nil {
			e.log.Debug("signal not delivered", zap.String("command_type", cmd.CommandType()), zap.Error(err))
		}
		return
	}
	if err == nil {
		metrics.CommandsSent.WithLabelValues(cmd.CommandType()).Inc()
		e.buffer.Ack(requestID)
		return
	}
	retry, rb := e.buffer.Fail(requestID, err)
	metrics.CommandsFailed.WithLabelValues(cmd.CommandType(), strconv.FormatBool(retry)).Inc()
	if retry {
		return
	}
	metrics.Rollbacks.WithLabelValues(cmd.CommandType()).Inc()
	e.notify(reconciler.Notice{
		Kind:        reconciler.NoticeRejected,
		CommandType: rb.CommandType,
		RequestID:   requestID,
		Reason:      err.Error(),
	})
}

// emitTyping sends typing signals. During shutdown the loop is gone, so the
// final stop is written directly with a short deadline.
func (e *Engine) emitTyping(cmd commands.TypingCommand) {
	if !e.stopping {
		e.dispatch(cmd)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.session.Send(ctx, cmd); err != nil {
		e.log.Debug("typing stop not delivered on shutdown", zap.Error(err))
	}
}
