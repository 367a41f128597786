package engine

import (
	"context"
	"time"

	"chat-sync/internal/events"
	"chat-sync/internal/metrics"
	"chat-sync/internal/reconciler"

	"go.uber.org/zap"
)

func (e *Engine) handleEnvelope(env events.Envelope) {
	ev, err := events.Decode(env)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		e.log.Warn("undecodable event", zap.String("event_type", env.EventType), zap.Error(err))
		return
	}
	open := e.store.OpenID()
	out := e.rec.Apply(ev)
	if out.Dropped {
		metrics.EventsDropped.WithLabelValues("unknown_reference").Inc()
	} else {
		changed := "false"
		if out.Changed {
			changed = "true"
		}
		metrics.EventsApplied.WithLabelValues(ev.EventType(), changed).Inc()
	}
	e.handleOutcome(open, out)
}

// handleOutcome carries out what the reconciler asked for. open is the
// conversation that was focused before the event was applied.
func (e *Engine) handleOutcome(open string, out reconciler.Outcome) {
	for _, n := range out.Notices {
		if n.Kind == reconciler.NoticeRejected || n.Kind == reconciler.NoticePartialFailure {
			metrics.Rollbacks.WithLabelValues(n.CommandType).Inc()
		}
		e.notify(n)
	}
	if out.ClearSelection && open != "" {
		if e.typing.Active() == open {
			e.typing.Cancel()
		}
		e.store.SetOpen("")
		e.switchScope(open, "")
	}
	if out.Refresh {
		e.refresh()
	}
}

// refresh reloads the conversation list in the background.
func (e *Engine) refresh() {
	if e.conversations == nil {
		return
	}
	e.goIO(func(ctx context.Context) {
		start := time.Now()
		list, err := e.conversations.ListConversations(ctx)
		metrics.FetchLatency.WithLabelValues("conversations").Observe(time.Since(start).Seconds())
		e.post(func() {
			if err != nil {
				e.log.Warn("conversation list refresh failed", zap.Error(err))
				return
			}
			open := e.store.OpenID()
			e.handleOutcome(open, e.rec.ReplaceConversations(list))
		})
	})
}

func (e *Engine) fetchHistory(conversationID string) {
	if e.history == nil {
		return
	}
	e.goIO(func(ctx context.Context) {
		start := time.Now()
		list, err := e.history.MessageHistory(ctx, conversationID)
		metrics.FetchLatency.WithLabelValues("history").Observe(time.Since(start).Seconds())
		e.post(func() {
			if err != nil {
				e.log.Warn("history fetch failed", zap.String("conversation_id", conversationID), zap.Error(err))
				return
			}
			e.rec.MergeHistory(conversationID, list)
		})
	})
}

// resync runs after the transport (re)connects: the open conversation is
// subscribed again, state missed while offline is refetched and sends that
// failed for lack of a connection are retried.
func (e *Engine) resync() {
	metrics.TransportReconnects.Inc()
	if open := e.store.OpenID(); open != "" {
		e.switchScope("", open)
		e.fetchHistory(open)
	}
	e.refresh()
	for _, requestID := range e.buffer.Retryable() {
		cmd, err := e.buffer.Retry(requestID)
		if err != nil {
			continue
		}
		e.log.Info("retrying command", zap.String("request_id", requestID), zap.String("command_type", cmd.CommandType()))
		e.dispatch(cmd)
	}
}
