// Package engine owns the chat state and serializes every change to it.
//
// A single goroutine, Run, applies inbound events, user actions, send
// results, timer firings and fetch results one at a time. Network calls run
// on their own goroutines and post their results back to the loop. Store
// subscribers are notified once after each handler.
package engine

import (
	"context"
	"sync"
	"time"

	"chat-sync/internal/aggregator"
	"chat-sync/internal/commands"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/store"
	"chat-sync/internal/transport"
	"chat-sync/internal/typing"
	chat_errors "chat-sync/pkg/errors"

	"go.uber.org/zap"
)

const (
	defaultInboxSize = 256
	maxNotices       = 50
	shutdownTimeout  = time.Second
)

type Config struct {
	UserID          string
	EchoTolerance   time.Duration
	TypingIdle      time.Duration
	MaxSendAttempts int
	InboxSize       int
}

type Engine struct {
	cfg           Config
	session       transport.Session
	conversations ConversationFetcher
	history       HistoryFetcher
	uploader      Uploader
	log           *zap.Logger

	store  *store.Store
	agg    *aggregator.Aggregator
	buffer *optimistic.Buffer
	rec    *reconciler.Reconciler
	typing *typing.Coordinator
	bus    *commands.Bus

	inbox    chan func()
	outbox   chan func(context.Context)
	done     chan struct{}
	stopping bool
	ctx      context.Context
	wg       sync.WaitGroup
	notices  []reconciler.Notice
	onNotice func(reconciler.Notice)
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithHistoryFetcher(h HistoryFetcher) Option {
	return func(e *Engine) { e.history = h }
}

func WithUploader(u Uploader) Option {
	return func(e *Engine) { e.uploader = u }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNoticeHandler registers fn to be called on the loop for each notice.
func WithNoticeHandler(fn func(reconciler.Notice)) Option {
	return func(e *Engine) { e.onNotice = fn }
}

func New(cfg Config, session transport.Session, conversations ConversationFetcher, opts ...Option) *Engine {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	e := &Engine{
		cfg:           cfg,
		session:       session,
		conversations: conversations,
		log:           zap.NewNop(),
		inbox:         make(chan func(), cfg.InboxSize),
		outbox:        make(chan func(context.Context), cfg.InboxSize),
		done:          make(chan struct{}),
		bus:           commands.NewBus(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = store.New(cfg.UserID)
	e.agg = aggregator.New(e.store)
	e.buffer = optimistic.NewBuffer(e.store, e.agg, optimistic.Options{
		MaxAttempts: cfg.MaxSendAttempts,
		Logger:      e.log.With(zap.String("component", "optimistic")),
	})
	e.rec = reconciler.New(e.store, e.agg, e.buffer, reconciler.Options{
		EchoTolerance: cfg.EchoTolerance,
		Logger:        e.log.With(zap.String("component", "reconciler")),
	})
	e.typing = typing.NewCoordinator(loopScheduler{post: e.post}, cfg.TypingIdle, e.emitTyping)
	e.bus.RegisterAll(commands.HandlerFunc(session.Send))
	return e
}

// Run drives the engine until ctx is done. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.log.Info("engine started", zap.String("user_id", e.cfg.UserID))
	e.goIO(e.sendLoop)
	e.refresh()

	events := e.session.Events()
	reconnected := e.session.Reconnected()
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case env, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			e.handleEnvelope(env)
		case <-reconnected:
			e.resync()
		case fn := <-e.inbox:
			fn()
		}
		e.store.Flush()
	}
}

func (e *Engine) shutdown() {
	e.stopping = true
	e.typing.Cancel()
	close(e.done)
	e.wg.Wait()
	e.log.Info("engine stopped")
}

// post queues fn for the loop. It reports false once the engine stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case e.inbox <- fn:
		return true
	case <-e.done:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	task := func() { errc <- fn() }
	select {
	case e.inbox <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return chat_errors.ErrEngineStopped
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return chat_errors.ErrEngineStopped
	}
}

// goIO runs fn off the loop. fn receives the engine context.
func (e *Engine) goIO(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

func (e *Engine) notify(n reconciler.Notice) {
	e.notices = append(e.notices, n)
	if len(e.notices) > maxNotices {
		e.notices = e.notices[len(e.notices)-maxNotices:]
	}
	e.log.Info("notice",
		zap.String("kind", string(n.Kind)),
		zap.String("command_type", n.CommandType),
		zap.String("reason", n.Reason),
		zap.Strings("failed_items", n.FailedItems),
	)
	if e.onNotice != nil {
		e.onNotice(n)
	}
}
