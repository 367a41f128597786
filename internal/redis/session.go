package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-sync/internal/commands"
	"chat-sync/internal/events"
	"chat-sync/internal/transport"
	chat_errors "chat-sync/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionConfig configures a pub/sub Session.
type SessionConfig struct {
	UserID    string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Logger    *zap.Logger
}

// Session is a transport.Session that reads events straight off redis
// pub/sub and publishes commands to the system command channel. It suits
// trusted processes running next to the backend.
type Session struct {
	cfg       SessionConfig
	client    *redis.Client
	publisher *Publisher
	resolver  events.ChannelResolver
	backoff   *transport.Backoff
	logger    *zap.Logger
	now       func() time.Time

	events      chan events.Envelope
	reconnected chan struct{}

	mu     sync.Mutex
	pubsub *redis.PubSub
}

var _ transport.Session = (*Session)(nil)

func NewSession(client *redis.Client, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:         cfg,
		client:      client,
		publisher:   NewPublisher(client),
		resolver:    events.NewHybridChannelResolver(),
		backoff:     transport.NewBackoff(cfg.BaseDelay, cfg.MaxDelay, 0),
		logger:      logger.With(zap.String("component", "redis_session"), zap.String("user_id", cfg.UserID)),
		now:         time.Now,
		events:      make(chan events.Envelope, 256),
		reconnected: make(chan struct{}, 1),
	}
}

func (s *Session) Events() <-chan events.Envelope { return s.events }

func (s *Session) Reconnected() <-chan struct{} { return s.reconnected }

// Run subscribes to the user's channel and forwards envelopes until ctx is
// done. Every subscription confirmation that follows a receive failure
// counts as a reconnect.
func (s *Session) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.resolver.UserChannel(s.cfg.UserID))
	s.setPubSub(pubsub)
	defer func() {
		s.setPubSub(nil)
		_ = pubsub.Close()
	}()
	// Receive ignores cancellation; closing the pubsub unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })
	defer stop()

	connected := false
	for {
		msg, err := pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if connected {
				s.logger.Warn("connection lost", zap.Error(err))
			}
			connected = false
			delay := s.backoff.Next()
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if !connected {
				connected = true
				s.backoff.MarkConnected()
				s.logger.Info("subscribed", zap.String("channel", m.Channel))
				select {
				case s.reconnected <- struct{}{}:
				default:
				}
			}
		case *redis.Message:
			var env events.Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				s.logger.Warn("malformed envelope", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			select {
			case s.events <- env:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Session) setPubSub(p *redis.PubSub) {
	s.mu.Lock()
	s.pubsub = p
	s.mu.Unlock()
}

func (s *Session) current() (*redis.PubSub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub == nil {
		return nil, fmt.Errorf("redis: session not running: %w", chat_errors.ErrTransportUnavailable)
	}
	return s.pubsub, nil
}

func (s *Session) Subscribe(ctx context.Context, conversationID string) error {
	pubsub, err := s.current()
	if err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, s.resolver.ConversationChannel(conversationID)); err != nil {
		return unavailable("subscribe", err)
	}
	return nil
}

func (s *Session) Unsubscribe(ctx context.Context, conversationID string) error {
	pubsub, err := s.current()
	if err != nil {
		return err
	}
	if err := pubsub.Unsubscribe(ctx, s.resolver.ConversationChannel(conversationID)); err != nil {
		return unavailable("unsubscribe", err)
	}
	return nil
}

// Send publishes cmd to the system command channel tagged with the session's
// user.
func (s *Session) Send(ctx context.Context, cmd commands.Command) error {
	frame, err := commands.Encode(cmd)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(commands.Relayed{
		UserID:     s.cfg.UserID,
		ReceivedAt: s.now().UTC(),
		Frame:      frame,
	})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, events.ChannelSystemCommands, payload); err != nil {
		return unavailable("publish "+cmd.CommandType(), err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis: %s: %w", op, errors.Join(chat_errors.ErrTransportUnavailable, err))
}
