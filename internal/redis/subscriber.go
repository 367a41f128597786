package redis

import (
	"context"
	"time"

	"chat-sync/internal/transport"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Subscriber struct {
	client *redis.Client
	logger *zap.Logger
}

func NewSubscriber(client *redis.Client, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, logger: logger.With(zap.String("component", "redis_subscriber"))}
}

// Subscribe pattern-subscribes and hands every message to handler until ctx
// is done. Receive failures are retried with backoff; the client resubscribes
// on its own once the server is reachable again.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()
	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer stop()

	backoff := transport.NewBackoff(0, 0, 0)
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := backoff.Next()
			s.logger.Warn("receive failed", zap.Error(err), zap.Strings("patterns", patterns), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		backoff.Reset()
		handler(msg.Channel, []byte(msg.Payload))
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
