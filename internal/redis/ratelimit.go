package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-sync/internal/commands"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{user_id}:messages - per-window message sends
// - ratelimit:{user_id}:commands - per-window everything else except typing

// RateLimitConfig contains configuration for command rate limiting
type RateLimitConfig struct {
	MessageLimit  int           // Max message sends per window
	MessageWindow time.Duration // Message rate limit window
	CommandLimit  int           // Max other commands per window
	CommandWindow time.Duration // Command rate limit window
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60, // 60 messages per minute
		MessageWindow: 60 * time.Second,
		CommandLimit:  120,
		CommandWindow: 60 * time.Second,
	}
}

// RateLimiter throttles relayed commands per user with fixed-window counters.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowCommand counts one commandType issued by userID against its bucket.
// Typing notifications are never limited.
func (r *RateLimiter) AllowCommand(ctx context.Context, userID, commandType string) (bool, error) {
	if strings.HasPrefix(commandType, "typing.") {
		return true, nil
	}
	key, limit, window := r.bucket(userID, commandType)
	res, err := r.checkLimit(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) bucket(userID, commandType string) (string, int, time.Duration) {
	switch commandType {
	case commands.TypeSendMessage, commands.TypeSendReply, commands.TypeForwardMessage:
		return fmt.Sprintf("ratelimit:%s:messages", userID), r.config.MessageLimit, r.config.MessageWindow
	default:
		return fmt.Sprintf("ratelimit:%s:commands", userID), r.config.CommandLimit, r.config.CommandWindow
	}
}

var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

// checkLimit atomically counts one hit against key.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	return parseLimitResult(result, limit)
}

func parseLimitResult(result any, limit int) (*RateLimitResult, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	nums := make([]int64, 3)
	for i := range nums {
		n, ok := values[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit result format")
		}
		nums[i] = n
	}
	return &RateLimitResult{
		Allowed:   nums[0] == 1,
		Remaining: int(nums[1]),
		ResetIn:   time.Duration(nums[2]) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetUser clears all of a user's counters.
func (r *RateLimiter) ResetUser(ctx context.Context, userID string) error {
	keys := []string{
		fmt.Sprintf("ratelimit:%s:messages", userID),
		fmt.Sprintf("ratelimit:%s:commands", userID),
	}
	return r.client.Del(ctx, keys...).Err()
}
