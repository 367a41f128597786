package transport

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff defaults for reconnecting sessions.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second

	// stableAfter is how long a connection must survive before the attempt
	// counter starts over.
	stableAfter = 60 * time.Second
)

// Backoff computes exponential reconnect delays with jitter.
// It is not safe for concurrent use; each session owns one.
type Backoff struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 means retry forever

	attempt     int
	connectedAt time.Time
	now         func() time.Time
	jitter      func() float64
}

// NewBackoff returns a Backoff with defaults filled in.
func NewBackoff(base, maxDelay time.Duration, maxAttempts int) *Backoff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &Backoff{
		BaseDelay:   base,
		MaxDelay:    maxDelay,
		MaxAttempts: maxAttempts,
		now:         time.Now,
		jitter:      rand.Float64,
	}
}

// ShouldRetry reports whether another attempt is allowed.
func (b *Backoff) ShouldRetry() bool {
	return b.MaxAttempts == 0 || b.attempt < b.MaxAttempts
}

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// MarkConnected records a successful connect.
func (b *Backoff) MarkConnected() {
	b.connectedAt = b.now()
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	if !b.connectedAt.IsZero() && b.now().Sub(b.connectedAt) > stableAfter {
		b.attempt = 0
	}
	jitter := b.jitter() * float64(b.BaseDelay) * 0.5
	delay := math.Min(
		float64(b.BaseDelay)*math.Pow(2, float64(b.attempt))+jitter,
		float64(b.MaxDelay),
	)
	b.attempt++
	return time.Duration(delay)
}

// Reset starts the attempt counter over.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.connectedAt = time.Time{}
}
