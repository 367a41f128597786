package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedBackoff(maxAttempts int) (*Backoff, *time.Time) {
	b := NewBackoff(time.Second, 10*time.Second, maxAttempts)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.jitter = func() float64 { return 0 }
	return b, &now
}

func TestBackoff_DoublesUpToMax(t *testing.T) {
	b, _ := fixedBackoff(0)

	var got []time.Duration
	for range 6 {
		got = append(got, b.Next())
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 10 * time.Second, 10 * time.Second,
	}, got)
}

func TestBackoff_JitterIsBoundedByHalfBase(t *testing.T) {
	b, _ := fixedBackoff(0)
	b.jitter = func() float64 { return 0.999 }

	d := b.Next()
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, 1500*time.Millisecond)
}

func TestBackoff_MaxAttempts(t *testing.T) {
	b, _ := fixedBackoff(2)

	assert.True(t, b.ShouldRetry())
	b.Next()
	assert.True(t, b.ShouldRetry())
	b.Next()
	assert.False(t, b.ShouldRetry())

	b.Reset()
	assert.True(t, b.ShouldRetry())
	assert.Equal(t, 0, b.Attempt())
}

func TestBackoff_StableConnectionStartsOver(t *testing.T) {
	b, now := fixedBackoff(0)
	b.Next()
	b.Next()
	b.Next()

	b.MarkConnected()
	*now = now.Add(30 * time.Second)
	assert.Equal(t, 8*time.Second, b.Next(), "short-lived connection keeps counting")

	b.MarkConnected()
	*now = now.Add(2 * time.Minute)
	assert.Equal(t, time.Second, b.Next())
}

func TestNewBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0, 0)
	assert.Equal(t, DefaultBaseDelay, b.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, b.MaxDelay)
}
