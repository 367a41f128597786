package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvelope(t *testing.T) {
	env, err := readEnvelope(strings.NewReader(`{"event_type":"typing.started","aggregate_type":"conversation","aggregate_id":"c1","payload":{"user_id":"u2"}}`))
	require.NoError(t, err)
	assert.Equal(t, "typing.started", env.EventType)
	assert.Equal(t, "c1", env.AggregateID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.JSONEq(t, `{"user_id":"u2"}`, string(env.Payload))
}

func TestReadEnvelopeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "nope"},
		{"no event type", `{"payload":{}}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readEnvelope(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWindowOrDefault(t *testing.T) {
	assert.Equal(t, time.Minute, windowOrDefault(0))
	assert.Equal(t, 30*time.Second, windowOrDefault(30*time.Second))
}
