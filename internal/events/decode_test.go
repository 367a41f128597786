package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, eventType string, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(eventType, AggregateTypeMessage, "agg", payload)
	require.NoError(t, err)
	return env
}

func TestDecodeMessageCreated(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env := envelope(t, EventTypeReplyCreated, MessagePayload{
		ID: "m1", ConversationID: "c1", SenderID: "bob", Content: "hi", CreatedAt: at,
		Type: message.TypeReply, ReplyToMessageID: "m0",
	})

	ev, err := Decode(env)
	require.NoError(t, err)
	created, ok := ev.(MessageCreated)
	require.True(t, ok)
	assert.Equal(t, EventTypeReplyCreated, created.EventType())

	m := created.Message.ToMessage()
	assert.Equal(t, message.StatusSent, m.Status)
	assert.Equal(t, "m0", m.ReplyToMessageID)
	assert.True(t, at.Equal(m.CreatedAt))
}

func TestDecodePinnedAndUnpinned(t *testing.T) {
	payload := map[string]string{"conversation_id": "c1", "message_id": "m1"}

	ev, err := Decode(envelope(t, EventTypeMessagePinned, payload))
	require.NoError(t, err)
	assert.True(t, ev.(MessagePinned).Pinned)

	ev, err = Decode(envelope(t, EventTypeMessageUnpinned, payload))
	require.NoError(t, err)
	assert.False(t, ev.(MessagePinned).Pinned)
	assert.Equal(t, EventTypeMessageUnpinned, ev.EventType())
}

func TestDecodeCommandError(t *testing.T) {
	ev, err := Decode(envelope(t, "message.send.error", map[string]any{"request_id": "r1", "reason": "blocked"}))
	require.NoError(t, err)

	cmdErr, ok := ev.(CommandError)
	require.True(t, ok)
	assert.Equal(t, "message.send", cmdErr.CommandType)
	assert.Equal(t, "r1", cmdErr.RequestID)
	assert.Equal(t, "message.send.error", cmdErr.EventType())
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want error
	}{
		{"unknown type", Envelope{EventType: "poll.created", Payload: json.RawMessage(`{}`)}, chat_errors.ErrUnknownEvent},
		{"empty payload", Envelope{EventType: EventTypeMessageCreated}, chat_errors.ErrInvalidInput},
		{"malformed payload", Envelope{EventType: EventTypeReactionUpdated, Payload: json.RawMessage(`[1,2`)}, chat_errors.ErrInvalidInput},
		{"missing ids", Envelope{EventType: EventTypeMessageCreated, Payload: json.RawMessage(`{"content":"x"}`)}, chat_errors.ErrInvalidInput},
		{"bad status", Envelope{EventType: EventTypeStatusUpdated, Payload: json.RawMessage(`{"message_ids":["m1"],"status":"LOST"}`)}, chat_errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.env)
			assert.Nil(t, ev)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecodeParticipantsAndRecall(t *testing.T) {
	ev, err := Decode(envelope(t, EventTypeGroupLeft, map[string]any{"conversation_id": "c1", "user_ids": []string{"me"}}))
	require.NoError(t, err)
	assert.Equal(t, EventTypeGroupLeft, ev.EventType())

	ev, err = Decode(envelope(t, EventTypeMessageRecalled, map[string]any{"conversation_id": "c1", "message_id": "m1"}))
	require.NoError(t, err)
	assert.Equal(t, message.RecallEveryone, ev.(MessageRecalled).Scope)
}
