package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	data, err := Encode(SendMessageCommand{RequestID: "r1", ConversationID: "c1", ClientMessageID: "cm1", Content: "hello", Type: message.TypeText})
	require.NoError(t, err)

	var frame struct {
		Type      string          `json:"type"`
		RequestID string          `json:"request_id"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, TypeSendMessage, frame.Type)
	assert.Equal(t, "r1", frame.RequestID)
	assert.JSONEq(t, `{"conversation_id":"c1","client_message_id":"cm1","content":"hello","type":"TEXT"}`, string(frame.Payload))
}

func TestCommandTypesFollowFlags(t *testing.T) {
	assert.Equal(t, TypeSendReply, SendMessageCommand{ReplyToMessageID: "m0"}.CommandType())
	assert.Equal(t, TypeRemoveReaction, ReactCommand{Remove: true}.CommandType())
	assert.Equal(t, TypeRemoveParticipants, ParticipantsCommand{Remove: true}.CommandType())
	assert.Equal(t, TypeTypingStart, TypingCommand{Started: true}.CommandType())
	assert.Equal(t, TypeTypingStop, TypingCommand{}.CommandType())
}

func TestValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"blank content", SendMessageCommand{ConversationID: "c1", Content: "  "}},
		{"react without emoji", ReactCommand{MessageID: "m1"}},
		{"recall without scope", RecallCommand{MessageID: "m1"}},
		{"edit without content", EditMessageCommand{MessageID: "m1"}},
		{"forward without targets", ForwardMessageCommand{MessageID: "m1"}},
		{"group without participants", CreateGroupCommand{DisplayName: "team"}},
		{"leave without conversation", LeaveGroupCommand{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput), "got %v", err)
			_, err = Encode(tt.cmd)
			assert.Error(t, err)
		})
	}
}

func TestMediaMessageNeedsNoText(t *testing.T) {
	cmd := SendMessageCommand{ConversationID: "c1", Type: message.TypeMedia, Media: &message.Media{URL: "https://x/y.png"}}
	assert.NoError(t, cmd.Validate())
}

func TestBusRoutesByType(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Register(TypePin, HandlerFunc(func(_ context.Context, cmd Command) error {
		got = append(got, cmd.CommandType())
		return nil
	}))

	require.NoError(t, bus.Execute(context.Background(), PinCommand{MessageID: "m1", Pinned: true}))
	assert.ErrorIs(t, bus.Execute(context.Background(), LeaveGroupCommand{ConversationID: "c1"}), ErrHandlerNotFound)
	assert.ErrorIs(t, bus.Execute(context.Background(), PinCommand{}), chat_errors.ErrInvalidInput)
	assert.Equal(t, []string{TypePin}, got)
}

func TestBusRegisterAll(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.RegisterAll(HandlerFunc(func(context.Context, Command) error {
		calls++
		return nil
	}))
	require.NoError(t, bus.Execute(context.Background(), TypingCommand{ConversationID: "c1", Started: true}))
	require.NoError(t, bus.Execute(context.Background(), LeaveGroupCommand{ConversationID: "c1"}))
	assert.Equal(t, 2, calls)
}
