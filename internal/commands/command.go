package commands

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Command is an outbound request issued on behalf of the viewing user.
// IdempotencyKey doubles as the request id that correlates acks and
// "<type>.error" rejections with the optimistic change that issued it.
type Command interface {
	CommandType() string
	Validate() error
	IdempotencyKey() string
}

// Command types
const (
	TypeSendMessage        = "message.send"
	TypeSendReply          = "message.reply"
	TypeReact              = "reaction.add"
	TypeRemoveReaction     = "reaction.remove"
	TypeRecall             = "message.recall"
	TypePin                = "message.pin"
	TypeEditMessage        = "message.edit"
	TypeForwardMessage     = "message.forward"
	TypeCreateGroup        = "group.create"
	TypeAddParticipants    = "participant.add"
	TypeRemoveParticipants = "participant.remove"
	TypeLeaveGroup         = "group.leave"
	TypeEditGroupInfo      = "group.edit_info"
	TypeTypingStart        = "typing.start"
	TypeTypingStop         = "typing.stop"
)

var AllTypes = []string{
	TypeSendMessage, TypeSendReply, TypeReact, TypeRemoveReaction, TypeRecall,
	TypePin, TypeEditMessage, TypeForwardMessage, TypeCreateGroup,
	TypeAddParticipants, TypeRemoveParticipants, TypeLeaveGroup,
	TypeEditGroupInfo, TypeTypingStart, TypeTypingStop,
}

// Frame is the wire format of an outbound command.
type Frame struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id,omitempty"`
	Payload   Command `json:"payload"`
}

// Encode validates cmd and marshals it into a Frame.
func Encode(cmd Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(Frame{
		Type:      cmd.CommandType(),
		RequestID: cmd.IdempotencyKey(),
		Payload:   cmd,
	})
}

// Relayed is an encoded command frame as handed to the backend, tagged with
// the user it was issued for.
type Relayed struct {
	UserID     string          `json:"user_id"`
	ReceivedAt time.Time       `json:"received_at"`
	Frame      json.RawMessage `json:"frame"`
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}
