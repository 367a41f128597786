package websocket

import (
	"encoding/json"
	"time"
)

// Connection tuning shared by the relay and the client session.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Control frame types. Every other inbound frame type is a command.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// ControlFrame asks the relay to change a connection's channel set.
type ControlFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// inboundFrame is what the relay reads before deciding whether a frame is a
// control frame or a command.
type inboundFrame struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (f inboundFrame) isControl() bool {
	return f.Type == FrameSubscribe || f.Type == FrameUnsubscribe
}
