package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chat-sync/internal/auth"
	"chat-sync/internal/commands"
	"chat-sync/internal/events"
	"chat-sync/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CommandSink receives command frames read from connected sessions.
type CommandSink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// CommandLimiter throttles commands per user. A nil limiter allows everything.
type CommandLimiter interface {
	AllowCommand(ctx context.Context, userID, commandType string) (bool, error)
}

// Handler upgrades authenticated requests and relays frames between the
// connection, the hub and the command sink.
type Handler struct {
	issuer     *auth.Issuer
	hub        *Hub
	authorizer *ChannelAuthorizer
	sink       CommandSink
	limiter    CommandLimiter
	resolver   events.ChannelResolver
	logger     *Logger
}

func NewHandler(issuer *auth.Issuer, hub *Hub, authorizer *ChannelAuthorizer, sink CommandSink, limiter CommandLimiter, l *zap.Logger) *Handler {
	return &Handler{
		issuer:     issuer,
		hub:        hub,
		authorizer: authorizer,
		sink:       sink,
		limiter:    limiter,
		resolver:   events.NewHybridChannelResolver(),
		logger:     NewLogger(l),
	}
}

// Connect upgrades the request and serves the connection until it drops.
func (h *Handler) Connect(c *gin.Context) {
	token := auth.BearerToken(c.Query("token"), c.GetHeader("Authorization"))
	claims, err := h.issuer.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade_failed", claims.UserID, "", err)
		return
	}

	client := NewClient(conn, claims.UserID)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, h.resolver.UserChannel(client.UserID))
	go client.WriteLoop(ctx)
	h.logger.Info("connected", client.UserID, client.ID)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read_failed", client.UserID, client.ID, zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, client, data)
	}

	h.hub.Unregister(client)
	h.logger.Info("disconnected", client.UserID, client.ID)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		h.logger.Warn("malformed_frame", client.UserID, client.ID)
		return
	}

	if frame.isControl() {
		h.handleControl(ctx, client, frame)
		return
	}
	h.handleCommand(ctx, client, frame, data)
}

func (h *Handler) handleControl(ctx context.Context, client *Client, frame inboundFrame) {
	if frame.Type == FrameUnsubscribe {
		h.hub.Unsubscribe(client, frame.Channel)
		return
	}

	ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, frame.Channel)
	if err != nil {
		h.logger.Error("authorize_failed", client.UserID, client.ID, err, zap.String("channel", frame.Channel))
		return
	}
	if !ok {
		h.logger.Warn("subscribe_denied", client.UserID, client.ID, zap.String("channel", frame.Channel))
		return
	}
	h.hub.Subscribe(client, frame.Channel)
}

var errRateLimited = errors.New("rate limited")

func (h *Handler) handleCommand(ctx context.Context, client *Client, frame inboundFrame, data []byte) {
	if h.limiter != nil {
		allowed, err := h.limiter.AllowCommand(ctx, client.UserID, frame.Type)
		if err != nil {
			h.logger.Error("rate_limit_check_failed", client.UserID, client.ID, err)
		} else if !allowed {
			h.reject(client, frame, errRateLimited)
			return
		}
	}

	payload, err := json.Marshal(commands.Relayed{
		UserID:     client.UserID,
		ReceivedAt: time.Now().UTC(),
		Frame:      data,
	})
	if err == nil {
		err = h.sink.Publish(ctx, events.ChannelSystemCommands, payload)
	}
	if err != nil {
		h.logger.Error("relay_command_failed", client.UserID, client.ID, err, zap.String("command_type", frame.Type))
		h.reject(client, frame, err)
	}
}

// reject answers a command with its "<type>.error" event on the sender's
// connection only.
func (h *Handler) reject(client *Client, frame inboundFrame, cause error) {
	env, err := events.NewEnvelope(frame.Type+events.ErrorSuffix, events.AggregateTypeCommand, frame.RequestID, events.CommandError{
		CommandType: frame.Type,
		RequestID:   frame.RequestID,
		Reason:      cause.Error(),
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if !h.hub.SendTo(client, data) {
		h.logger.Warn("reject_dropped", client.UserID, client.ID, zap.String("command_type", frame.Type))
	}
}
