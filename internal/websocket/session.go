package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"chat-sync/internal/commands"
	"chat-sync/internal/events"
	"chat-sync/internal/transport"
	chat_errors "chat-sync/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenSource returns the access token presented on each connect.
type TokenSource func() (string, error)

// SessionConfig configures a client Session.
type SessionConfig struct {
	URL         string
	UserID      string
	Token       TokenSource
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 reconnects forever
	Logger      *zap.Logger
}

// Session is a transport.Session over a relay websocket. It reconnects with
// exponential backoff until its Run context is done.
type Session struct {
	cfg      SessionConfig
	resolver events.ChannelResolver
	backoff  *transport.Backoff
	dialer   *websocket.Dialer
	logger   *Logger

	events      chan events.Envelope
	reconnected chan struct{}

	mu   sync.Mutex // guards conn
	conn *websocket.Conn

	writeMu sync.Mutex // serializes frame writes
}

var _ transport.Session = (*Session)(nil)

func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:         cfg,
		resolver:    events.NewHybridChannelResolver(),
		backoff:     transport.NewBackoff(cfg.BaseDelay, cfg.MaxDelay, cfg.MaxAttempts),
		dialer:      &websocket.Dialer{HandshakeTimeout: writeWait},
		logger:      NewLogger(cfg.Logger),
		events:      make(chan events.Envelope, 256),
		reconnected: make(chan struct{}, 1),
	}
}

func (s *Session) Events() <-chan events.Envelope { return s.events }

func (s *Session) Reconnected() <-chan struct{} { return s.reconnected }

// Run keeps the session connected until ctx is done. It returns an error only
// when MaxAttempts consecutive connects failed.
func (s *Session) Run(ctx context.Context) error {
	for {
		err := s.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !s.backoff.ShouldRetry() {
			return fmt.Errorf("websocket: giving up after %d attempts: %w", s.backoff.Attempt(), err)
		}

		delay := s.backoff.Next()
		s.logger.Warn("reconnecting", s.cfg.UserID, "", zap.Error(err),
			zap.Int("attempt", s.backoff.Attempt()), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// serve runs one connection from dial to drop.
func (s *Session) serve(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.backoff.MarkConnected()
	s.setConn(conn)
	defer s.setConn(nil)
	s.logger.Info("connected", s.cfg.UserID, "")

	select {
	case s.reconnected <- struct{}{}:
	default:
	}

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(connCtx, conn)
	}()
	stop := context.AfterFunc(ctx, func() {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.writeMu.Unlock()
		_ = conn.Close()
	})

	err = s.readLoop(ctx, conn)

	stop()
	cancel()
	wg.Wait()
	_ = conn.Close()
	return err
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("websocket: parse url: %w", err)
	}
	if s.cfg.Token != nil {
		token, err := s.cfg.Token()
		if err != nil {
			return nil, fmt.Errorf("websocket: token: %w", err)
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn, nil
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket: read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("malformed_envelope", s.cfg.UserID, "", zap.Error(err))
			continue
		}
		select {
		case s.events <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Session) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) Subscribe(ctx context.Context, conversationID string) error {
	return s.writeJSON(ctx, ControlFrame{Type: FrameSubscribe, Channel: s.resolver.ConversationChannel(conversationID)})
}

func (s *Session) Unsubscribe(ctx context.Context, conversationID string) error {
	return s.writeJSON(ctx, ControlFrame{Type: FrameUnsubscribe, Channel: s.resolver.ConversationChannel(conversationID)})
}

// Send encodes cmd as a command frame. Validation failures are returned as
// is; everything else wraps ErrTransportUnavailable.
func (s *Session) Send(ctx context.Context, cmd commands.Command) error {
	data, err := commands.Encode(cmd)
	if err != nil {
		return err
	}
	return s.write(ctx, data)
}

func (s *Session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(ctx, data)
}

func (s *Session) write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket: not connected: %w", chat_errors.ErrTransportUnavailable)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket: write: %w", errors.Join(chat_errors.ErrTransportUnavailable, err))
	}
	return nil
}
