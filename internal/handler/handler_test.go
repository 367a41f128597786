package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-sync/internal/commands"
	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/engine"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/store"
	chat_errors "chat-sync/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu         sync.Mutex
	snapshot   engine.Snapshot
	messages   map[string][]*message.Message
	actions    []optimistic.Action
	submitErr  error
	media      engine.MediaResult
	mediaFiles map[string]string
	subscribed chan func(store.Change)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		messages:   map[string][]*message.Message{},
		subscribed: make(chan func(store.Change), 1),
	}
}

func (f *fakeEngine) Conversations(context.Context) (engine.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeEngine) Messages(_ context.Context, id string) ([]*message.Message, error) {
	msgs, ok := f.messages[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return msgs, nil
}

func (f *fakeEngine) Notices(context.Context) ([]reconciler.Notice, error) {
	return []reconciler.Notice{{Kind: reconciler.NoticeRejected, RequestID: "r1", Reason: "not allowed"}}, nil
}

func (f *fakeEngine) Outstanding(context.Context) (int, error) { return 2, nil }

func (f *fakeEngine) Subscribe(_ context.Context, fn func(store.Change)) (func(), error) {
	f.subscribed <- fn
	return func() {}, nil
}

func (f *fakeEngine) Open(_ context.Context, id string) error {
	if id == "missing" {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (f *fakeEngine) Close(context.Context) error      { return nil }
func (f *fakeEngine) StopTyping(context.Context) error { return nil }

func (f *fakeEngine) Submit(_ context.Context, action optimistic.Action) (commands.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.actions = append(f.actions, action)
	return commands.SendMessageCommand{RequestID: "req-1", ConversationID: "c1", Content: "x"}, nil
}

func (f *fakeEngine) Retry(_ context.Context, id string) error {
	if id != "req-1" {
		return chat_errors.ErrNotPending
	}
	return nil
}

func (f *fakeEngine) Typing(context.Context, string) error { return nil }

func (f *fakeEngine) SendMedia(_ context.Context, _ string, caption string, files []message.File) (engine.MediaResult, error) {
	f.mediaFiles = map[string]string{"caption": caption}
	for _, file := range files {
		body, err := io.ReadAll(file.Body)
		if err != nil {
			return engine.MediaResult{}, err
		}
		f.mediaFiles[file.Name] = string(body)
	}
	return f.media, nil
}

func (f *fakeEngine) lastAction(t *testing.T) optimistic.Action {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.actions)
	return f.actions[len(f.actions)-1]
}

func newRouter(eng Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	conv := NewConversationHandler(eng)
	msg := NewMessageHandler(eng)
	syn := NewSyncHandler(eng)

	r.GET("/conversations", conv.List)
	r.POST("/conversations", conv.CreateGroup)
	r.GET("/conversations/:id/messages", conv.Messages)
	r.POST("/conversations/:id/open", conv.Open)
	r.POST("/conversations/:id/messages", msg.Send)
	r.POST("/conversations/:id/media", msg.SendMedia)
	r.POST("/conversations/:id/leave", conv.Leave)
	r.POST("/messages/:id/reactions", msg.React)
	r.DELETE("/messages/:id/reactions/:emoji", msg.RemoveReaction)
	r.POST("/messages/:id/recall", msg.Recall)
	r.PUT("/messages/:id/pin", msg.Pin)
	r.POST("/messages/:id/forward", msg.Forward)
	r.POST("/requests/:id/retry", syn.Retry)
	r.GET("/notices", syn.Notices)
	r.GET("/status", syn.Status)
	r.GET("/changes", syn.Changes)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestListConversations(t *testing.T) {
	eng := newFakeEngine()
	eng.snapshot = engine.Snapshot{
		OpenID:        "c1",
		Conversations: []*conversation.Conversation{{ID: "c1", DisplayName: "Team", UnreadCount: 3}},
	}
	w := do(t, newRouter(eng), http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"open_conversation_id":"c1"`)
	assert.Contains(t, string(env.Data), `"unread_count":3`)
}

func TestSendAndReply(t *testing.T) {
	eng := newFakeEngine()
	r := newRouter(eng)

	w := do(t, r, http.MethodPost, "/conversations/c1/messages", `{"content":"hi"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, optimistic.Send{ConversationID: "c1", Content: "hi"}, eng.lastAction(t))
	assert.JSONEq(t, `{"command_type":"message.send","request_id":"req-1"}`, string(decode(t, w).Data))

	w = do(t, r, http.MethodPost, "/conversations/c1/messages", `{"content":"re","reply_to_message_id":"m9"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, optimistic.Reply{ConversationID: "c1", Content: "re", ReplyToMessageID: "m9"}, eng.lastAction(t))
}

func TestBadRequests(t *testing.T) {
	r := newRouter(newFakeEngine())
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"send without content", http.MethodPost, "/conversations/c1/messages", `{}`},
		{"send malformed", http.MethodPost, "/conversations/c1/messages", `{`},
		{"react without emoji", http.MethodPost, "/messages/m1/reactions", `{}`},
		{"pin without flag", http.MethodPut, "/messages/m1/pin", `{}`},
		{"forward without targets", http.MethodPost, "/messages/m1/forward", `{"target_conversation_ids":[]}`},
		{"create group without body", http.MethodPost, "/conversations", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", decode(t, w).Code)
		})
	}
}

func TestMessageActions(t *testing.T) {
	eng := newFakeEngine()
	r := newRouter(eng)

	do(t, r, http.MethodPost, "/messages/m1/reactions", `{"emoji":"👍"}`)
	assert.Equal(t, optimistic.React{MessageID: "m1", Emoji: "👍"}, eng.lastAction(t))

	do(t, r, http.MethodDelete, "/messages/m1/reactions/heart", "")
	assert.Equal(t, optimistic.RemoveReaction{MessageID: "m1", Emoji: "heart"}, eng.lastAction(t))

	do(t, r, http.MethodPost, "/messages/m1/recall", `{}`)
	assert.Equal(t, optimistic.Recall{MessageID: "m1", Scope: message.RecallEveryone}, eng.lastAction(t))

	do(t, r, http.MethodPost, "/messages/m1/recall", `{"scope":"self"}`)
	assert.Equal(t, optimistic.Recall{MessageID: "m1", Scope: message.RecallSelf}, eng.lastAction(t))

	do(t, r, http.MethodPut, "/messages/m1/pin", `{"pinned":false}`)
	assert.Equal(t, optimistic.Pin{MessageID: "m1", Pinned: false}, eng.lastAction(t))

	do(t, r, http.MethodPost, "/messages/m1/forward", `{"target_conversation_ids":["c2","c3"]}`)
	assert.Equal(t, optimistic.Forward{MessageID: "m1", Targets: []string{"c2", "c3"}}, eng.lastAction(t))

	do(t, r, http.MethodPost, "/conversations/c1/leave", "")
	assert.Equal(t, optimistic.LeaveGroup{ConversationID: "c1"}, eng.lastAction(t))
}

func TestEngineErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown message", chat_errors.ErrUnknownReference, http.StatusNotFound},
		{"invalid", chat_errors.ErrInvalidInput, http.StatusBadRequest},
		{"stopped", chat_errors.ErrEngineStopped, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine()
			eng.submitErr = tt.err
			w := do(t, newRouter(eng), http.MethodPost, "/messages/m1/reactions", `{"emoji":"x"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, decode(t, w).Success)
		})
	}

	r := newRouter(newFakeEngine())
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/conversations/nope/messages", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/conversations/missing/open", "").Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/conversations/c1/open", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/requests/other/retry", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/requests/req-1/retry", "").Code)
}

func TestSendMedia(t *testing.T) {
	eng := newFakeEngine()
	eng.media = engine.MediaResult{
		Commands: []commands.Command{commands.SendMessageCommand{RequestID: "req-a", ConversationID: "c1"}},
		Failed:   []string{"b.png"},
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("caption", "holiday"))
	for name, content := range map[string]string{"a.png": "AAAA", "b.png": "BB"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newRouter(eng).ServeHTTP(w, req)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Equal(t, map[string]string{"caption": "holiday", "a.png": "AAAA", "b.png": "BB"}, eng.mediaFiles)
	assert.JSONEq(t, `{"commands":[{"command_type":"message.send","request_id":"req-a"}],"failed":["b.png"]}`, string(decode(t, w).Data))
}

func TestSendMediaWithoutFiles(t *testing.T) {
	w := do(t, newRouter(newFakeEngine()), http.MethodPost, "/conversations/c1/media", `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoticesAndStatus(t *testing.T) {
	r := newRouter(newFakeEngine())

	w := do(t, r, http.MethodGet, "/notices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notices":[{"kind":"rejected","request_id":"r1","reason":"not allowed"}]}`, string(decode(t, w).Data))

	w = do(t, r, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"outstanding":2}`, string(decode(t, w).Data))
}

func TestChangesStream(t *testing.T) {
	eng := newFakeEngine()
	srv := httptest.NewServer(newRouter(eng))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/changes", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var notify func(store.Change)
	select {
	case notify = <-eng.subscribed:
	case <-ctx.Done():
		t.Fatal("handler never subscribed")
	}
	notify(store.Change{ConversationIDs: []string{"c1"}, ListChanged: true})

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			eventLine = line
		case strings.HasPrefix(line, "data:"):
			dataLine = line
		}
	}
	assert.Equal(t, "event:change", eventLine)
	assert.JSONEq(t, `{"conversation_ids":["c1"],"list_changed":true}`, strings.TrimPrefix(dataLine, "data:"))
}
