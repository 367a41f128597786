package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-sync/internal/commands"
	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/events"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/store"
	chat_errors "chat-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type fakeSession struct {
	mu          sync.Mutex
	events      chan events.Envelope
	reconnected chan struct{}
	sent        []commands.Command
	scope       []string
	offline     bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events:      make(chan events.Envelope, 16),
		reconnected: make(chan struct{}, 1),
	}
}

func (s *fakeSession) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *fakeSession) Subscribe(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = append(s.scope, "sub:"+id)
	return nil
}

func (s *fakeSession) Unsubscribe(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = append(s.scope, "unsub:"+id)
	return nil
}

func (s *fakeSession) Send(_ context.Context, cmd commands.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return fmt.Errorf("socket closed: %w", chat_errors.ErrTransportUnavailable)
	}
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *fakeSession) Events() <-chan events.Envelope { return s.events }
func (s *fakeSession) Reconnected() <-chan struct{}   { return s.reconnected }

func (s *fakeSession) setOffline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = v
}

func (s *fakeSession) sentTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, c := range s.sent {
		out[i] = c.CommandType()
	}
	return out
}

func (s *fakeSession) scopeOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scope...)
}

var base = time.Now().UTC().Truncate(time.Second)

type fakeFetcher struct {
	mu           sync.Mutex
	list         []*conversation.Conversation
	history      map[string][]*message.Message
	listCalls    int
	historyCalls map[string]int
}

func (f *fakeFetcher) ListConversations(context.Context) ([]*conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]*conversation.Conversation, len(f.list))
	for i, c := range f.list {
		out[i] = c.Clone()
	}
	return out, nil
}

func (f *fakeFetcher) MessageHistory(_ context.Context, id string) ([]*message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyCalls == nil {
		f.historyCalls = map[string]int{}
	}
	f.historyCalls[id]++
	var out []*message.Message
	for _, m := range f.history[id] {
		out = append(out, m.Clone())
	}
	return out, nil
}

// calls returns how often the list and the history of id were fetched.
func (f *fakeFetcher) calls(id string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.historyCalls[id]
}

func (f *fakeFetcher) add(c *conversation.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, c)
}

type fakeUploader struct{}

func (fakeUploader) Upload(_ context.Context, f message.File) (message.Media, error) {
	if strings.HasPrefix(f.Name, "bad") {
		return message.Media{}, errors.New("upload rejected")
	}
	return message.Media{URL: "https://cdn.example/" + f.Name, FileName: f.Name, MediaType: f.ContentType, Size: f.Size}, nil
}

type harness struct {
	engine  *Engine
	session *fakeSession
	fetcher *fakeFetcher
	cancel  context.CancelFunc
	done    chan error
	once    sync.Once
}

func start(t *testing.T) *harness {
	t.Helper()
	session := newFakeSession()
	fetcher := &fakeFetcher{
		list: []*conversation.Conversation{
			{ID: "x", Kind: conversation.KindDirect, Participants: []string{"me", "bob"}, LastActivityAt: base},
			{ID: "y", Kind: conversation.KindGroup, Participants: []string{"me", "bob", "carol"}, LastActivityAt: base.Add(-time.Hour), UnreadCount: 2},
		},
		history: map[string][]*message.Message{
			"x": {{ID: "h1", ConversationID: "x", SenderID: "bob", Content: "earlier", CreatedAt: base.Add(-time.Minute), Status: message.StatusSeen}},
		},
	}
	e := New(Config{UserID: "me", TypingIdle: time.Hour, MaxSendAttempts: 3}, session, fetcher,
		WithHistoryFetcher(fetcher),
		WithUploader(fakeUploader{}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{engine: e, session: session, fetcher: fetcher, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap, err := e.Conversations(context.Background())
		return err == nil && len(snap.Conversations) == 2
	}, waitFor, tick)
	return h
}

func (h *harness) stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *harness) push(t *testing.T, eventType string, payload any) {
	t.Helper()
	env, err := events.NewEnvelope(eventType, events.AggregateTypeMessage, "agg", payload)
	require.NoError(t, err)
	h.session.events <- env
}

func (h *harness) messages(t *testing.T, id string) []*message.Message {
	t.Helper()
	list, err := h.engine.Messages(context.Background(), id)
	require.NoError(t, err)
	return list
}

func TestSendAndEchoLeavesOneMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	cmd, err := h.engine.Submit(ctx, optimistic.Send{ConversationID: "x", Content: "hello"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(h.session.sentTypes()) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{commands.TypeSendMessage}, h.session.sentTypes())

	list := h.messages(t, "x")
	require.Len(t, list, 1)
	assert.True(t, list[0].IsPending())

	h.push(t, events.EventTypeMessageCreated, events.MessagePayload{
		ID: "srv-1", ConversationID: "x", SenderID: "me", Content: "hello",
		ClientMessageID: cmd.(commands.SendMessageCommand).ClientMessageID,
		CreatedAt:       time.Now().UTC(), Type: message.TypeText,
	})
	require.Eventually(t, func() bool {
		list := h.messages(t, "x")
		return len(list) == 1 && list[0].ID == "srv-1"
	}, waitFor, tick)

	n, err := h.engine.Outstanding(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRejectionRollsBackAndNotifies(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	cmd, err := h.engine.Submit(ctx, optimistic.Send{ConversationID: "x", Content: "nope"})
	require.NoError(t, err)

	h.push(t, commands.TypeSendMessage+events.ErrorSuffix, events.CommandError{
		RequestID: cmd.IdempotencyKey(), Reason: "blocked",
	})
	require.Eventually(t, func() bool {
		return len(h.messages(t, "x")) == 0
	}, waitFor, tick)

	notices, err := h.engine.Notices(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, reconciler.NoticeRejected, notices[0].Kind)
	assert.Equal(t, "blocked", notices[0].Reason)
}

func TestOfflineSendIsRetriedOnReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()
	h.session.setOffline(true)

	_, err := h.engine.Submit(ctx, optimistic.Send{ConversationID: "x", Content: "later"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		list := h.messages(t, "x")
		return len(list) == 1 && list[0].Retryable
	}, waitFor, tick)

	h.session.setOffline(false)
	h.session.reconnected <- struct{}{}
	require.Eventually(t, func() bool {
		return len(h.session.sentTypes()) == 1
	}, waitFor, tick)
	list := h.messages(t, "x")
	require.Len(t, list, 1)
	assert.True(t, list[0].IsPending())
	assert.False(t, list[0].Retryable)
}

func TestReconnectResubscribesAndRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	require.NoError(t, h.engine.Open(ctx, "x"))
	require.Eventually(t, func() bool {
		_, history := h.fetcher.calls("x")
		return history == 1 && len(h.messages(t, "x")) == 1
	}, waitFor, tick)
	listBefore, _ := h.fetcher.calls("x")
	h.fetcher.add(&conversation.Conversation{ID: "z", Kind: conversation.KindDirect, Participants: []string{"me", "dave"}, LastActivityAt: base.Add(time.Minute)})

	h.session.reconnected <- struct{}{}

	require.Eventually(t, func() bool {
		list, history := h.fetcher.calls("x")
		return list > listBefore && history == 2
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		ops := h.session.scopeOps()
		return len(ops) >= 2 && ops[len(ops)-1] == "sub:x"
	}, waitFor, tick)
	assert.Equal(t, 2, strings.Count(strings.Join(h.session.scopeOps(), ","), "sub:x"))

	require.Eventually(t, func() bool {
		snap, err := h.engine.Conversations(ctx)
		return err == nil && len(snap.Conversations) == 3
	}, waitFor, tick)
	snap, err := h.engine.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", snap.OpenID)
	assert.Equal(t, "z", snap.Conversations[0].ID)
	assert.Len(t, h.messages(t, "x"), 1)
}

func TestOpenSubscribesMergesHistoryAndMarksRead(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	require.NoError(t, h.engine.Open(ctx, "y"))
	require.NoError(t, h.engine.Typing(ctx, "y"))
	require.NoError(t, h.engine.Open(ctx, "x"))
	require.NoError(t, h.engine.Open(ctx, "x"))

	require.Eventually(t, func() bool {
		return len(h.messages(t, "x")) == 1
	}, waitFor, tick)
	assert.Equal(t, "h1", h.messages(t, "x")[0].ID)

	require.Eventually(t, func() bool {
		return len(h.session.scopeOps()) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{"sub:y", "unsub:y", "sub:x"}, h.session.scopeOps())

	require.Eventually(t, func() bool {
		return len(h.session.sentTypes()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{commands.TypeTypingStart, commands.TypeTypingStop}, h.session.sentTypes())

	snap, err := h.engine.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", snap.OpenID)
	for _, c := range snap.Conversations {
		if c.ID == "y" {
			assert.Zero(t, c.UnreadCount)
		}
	}

	assert.ErrorIs(t, h.engine.Open(ctx, "missing"), chat_errors.ErrNotFound)
}

func TestRemovedFromOpenConversationClearsSelection(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()
	require.NoError(t, h.engine.Open(ctx, "y"))

	h.fetcher.mu.Lock()
	h.fetcher.list = h.fetcher.list[:1]
	h.fetcher.mu.Unlock()

	h.push(t, events.EventTypeParticipantsRemoved, events.ParticipantsChanged{
		ConversationID: "y", ActorID: "bob", UserIDs: []string{"me"},
	})
	require.Eventually(t, func() bool {
		snap, err := h.engine.Conversations(ctx)
		return err == nil && snap.OpenID == "" && len(snap.Conversations) == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		ops := h.session.scopeOps()
		return len(ops) == 2 && ops[1] == "unsub:y"
	}, waitFor, tick)
}

func TestSendMediaReportsFailedSubset(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	res, err := h.engine.SendMedia(ctx, "x", "holiday", []message.File{
		{Name: "a.png", ContentType: "image/png", Size: 10},
		{Name: "bad.png", ContentType: "image/png", Size: 20},
		{Name: "b.png", ContentType: "image/png", Size: 30},
	})
	require.NoError(t, err)
	assert.Len(t, res.Commands, 2)
	assert.Equal(t, []string{"bad.png"}, res.Failed)

	list := h.messages(t, "x")
	require.Len(t, list, 2)
	for _, m := range list {
		assert.Equal(t, message.TypeMedia, m.Type)
		assert.True(t, m.IsPending())
	}

	notices, err := h.engine.Notices(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, reconciler.NoticePartialFailure, notices[0].Kind)
	assert.Equal(t, []string{"bad.png"}, notices[0].FailedItems)

	_, err = h.engine.SendMedia(ctx, "x", "", []message.File{{Name: "bad.gif"}})
	assert.Error(t, err)
}

func TestSubscribersNotifiedOncePerHandler(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	ctx := context.Background()

	var mu sync.Mutex
	var changes []store.Change
	cancel, err := h.engine.Subscribe(ctx, func(c store.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	require.NoError(t, err)

	h.push(t, events.EventTypeMessageForwarded, events.MessageForwarded{Messages: []events.MessagePayload{
		{ID: "f1", ConversationID: "x", SenderID: "bob", Content: "a", CreatedAt: base.Add(time.Second)},
		{ID: "f2", ConversationID: "y", SenderID: "bob", Content: "a", CreatedAt: base.Add(time.Second)},
	}})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 1
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, []string{"x", "y"}, changes[0].ConversationIDs)
	mu.Unlock()
	cancel()
}

func TestMalformedEventIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	h.session.events <- events.Envelope{EventType: "message.created", Payload: []byte(`{"id":`)}
	h.session.events <- events.Envelope{EventType: "mystery.happened", Payload: []byte(`{}`)}
	h.push(t, events.EventTypeMessageCreated, events.MessagePayload{
		ID: "m1", ConversationID: "y", SenderID: "bob", Content: "still alive", CreatedAt: base.Add(time.Second),
	})
	require.Eventually(t, func() bool {
		return len(h.messages(t, "y")) == 1
	}, waitFor, tick)

	snap, err := h.engine.Conversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "y", snap.Conversations[0].ID)
	assert.Equal(t, 3, snap.Conversations[0].UnreadCount)
}

func TestCallsAfterStopFail(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := start(t)
	defer h.stop()
	h.stop()
	_, err := h.engine.Submit(context.Background(), optimistic.Send{ConversationID: "x", Content: "late"})
	assert.ErrorIs(t, err, chat_errors.ErrEngineStopped)
}
