package reconciler

import (
	"testing"
	"time"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/optimistic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHistoryKeepsPendingAndDedups(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m2", "x", base.Add(2*time.Minute))
	_, err := f.buffer.Submit(optimistic.Send{ConversationID: "x", Content: "draft"})
	require.NoError(t, err)

	history := []*message.Message{
		{ID: "m1", ConversationID: "x", SenderID: "bob", Content: "first", CreatedAt: base.Add(time.Minute)},
		{ID: "m2", ConversationID: "x", SenderID: "bob", Content: "m2", CreatedAt: base.Add(2 * time.Minute), Status: message.StatusSeen},
		{ID: "other", ConversationID: "y", SenderID: "bob", Content: "wrong", CreatedAt: base},
	}
	assert.True(t, f.rec.MergeHistory("x", history))

	list := f.store.Messages("x")
	require.Len(t, list, 3)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, message.StatusSent, list[0].Status)
	assert.Equal(t, message.StatusSeen, list[1].Status)
	assert.True(t, list[2].IsPending())
	assert.Equal(t, 1, f.store.Conversation("x").UnreadCount)
	assert.Nil(t, f.store.Message("other"))

	assert.False(t, f.rec.MergeHistory("x", history))
}

func TestReplaceConversationsTakesServerUnreadAndRemovesMissing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", "x", base.Add(time.Minute))
	f.store.SetOpen("y")

	out := f.rec.ReplaceConversations([]*conversation.Conversation{
		{ID: "x", DisplayName: "Bob", Kind: conversation.KindDirect, Participants: []string{"bob", "me"}, UnreadCount: 4},
		{ID: "z", DisplayName: "new", Kind: conversation.KindGroup, Participants: []string{"me", "dave"}, LastActivityAt: base.Add(5 * time.Hour)},
	})
	assert.True(t, out.Changed)
	assert.True(t, out.ClearSelection)

	assert.Nil(t, f.store.Conversation("y"))
	x := f.store.Conversation("x")
	assert.Equal(t, 4, x.UnreadCount)
	assert.Equal(t, "Bob", x.DisplayName)
	assert.Equal(t, "m1", x.LastMessage.ID)
	assert.Len(t, f.store.Messages("x"), 1)
	assert.Equal(t, "z", f.store.Conversations()[0].ID)

	again := f.rec.ReplaceConversations([]*conversation.Conversation{
		{ID: "x", DisplayName: "Bob", Kind: conversation.KindDirect, Participants: []string{"bob", "me"}, UnreadCount: 4},
		{ID: "z", DisplayName: "new", Kind: conversation.KindGroup, Participants: []string{"me", "dave"}, LastActivityAt: base.Add(5 * time.Hour)},
	})
	assert.False(t, again.Changed)
}
