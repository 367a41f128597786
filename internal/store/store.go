// Package store is the in-memory entity store for conversations and messages.
//
// The store is not safe for concurrent use. It is owned by the engine loop and
// every mutation happens inside one loop handler; subscribers are told about
// the handler's changes once, when the engine calls Flush.
package store

import (
	"sort"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
)

// Change lists the conversations touched since the last Flush.
type Change struct {
	ConversationIDs []string `json:"conversation_ids,omitempty"`
	ListChanged     bool     `json:"list_changed"`
}

type Store struct {
	self          string
	conversations map[string]*conversation.Conversation
	messages      map[string][]*message.Message
	index         map[string]string
	openID        string

	dirty       map[string]struct{}
	listChanged bool

	subscribers map[int]func(Change)
	nextSub     int
}

func New(self string) *Store {
	return &Store{
		self:          self,
		conversations: make(map[string]*conversation.Conversation),
		messages:      make(map[string][]*message.Message),
		index:         make(map[string]string),
		dirty:         make(map[string]struct{}),
		subscribers:   make(map[int]func(Change)),
	}
}

// Self returns the viewing user's id.
func (s *Store) Self() string {
	return s.self
}

// OpenID returns the currently open conversation, or "".
func (s *Store) OpenID() string {
	return s.openID
}

func (s *Store) SetOpen(id string) {
	if s.openID == id {
		return
	}
	s.openID = id
	s.listChanged = true
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (s *Store) Subscribe(fn func(Change)) func() {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

// Flush notifies subscribers about everything touched since the previous call.
// It reports whether anything was pending.
func (s *Store) Flush() bool {
	if len(s.dirty) == 0 && !s.listChanged {
		return false
	}
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	change := Change{ConversationIDs: ids, ListChanged: s.listChanged}
	s.dirty = make(map[string]struct{})
	s.listChanged = false

	keys := make([]int, 0, len(s.subscribers))
	for k := range s.subscribers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		s.subscribers[k](change)
	}
	return true
}

func (s *Store) touch(conversationID string) {
	s.dirty[conversationID] = struct{}{}
}

// Conversation returns the stored conversation. Callers must not mutate it;
// use UpdateConversation instead.
func (s *Store) Conversation(id string) *conversation.Conversation {
	return s.conversations[id]
}

// PutConversation inserts or replaces a conversation.
func (s *Store) PutConversation(c *conversation.Conversation) {
	if c == nil || c.ID == "" {
		return
	}
	if _, ok := s.conversations[c.ID]; !ok {
		s.listChanged = true
	}
	c.Participants = conversation.NormalizeParticipants(c.Participants)
	s.conversations[c.ID] = c
	s.touch(c.ID)
}

// UpdateConversation runs fn against the stored conversation. fn reports
// whether it changed anything.
func (s *Store) UpdateConversation(id string, fn func(c *conversation.Conversation) bool) bool {
	c, ok := s.conversations[id]
	if !ok {
		return false
	}
	if !fn(c) {
		return false
	}
	s.touch(id)
	return true
}

// RemoveConversation drops a conversation together with its messages.
func (s *Store) RemoveConversation(id string) bool {
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	for _, m := range s.messages[id] {
		delete(s.index, m.ID)
	}
	delete(s.messages, id)
	delete(s.conversations, id)
	if s.openID == id {
		s.openID = ""
	}
	s.listChanged = true
	s.touch(id)
	return true
}

// ConversationIDs returns every known conversation id, sorted.
func (s *Store) ConversationIDs() []string {
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Conversations returns copies ordered by last activity, newest first.
func (s *Store) Conversations() []*conversation.Conversation {
	out := make([]*conversation.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	sortConversations(out)
	return out
}

// Message returns the stored message. Callers must not mutate it; use
// UpdateMessage instead.
func (s *Store) Message(id string) *message.Message {
	convID, ok := s.index[id]
	if !ok {
		return nil
	}
	for _, m := range s.messages[convID] {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Messages returns copies of a conversation's messages in display order.
func (s *Store) Messages(conversationID string) []*message.Message {
	list := s.messages[conversationID]
	out := make([]*message.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}

// LatestMessage returns the last message in display order, or nil.
func (s *Store) LatestMessage(conversationID string) *message.Message {
	list := s.messages[conversationID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// InsertMessage adds m in createdAt order. It returns false if the id is
// already known or the conversation does not exist.
func (s *Store) InsertMessage(m *message.Message) bool {
	if m == nil || m.ID == "" {
		return false
	}
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return false
	}
	if _, ok := s.index[m.ID]; ok {
		return false
	}
	s.messages[m.ConversationID] = insertOrdered(s.messages[m.ConversationID], m)
	s.index[m.ID] = m.ConversationID
	s.touch(m.ConversationID)
	return true
}

// ReplaceMessage swaps the message stored under oldID for m and re-sorts,
// since the replacement may carry a different createdAt.
func (s *Store) ReplaceMessage(oldID string, m *message.Message) bool {
	convID, ok := s.index[oldID]
	if !ok || m == nil || m.ConversationID != convID {
		return false
	}
	if oldID != m.ID {
		if _, taken := s.index[m.ID]; taken {
			return false
		}
	}
	list := removeByID(s.messages[convID], oldID)
	delete(s.index, oldID)
	s.messages[convID] = insertOrdered(list, m)
	s.index[m.ID] = convID
	s.touch(convID)
	return true
}

// UpdateMessage runs fn against the stored message; fn reports whether it
// changed anything.
func (s *Store) UpdateMessage(id string, fn func(m *message.Message) bool) bool {
	m := s.Message(id)
	if m == nil {
		return false
	}
	before := m.CreatedAt
	if !fn(m) {
		return false
	}
	if !m.CreatedAt.Equal(before) {
		s.messages[m.ConversationID] = reorder(s.messages[m.ConversationID])
	}
	s.touch(m.ConversationID)
	return true
}

// RemoveMessage deletes a message. Only rollback of a local placeholder uses it.
func (s *Store) RemoveMessage(id string) bool {
	convID, ok := s.index[id]
	if !ok {
		return false
	}
	s.messages[convID] = removeByID(s.messages[convID], id)
	delete(s.index, id)
	s.touch(convID)
	return true
}
