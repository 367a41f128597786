// Package optimistic applies the viewing user's actions to the local store
// before the server confirms them and remembers enough about each change to
// undo exactly that change if the server refuses it.
package optimistic

import (
	"fmt"
	"strings"
	"time"

	"chat-sync/internal/aggregator"
	"chat-sync/internal/commands"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/reaction"
	"chat-sync/internal/store"
	chat_errors "chat-sync/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 3

type Options struct {
	MaxAttempts int
	Now         func() time.Time
	Logger      *zap.Logger
}

type Buffer struct {
	store       *store.Store
	agg         *aggregator.Aggregator
	maxAttempts int
	now         func() time.Time
	log         *zap.Logger

	ops   map[string]*op
	order []string
}

func NewBuffer(s *store.Store, agg *aggregator.Aggregator, opts Options) *Buffer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Buffer{
		store:       s,
		agg:         agg,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		log:         opts.Logger,
		ops:         make(map[string]*op),
	}
}

// Submit applies action locally and returns the command to send. Nothing is
// changed when the action is invalid.
func (b *Buffer) Submit(action Action) (commands.Command, error) {
	requestID := commands.NewRequestID()
	switch a := action.(type) {
	case Send:
		return b.submitMessage(requestID, a.ConversationID, a.Content, message.TypeText, "", nil)
	case Reply:
		if a.ReplyToMessageID == "" {
			return nil, fmt.Errorf("reply_to_message_id is required: %w", chat_errors.ErrInvalidInput)
		}
		if _, err := b.confirmed(a.ReplyToMessageID); err != nil {
			return nil, err
		}
		return b.submitMessage(requestID, a.ConversationID, a.Content, message.TypeReply, a.ReplyToMessageID, nil)
	case SendMedia:
		content := a.Caption
		if content == "" {
			content = a.Media.FileName
		}
		media := a.Media
		return b.submitMessage(requestID, a.ConversationID, content, message.TypeMedia, "", &media)
	case React:
		return b.submitReaction(requestID, a.MessageID, a.Emoji, false)
	case RemoveReaction:
		return b.submitReaction(requestID, a.MessageID, a.Emoji, true)
	case Recall:
		return b.submitRecall(requestID, a)
	case Pin:
		return b.submitPin(requestID, a)
	case Edit:
		return b.submitEdit(requestID, a)
	case Forward:
		return b.submitForward(requestID, a)
	case CreateGroup:
		return b.submitCommand(commands.CreateGroupCommand{RequestID: requestID, DisplayName: a.DisplayName, Participants: a.Participants})
	case AddParticipants:
		return b.submitMembership(commands.ParticipantsCommand{RequestID: requestID, ConversationID: a.ConversationID, UserIDs: a.UserIDs})
	case RemoveParticipants:
		return b.submitMembership(commands.ParticipantsCommand{RequestID: requestID, ConversationID: a.ConversationID, UserIDs: a.UserIDs, Remove: true})
	case LeaveGroup:
		return b.submitMembership(commands.LeaveGroupCommand{RequestID: requestID, ConversationID: a.ConversationID})
	case EditGroupInfo:
		return b.submitMembership(commands.EditGroupInfoCommand{RequestID: requestID, ConversationID: a.ConversationID, DisplayName: a.DisplayName})
	default:
		return nil, fmt.Errorf("unsupported action %T: %w", action, chat_errors.ErrInvalidInput)
	}
}

func (b *Buffer) submitMessage(requestID, conversationID, content string, typ message.Type, replyTo string, media *message.Media) (commands.Command, error) {
	if b.store.Conversation(conversationID) == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, chat_errors.ErrUnknownReference)
	}
	clientID := uuid.NewString()
	cmd := commands.SendMessageCommand{
		RequestID:        requestID,
		ConversationID:   conversationID,
		ClientMessageID:  clientID,
		Content:          content,
		Type:             typ,
		ReplyToMessageID: replyTo,
		Media:            media,
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	m := b.placeholder(conversationID, clientID, content, typ)
	m.ReplyToMessageID = replyTo
	m.Media = media
	if !b.store.InsertMessage(m) {
		return nil, fmt.Errorf("insert placeholder %s: %w", m.ID, chat_errors.ErrInvalidInput)
	}
	b.agg.Refresh(conversationID)
	b.track(&op{requestID: requestID, cmd: cmd, kind: opMessage, localIDs: []string{m.ID}})
	return cmd, nil
}

func (b *Buffer) placeholder(conversationID, clientID, content string, typ message.Type) *message.Message {
	return &message.Message{
		ID:              message.NewProvisionalID(),
		ClientMessageID: clientID,
		ConversationID:  conversationID,
		SenderID:        b.store.Self(),
		Content:         content,
		CreatedAt:       b.now(),
		Type:            typ,
		Status:          message.StatusPending,
	}
}

// confirmed returns a message that exists on the server. Placeholders are
// refused since the server has no id to act on yet.
func (b *Buffer) confirmed(messageID string) (*message.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message_id is required: %w", chat_errors.ErrInvalidInput)
	}
	m := b.store.Message(messageID)
	if m == nil {
		return nil, fmt.Errorf("message %s: %w", messageID, chat_errors.ErrUnknownReference)
	}
	if message.IsProvisional(m.ID) {
		return nil, fmt.Errorf("message %s: %w", messageID, chat_errors.ErrNotPending)
	}
	return m, nil
}

func (b *Buffer) submitReaction(requestID, messageID, emoji string, remove bool) (commands.Command, error) {
	m, err := b.confirmed(messageID)
	if err != nil {
		return nil, err
	}
	cmd := commands.ReactCommand{RequestID: requestID, ConversationID: m.ConversationID, MessageID: messageID, Emoji: emoji, Remove: remove}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	self := b.store.Self()
	changed := b.store.UpdateMessage(messageID, func(m *message.Message) bool {
		var next message.Reactions
		var ok bool
		if remove {
			next, ok = reaction.Remove(m.Reactions, emoji, self, self)
		} else {
			next, ok = reaction.Add(m.Reactions, emoji, self, self)
		}
		if ok {
			m.Reactions = next
		}
		return ok
	})
	if changed {
		b.agg.Refresh(m.ConversationID)
	}
	b.track(&op{requestID: requestID, cmd: cmd, kind: opReaction, messageID: messageID, emoji: emoji, remove: remove, changed: changed})
	return cmd, nil
}

func (b *Buffer) submitRecall(requestID string, a Recall) (commands.Command, error) {
	m, err := b.confirmed(a.MessageID)
	if err != nil {
		return nil, err
	}
	cmd := commands.RecallCommand{RequestID: requestID, ConversationID: m.ConversationID, MessageID: a.MessageID, Scope: a.Scope}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	p := patch{field: fieldRecalled, prev: m.Recalled, next: a.Scope}
	return b.applyPatch(requestID, cmd, m, p)
}

func (b *Buffer) submitPin(requestID string, a Pin) (commands.Command, error) {
	m, err := b.confirmed(a.MessageID)
	if err != nil {
		return nil, err
	}
	cmd := commands.PinCommand{RequestID: requestID, ConversationID: m.ConversationID, MessageID: a.MessageID, Pinned: a.Pinned}
	p := patch{field: fieldPinned, prev: m.Pinned, next: a.Pinned}
	return b.applyPatch(requestID, cmd, m, p)
}

func (b *Buffer) submitEdit(requestID string, a Edit) (commands.Command, error) {
	m, err := b.confirmed(a.MessageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != b.store.Self() {
		return nil, fmt.Errorf("edit message %s: %w", a.MessageID, chat_errors.ErrUnauthorized)
	}
	cmd := commands.EditMessageCommand{RequestID: requestID, ConversationID: m.ConversationID, MessageID: a.MessageID, Content: a.Content}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	p := patch{field: fieldContent, prev: content{m.Content, m.Edited}, next: content{a.Content, true}}
	return b.applyPatch(requestID, cmd, m, p)
}

func (b *Buffer) applyPatch(requestID string, cmd commands.Command, m *message.Message, p patch) (commands.Command, error) {
	changed := b.store.UpdateMessage(m.ID, func(m *message.Message) bool {
		return p.apply(m, p.next)
	})
	if changed {
		b.agg.Refresh(m.ConversationID)
	}
	b.track(&op{requestID: requestID, cmd: cmd, kind: opPatch, messageID: m.ID, patch: p, changed: changed})
	return cmd, nil
}

func (b *Buffer) submitForward(requestID string, a Forward) (commands.Command, error) {
	src, err := b.confirmed(a.MessageID)
	if err != nil {
		return nil, err
	}
	if src.Recalled == message.RecallEveryone {
		return nil, fmt.Errorf("forward recalled message %s: %w", a.MessageID, chat_errors.ErrInvalidInput)
	}
	targets := dedupe(a.Targets)
	for _, id := range targets {
		if b.store.Conversation(id) == nil {
			return nil, fmt.Errorf("forward target %s: %w", id, chat_errors.ErrUnknownReference)
		}
	}
	cmd := commands.ForwardMessageCommand{
		RequestID:             requestID,
		MessageID:             a.MessageID,
		TargetConversationIDs: targets,
		ClientMessageIDs:      make(map[string]string, len(targets)),
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	typ := src.Type
	if typ != message.TypeMedia {
		typ = message.TypeText
	}
	o := &op{requestID: requestID, cmd: cmd, kind: opMessage}
	for _, target := range targets {
		clientID := uuid.NewString()
		cmd.ClientMessageIDs[target] = clientID
		m := b.placeholder(target, clientID, src.Content, typ)
		m.Forwarded = true
		if src.Media != nil {
			media := *src.Media
			m.Media = &media
		}
		if b.store.InsertMessage(m) {
			o.localIDs = append(o.localIDs, m.ID)
			b.agg.Refresh(target)
		}
	}
	b.track(o)
	return cmd, nil
}

func (b *Buffer) submitMembership(cmd commands.Command) (commands.Command, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	var convID string
	switch c := cmd.(type) {
	case commands.ParticipantsCommand:
		convID = c.ConversationID
	case commands.LeaveGroupCommand:
		convID = c.ConversationID
	case commands.EditGroupInfoCommand:
		convID = c.ConversationID
	}
	if b.store.Conversation(convID) == nil {
		return nil, fmt.Errorf("conversation %s: %w", convID, chat_errors.ErrUnknownReference)
	}
	return b.submitCommand(cmd)
}

// submitCommand tracks a server-authoritative command that changes nothing locally.
func (b *Buffer) submitCommand(cmd commands.Command) (commands.Command, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	b.track(&op{requestID: cmd.IdempotencyKey(), cmd: cmd, kind: opCommand})
	return cmd, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
