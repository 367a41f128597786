// Package reconciler folds authoritative push events into the local store.
//
// Every handler is idempotent: applying an event a second time leaves the
// store untouched and reports Changed=false. Events referring to unknown
// conversations or messages are dropped with a log line.
package reconciler

import (
	"time"

	"chat-sync/internal/aggregator"
	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/events"
	"chat-sync/internal/optimistic"
	"chat-sync/internal/reaction"
	"chat-sync/internal/store"
	chat_errors "chat-sync/pkg/errors"

	"go.uber.org/zap"
)

const defaultEchoTolerance = 5 * time.Second

type Options struct {
	EchoTolerance time.Duration
	Logger        *zap.Logger
}

type Reconciler struct {
	store     *store.Store
	agg       *aggregator.Aggregator
	buffer    *optimistic.Buffer
	tolerance time.Duration
	log       *zap.Logger
}

func New(s *store.Store, agg *aggregator.Aggregator, buffer *optimistic.Buffer, opts Options) *Reconciler {
	if opts.EchoTolerance <= 0 {
		opts.EchoTolerance = defaultEchoTolerance
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reconciler{
		store:     s,
		agg:       agg,
		buffer:    buffer,
		tolerance: opts.EchoTolerance,
		log:       opts.Logger,
	}
}

// Apply reconciles one decoded event.
func (r *Reconciler) Apply(ev events.Event) Outcome {
	switch e := ev.(type) {
	case events.MessageCreated:
		return r.messages(e.Message)
	case events.MessageForwarded:
		return r.messages(e.Messages...)
	case events.StatusUpdated:
		return r.statusUpdated(e)
	case events.ReactionUpdated:
		return r.reactionUpdated(e)
	case events.MessageRecalled:
		return r.recalled(e)
	case events.MessagePinned:
		return r.patch(e.MessageID, e.EventType(), func(m *message.Message) bool {
			if m.Pinned == e.Pinned {
				return false
			}
			m.Pinned = e.Pinned
			return true
		})
	case events.MessageEdited:
		return r.patch(e.MessageID, e.EventType(), func(m *message.Message) bool {
			if m.Content == e.Content && m.Edited {
				return false
			}
			m.Content, m.Edited = e.Content, true
			return true
		})
	case events.GroupCreated:
		return r.groupCreated(e)
	case events.ParticipantsChanged:
		return r.participantsChanged(e)
	case events.GroupInfoEdited:
		return r.infoEdited(e)
	case events.CommandError:
		return r.commandError(e)
	default:
		r.log.Warn("ignoring unknown event", zap.String("event_type", ev.EventType()))
		return Outcome{Dropped: true}
	}
}

func (r *Reconciler) drop(eventType, ref string) Outcome {
	r.log.Warn("dropping event",
		zap.String("event_type", eventType),
		zap.String("reference", ref),
		zap.Error(chat_errors.ErrUnknownReference),
	)
	return Outcome{Dropped: true}
}

func (r *Reconciler) messages(payloads ...events.MessagePayload) Outcome {
	var out Outcome
	dropped := 0
	for _, p := range payloads {
		changed, ok := r.message(p.ToMessage(), true)
		if !ok {
			dropped++
		}
		out.Changed = out.Changed || changed
	}
	out.Dropped = len(payloads) > 0 && dropped == len(payloads)
	return out
}

// message stores one authoritative message. It reports whether the store
// changed and whether the message could be placed at all. Only live
// messages count towards unread; fetched history does not.
func (r *Reconciler) message(m *message.Message, live bool) (bool, bool) {
	if r.store.Conversation(m.ConversationID) == nil {
		r.drop(events.EventTypeMessageCreated, m.ConversationID)
		return false, false
	}

	if r.store.Message(m.ID) != nil {
		changed := r.store.UpdateMessage(m.ID, func(cur *message.Message) bool {
			next, ok := cur.Status.Advance(m.Status)
			cur.Status = next
			return ok
		})
		if changed {
			r.agg.Refresh(m.ConversationID)
		}
		return changed, true
	}

	if m.SenderID == r.store.Self() {
		echo := r.store.FindPendingEcho(store.EchoQuery{
			ConversationID:  m.ConversationID,
			SenderID:        m.SenderID,
			ClientMessageID: m.ClientMessageID,
			Content:         m.Content,
			CreatedAt:       m.CreatedAt,
			Tolerance:       r.tolerance,
		})
		if echo != nil {
			localID := echo.ID
			if r.store.ReplaceMessage(localID, m) {
				r.buffer.ResolveEcho(localID)
				r.agg.Refresh(m.ConversationID)
				r.log.Debug("reconciled echo",
					zap.String("local_id", localID),
					zap.String("message_id", m.ID),
				)
				return true, true
			}
		}
	}

	if !r.store.InsertMessage(m) {
		return false, true
	}
	r.agg.Refresh(m.ConversationID)
	if live {
		r.agg.CountNew(m)
	}
	return true, true
}

func (r *Reconciler) statusUpdated(e events.StatusUpdated) Outcome {
	var out Outcome
	touched := make(map[string]struct{})
	for _, id := range e.MessageIDs {
		m := r.store.Message(id)
		if m == nil {
			r.drop(e.EventType(), id)
			continue
		}
		convID := m.ConversationID
		if r.store.UpdateMessage(id, func(m *message.Message) bool {
			next, ok := m.Status.Advance(e.Status)
			m.Status = next
			return ok
		}) {
			touched[convID] = struct{}{}
			out.Changed = true
		}
	}
	for convID := range touched {
		r.agg.Refresh(convID)
	}
	return out
}

func (r *Reconciler) reactionUpdated(e events.ReactionUpdated) Outcome {
	m := r.store.Message(e.MessageID)
	if m == nil {
		return r.drop(e.EventType(), e.MessageID)
	}
	next := r.buffer.ResolveReactions(e.MessageID, e.Reactions)
	changed := r.store.UpdateMessage(e.MessageID, func(m *message.Message) bool {
		if reaction.Equal(m.Reactions, next) {
			return false
		}
		m.Reactions = next
		return true
	})
	if changed {
		r.agg.Refresh(m.ConversationID)
	}
	return Outcome{Changed: changed}
}

func (r *Reconciler) recalled(e events.MessageRecalled) Outcome {
	if e.Scope == message.RecallSelf && e.ActorID != r.store.Self() {
		return Outcome{}
	}
	return r.patch(e.MessageID, e.EventType(), func(m *message.Message) bool {
		if m.Recalled == e.Scope || m.Recalled == message.RecallEveryone {
			return false
		}
		m.Recalled = e.Scope
		return true
	})
}

func (r *Reconciler) patch(messageID, eventType string, fn func(m *message.Message) bool) Outcome {
	m := r.store.Message(messageID)
	if m == nil {
		return r.drop(eventType, messageID)
	}
	convID := m.ConversationID
	changed := r.store.UpdateMessage(messageID, fn)
	r.buffer.ResolvePatches(messageID)
	if changed {
		r.agg.Refresh(convID)
	}
	return Outcome{Changed: changed}
}

func (r *Reconciler) groupCreated(e events.GroupCreated) Outcome {
	c := e.Conversation.ToConversation()
	if !c.HasParticipant(r.store.Self()) {
		return r.drop(e.EventType(), c.ID)
	}
	out := Outcome{Refresh: true}
	if r.store.Conversation(c.ID) == nil {
		r.store.PutConversation(c)
		out.Changed = true
	}
	return out
}

func (r *Reconciler) participantsChanged(e events.ParticipantsChanged) Outcome {
	users := e.UserIDs
	if e.Type == events.EventTypeGroupLeft && len(users) == 0 && e.ActorID != "" {
		users = []string{e.ActorID}
	}
	self := r.store.Self()
	includesSelf := false
	for _, id := range users {
		if id == self {
			includesSelf = true
			break
		}
	}
	added := e.Type == events.EventTypeParticipantsAdded

	if includesSelf {
		out := Outcome{Refresh: true}
		if added {
			return out
		}
		wasOpen := r.store.OpenID() == e.ConversationID
		if r.store.RemoveConversation(e.ConversationID) {
			out.Changed = true
			out.ClearSelection = wasOpen
			if e.Type == events.EventTypeParticipantsRemoved {
				out.Notices = append(out.Notices, Notice{Kind: NoticeRemoved, ConversationID: e.ConversationID})
			}
		}
		return out
	}

	if r.store.Conversation(e.ConversationID) == nil {
		return r.drop(e.EventType(), e.ConversationID)
	}
	changed := r.store.UpdateConversation(e.ConversationID, func(c *conversation.Conversation) bool {
		var next []string
		if added {
			next = conversation.WithParticipants(c.Participants, users)
		} else {
			next = conversation.WithoutParticipants(c.Participants, users)
		}
		if conversation.SameParticipants(c.Participants, next) {
			return false
		}
		c.Participants = next
		return true
	})
	return Outcome{Changed: changed}
}

func (r *Reconciler) infoEdited(e events.GroupInfoEdited) Outcome {
	if r.store.Conversation(e.ConversationID) == nil {
		return r.drop(e.EventType(), e.ConversationID)
	}
	changed := r.store.UpdateConversation(e.ConversationID, func(c *conversation.Conversation) bool {
		if c.DisplayName == e.DisplayName {
			return false
		}
		c.DisplayName = e.DisplayName
		return true
	})
	return Outcome{Changed: changed}
}

func (r *Reconciler) commandError(e events.CommandError) Outcome {
	rb, found := r.buffer.Reject(e.CommandType, e.RequestID, e.FailedItems...)
	if !found {
		r.log.Warn("command error matched nothing outstanding",
			zap.String("command_type", e.CommandType),
			zap.String("request_id", e.RequestID),
		)
	}
	kind := NoticeRejected
	if len(e.FailedItems) > 0 {
		kind = NoticePartialFailure
	}
	return Outcome{
		Changed: rb.Changed,
		Notices: []Notice{{
			Kind:        kind,
			CommandType: e.CommandType,
			RequestID:   e.RequestID,
			Reason:      e.Reason,
			FailedItems: e.FailedItems,
		}},
	}
}
