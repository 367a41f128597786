package optimistic

import (
	"chat-sync/internal/commands"
	"chat-sync/internal/domain/message"
	"chat-sync/internal/reaction"
	chat_errors "chat-sync/pkg/errors"

	"go.uber.org/zap"
)

type opKind int

const (
	opMessage opKind = iota
	opReaction
	opPatch
	opCommand
)

type op struct {
	requestID string
	cmd       commands.Command
	kind      opKind
	attempts  int
	acked     bool
	failed    bool

	// opMessage
	localIDs []string

	// opReaction and opPatch
	messageID string
	emoji     string
	remove    bool
	patch     patch
	changed   bool
}

type field int

const (
	fieldRecalled field = iota
	fieldPinned
	fieldContent
)

type content struct {
	text   string
	edited bool
}

// patch is a single field change with the value it replaced.
type patch struct {
	field field
	prev  any
	next  any
}

func (p patch) holds(m *message.Message, v any) bool {
	switch p.field {
	case fieldRecalled:
		return m.Recalled == v.(message.RecallScope)
	case fieldPinned:
		return m.Pinned == v.(bool)
	case fieldContent:
		c := v.(content)
		return m.Content == c.text && m.Edited == c.edited
	}
	return false
}

func (p patch) apply(m *message.Message, v any) bool {
	if p.holds(m, v) {
		return false
	}
	switch p.field {
	case fieldRecalled:
		m.Recalled = v.(message.RecallScope)
	case fieldPinned:
		m.Pinned = v.(bool)
	case fieldContent:
		c := v.(content)
		m.Content, m.Edited = c.text, c.edited
	}
	return true
}

// Rollback describes what Reject or a terminal Fail undid.
type Rollback struct {
	RequestID   string
	CommandType string
	RemovedIDs  []string
	Changed     bool
}

func (b *Buffer) track(o *op) {
	o.attempts = 1
	b.ops[o.requestID] = o
	b.order = append(b.order, o.requestID)
}

func (b *Buffer) forget(requestID string) {
	delete(b.ops, requestID)
	for i, id := range b.order {
		if id == requestID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

// Outstanding returns the number of tracked commands.
func (b *Buffer) Outstanding() int {
	return len(b.ops)
}

// Ack records that the transport accepted a command. Placeholders stay
// pending until their echo arrives; commands with no local change are done.
func (b *Buffer) Ack(requestID string) bool {
	o, ok := b.ops[requestID]
	if !ok {
		return false
	}
	o.acked = true
	o.failed = false
	if o.kind == opCommand || ((o.kind == opReaction || o.kind == opPatch) && !o.changed) {
		b.forget(requestID)
	}
	return true
}

// Fail records a send failure. Transport outages leave the change in place
// and mark it retryable until MaxAttempts is spent; anything else, or the
// last attempt, rolls the change back.
func (b *Buffer) Fail(requestID string, err error) (bool, Rollback) {
	o, ok := b.ops[requestID]
	if !ok {
		return false, Rollback{}
	}
	if chat_errors.IsRetryable(err) && o.attempts < b.maxAttempts {
		o.failed = true
		b.setRetryable(o, true)
		b.log.Warn("command send failed, will retry",
			zap.String("request_id", requestID),
			zap.String("command_type", o.cmd.CommandType()),
			zap.Int("attempt", o.attempts),
			zap.Error(err),
		)
		return true, Rollback{RequestID: requestID, CommandType: o.cmd.CommandType()}
	}
	b.log.Warn("command failed permanently",
		zap.String("request_id", requestID),
		zap.String("command_type", o.cmd.CommandType()),
		zap.Int("attempt", o.attempts),
		zap.Error(err),
	)
	return false, b.rollback(o)
}

// Retry returns the command of a failed send so it can be issued again.
func (b *Buffer) Retry(requestID string) (commands.Command, error) {
	o, ok := b.ops[requestID]
	if !ok || !o.failed {
		return nil, chat_errors.ErrNotPending
	}
	o.failed = false
	o.attempts++
	b.setRetryable(o, false)
	return o.cmd, nil
}

// Retryable lists the request ids waiting for a retry, oldest first.
func (b *Buffer) Retryable() []string {
	var ids []string
	for _, id := range b.order {
		if b.ops[id].failed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *Buffer) setRetryable(o *op, retryable bool) {
	for _, id := range o.localIDs {
		b.store.UpdateMessage(id, func(m *message.Message) bool {
			if !m.IsPending() || m.Retryable == retryable {
				return false
			}
			m.Retryable = retryable
			return true
		})
	}
}

// Reject undoes the command the server refused. Only an error without a
// request id falls back to the oldest outstanding command of the same type;
// an id that is no longer tracked (a redelivered error, or one arriving after
// the change was confirmed) undoes nothing. When failedItems names
// conversations or client message ids, only the matching placeholders of a
// send or forward are removed.
func (b *Buffer) Reject(commandType, requestID string, failedItems ...string) (Rollback, bool) {
	var o *op
	if requestID == "" {
		o = b.oldest(commandType)
	} else if known, ok := b.ops[requestID]; ok && (commandType == "" || known.cmd.CommandType() == commandType) {
		o = known
	}
	if o == nil {
		return Rollback{RequestID: requestID, CommandType: commandType}, false
	}
	if len(failedItems) > 0 && o.kind == opMessage {
		return b.rollbackPlaceholders(o, failedItems), true
	}
	return b.rollback(o), true
}

func (b *Buffer) rollbackPlaceholders(o *op, failedItems []string) Rollback {
	failed := make(map[string]struct{}, len(failedItems))
	for _, item := range failedItems {
		failed[item] = struct{}{}
	}
	rb := Rollback{RequestID: o.requestID, CommandType: o.cmd.CommandType()}
	touched := make(map[string]struct{})
	kept := o.localIDs[:0]
	for _, id := range o.localIDs {
		m := b.store.Message(id)
		if m == nil {
			continue
		}
		_, byConv := failed[m.ConversationID]
		_, byClient := failed[m.ClientMessageID]
		if !byConv && !byClient {
			kept = append(kept, id)
			continue
		}
		convID := m.ConversationID
		if m.IsPending() && b.store.RemoveMessage(id) {
			rb.RemovedIDs = append(rb.RemovedIDs, id)
			touched[convID] = struct{}{}
		}
	}
	o.localIDs = kept
	if len(o.localIDs) == 0 {
		b.forget(o.requestID)
	}
	for convID := range touched {
		b.agg.Refresh(convID)
	}
	rb.Changed = len(touched) > 0
	return rb
}

func (b *Buffer) oldest(commandType string) *op {
	for _, id := range b.order {
		if o := b.ops[id]; o.cmd.CommandType() == commandType {
			return o
		}
	}
	return nil
}

func (b *Buffer) rollback(o *op) Rollback {
	b.forget(o.requestID)
	rb := Rollback{RequestID: o.requestID, CommandType: o.cmd.CommandType()}
	touched := make(map[string]struct{})
	switch o.kind {
	case opMessage:
		for _, id := range o.localIDs {
			m := b.store.Message(id)
			if m == nil || !m.IsPending() {
				continue
			}
			convID := m.ConversationID
			if b.store.RemoveMessage(id) {
				rb.RemovedIDs = append(rb.RemovedIDs, id)
				touched[convID] = struct{}{}
			}
		}
	case opReaction:
		if !o.changed {
			break
		}
		self := b.store.Self()
		var convID string
		if b.store.UpdateMessage(o.messageID, func(m *message.Message) bool {
			convID = m.ConversationID
			var next message.Reactions
			var ok bool
			if o.remove {
				next, ok = reaction.Add(m.Reactions, o.emoji, self, self)
			} else {
				next, ok = reaction.Remove(m.Reactions, o.emoji, self, self)
			}
			if ok {
				m.Reactions = next
			}
			return ok
		}) {
			touched[convID] = struct{}{}
		}
	case opPatch:
		if !o.changed {
			break
		}
		var convID string
		if b.store.UpdateMessage(o.messageID, func(m *message.Message) bool {
			convID = m.ConversationID
			if !o.patch.holds(m, o.patch.next) {
				return false
			}
			return o.patch.apply(m, o.patch.prev)
		}) {
			touched[convID] = struct{}{}
		}
	}
	for convID := range touched {
		b.agg.Refresh(convID)
	}
	rb.Changed = len(touched) > 0
	return rb
}

// ResolveEcho retires a placeholder whose authoritative copy arrived.
func (b *Buffer) ResolveEcho(localID string) bool {
	for _, reqID := range b.order {
		o := b.ops[reqID]
		if o.kind != opMessage {
			continue
		}
		for i, id := range o.localIDs {
			if id != localID {
				continue
			}
			o.localIDs = append(o.localIDs[:i], o.localIDs[i+1:]...)
			if len(o.localIDs) == 0 {
				b.forget(reqID)
			}
			return true
		}
	}
	return false
}

// ResolveReactions normalizes an authoritative snapshot for messageID and
// lays the viewing user's unconfirmed reaction changes back on top of it.
// Changes are matched against the snapshot oldest first: once one is not yet
// reflected, it and every later change are re-applied.
func (b *Buffer) ResolveReactions(messageID string, snapshot message.Reactions) message.Reactions {
	self := b.store.Self()
	next := reaction.Replace(snapshot, self)
	pending := false
	for _, reqID := range append([]string(nil), b.order...) {
		o := b.ops[reqID]
		if o.kind != opReaction || o.messageID != messageID {
			continue
		}
		has := reaction.Has(next, o.emoji, self)
		if !pending && has != o.remove {
			b.forget(reqID)
			continue
		}
		pending = true
		if o.remove {
			next, _ = reaction.Remove(next, o.emoji, self, self)
		} else {
			next, _ = reaction.Add(next, o.emoji, self, self)
		}
	}
	return next
}

// ResolvePatches retires field changes on messageID that the server state
// now reflects.
func (b *Buffer) ResolvePatches(messageID string) {
	m := b.store.Message(messageID)
	if m == nil {
		return
	}
	for _, reqID := range append([]string(nil), b.order...) {
		o := b.ops[reqID]
		if o.kind == opPatch && o.messageID == messageID && o.patch.holds(m, o.patch.next) {
			b.forget(reqID)
		}
	}
}
