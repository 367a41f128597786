// Package typing debounces typing indicators into start/stop signals.
package typing

import (
	"time"

	"chat-sync/internal/commands"
)

const DefaultIdle = 2 * time.Second

// Scheduler runs fn once after d and returns a func that cancels it. The
// engine's scheduler delivers fn on its own loop so the coordinator never
// runs concurrently with itself.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Coordinator is not safe for concurrent use.
type Coordinator struct {
	idle  time.Duration
	sched Scheduler
	emit  func(commands.TypingCommand)

	active string
	cancel func()
	gen    uint64
}

func NewCoordinator(sched Scheduler, idle time.Duration, emit func(commands.TypingCommand)) *Coordinator {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Coordinator{idle: idle, sched: sched, emit: emit}
}

// Notify records a keystroke in conversationID. The first keystroke after an
// idle period emits a start; every keystroke pushes the stop back by idle.
func (c *Coordinator) Notify(conversationID string) {
	if conversationID == "" {
		return
	}
	if c.active != "" && c.active != conversationID {
		c.stop()
	}
	if c.active == "" {
		c.active = conversationID
		c.emit(commands.TypingCommand{ConversationID: conversationID, Started: true})
	}
	c.schedule()
}

// Cancel emits a stop now if a start is outstanding. Input cleared,
// conversation switch and shutdown all end up here.
func (c *Coordinator) Cancel() {
	if c.active != "" {
		c.stop()
	}
}

// Active returns the conversation with an outstanding start, or "".
func (c *Coordinator) Active() string {
	return c.active
}

func (c *Coordinator) schedule() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = c.sched.AfterFunc(c.idle, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	if gen != c.gen || c.active == "" {
		return
	}
	c.stop()
}

func (c *Coordinator) stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	id := c.active
	c.active = ""
	c.emit(commands.TypingCommand{ConversationID: id})
}
