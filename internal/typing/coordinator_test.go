package typing

import (
	"testing"
	"time"

	"chat-sync/internal/commands"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	fn        func()
	cancelled bool
}

type fakeScheduler struct {
	tasks []*task
	delay time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) func() {
	s.delay = d
	t := &task{fn: fn}
	s.tasks = append(s.tasks, t)
	return func() { t.cancelled = true }
}

// fireAll runs every task, including cancelled ones, the way a timer that
// already fired before Stop would.
func (s *fakeScheduler) fireAll() {
	tasks := s.tasks
	s.tasks = nil
	for _, t := range tasks {
		t.fn()
	}
}

func (s *fakeScheduler) live() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type recorder struct {
	got []string
}

func (r *recorder) emit(cmd commands.TypingCommand) {
	r.got = append(r.got, cmd.CommandType()+":"+cmd.ConversationID)
}

func setup() (*Coordinator, *fakeScheduler, *recorder) {
	sched := &fakeScheduler{}
	rec := &recorder{}
	return NewCoordinator(sched, 0, rec.emit), sched, rec
}

func TestStartOncePerIdlePeriod(t *testing.T) {
	c, sched, rec := setup()
	c.Notify("x")
	c.Notify("x")
	c.Notify("x")

	assert.Equal(t, []string{"typing.start:x"}, rec.got)
	assert.Equal(t, DefaultIdle, sched.delay)
	assert.Equal(t, 1, sched.live())

	sched.fireAll()
	assert.Equal(t, []string{"typing.start:x", "typing.stop:x"}, rec.got)
	assert.Empty(t, c.Active())

	c.Notify("x")
	assert.Equal(t, "typing.start:x", rec.got[2])
}

func TestStaleFiringIsIgnored(t *testing.T) {
	c, sched, rec := setup()
	c.Notify("x")
	first := sched.tasks[0]
	c.Notify("x")

	first.fn()
	assert.Equal(t, []string{"typing.start:x"}, rec.got)
	assert.Equal(t, "x", c.Active())
}

func TestSwitchingConversationStopsFirst(t *testing.T) {
	c, sched, rec := setup()
	c.Notify("x")
	c.Notify("y")

	assert.Equal(t, []string{"typing.start:x", "typing.stop:x", "typing.start:y"}, rec.got)
	sched.fireAll()
	assert.Equal(t, "typing.stop:y", rec.got[len(rec.got)-1])
	assert.Len(t, rec.got, 4)
}

func TestCancel(t *testing.T) {
	c, sched, rec := setup()
	c.Cancel()
	assert.Empty(t, rec.got)

	c.Notify("x")
	c.Cancel()
	require.Equal(t, []string{"typing.start:x", "typing.stop:x"}, rec.got)
	assert.Zero(t, sched.live())

	sched.fireAll()
	assert.Len(t, rec.got, 2)
}

func TestNoTwoStartsWithoutStop(t *testing.T) {
	c, sched, rec := setup()
	for i := 0; i < 5; i++ {
		c.Notify("x")
		if i%2 == 1 {
			sched.fireAll()
		}
	}
	open := false
	for _, ev := range rec.got {
		switch ev {
		case "typing.start:x":
			require.False(t, open, "start without stop in %v", rec.got)
			open = true
		case "typing.stop:x":
			require.True(t, open)
			open = false
		}
	}
}
