package commands

import (
	"context"
	"errors"
	"sync"
)

var ErrHandlerNotFound = errors.New("no handler registered for command type")

// Handler delivers a command somewhere, typically onto the transport session.
type Handler interface {
	Handle(ctx context.Context, cmd Command) error
}

type HandlerFunc func(ctx context.Context, cmd Command) error

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Bus routes outbound commands by type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	b.handlers[commandType] = handler
	b.mu.Unlock()
}

// RegisterAll binds one handler to every command type the engine issues.
func (b *Bus) RegisterAll(handler Handler) {
	for _, t := range AllTypes {
		b.Register(t, handler)
	}
}

func (b *Bus) Execute(ctx context.Context, cmd Command) error {
	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		return ErrHandlerNotFound
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	return h.Handle(ctx, cmd)
}
