package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrNoHandler = errors.New("no handler registered for pattern")

// HandlerFunc processes one dispatched action. The returned value is
// whatever contract the handler's module exposes; for engine and feature
// services that is an engine.Result.
type HandlerFunc func(ctx context.Context, p Payload) any

// Bus is the in-process action dispatcher modules compose against. Feature
// modules register handlers under string patterns ("store:create",
// "user:find_all") during startup, then callers invoke them by pattern
// without importing the implementing module.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func New() *Bus {
	return &Bus{handlers: make(map[string]HandlerFunc)}
}

// Handle registers a handler under a pattern. A duplicate pattern is a
// composition bug and fails loudly at startup.
func (b *Bus) Handle(pattern string, h HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[pattern]; exists {
		return fmt.Errorf("pattern %q already registered", pattern)
	}
	b.handlers[pattern] = h
	return nil
}

// MustHandle is Handle for startup composition paths where a duplicate
// registration should abort the process.
func (b *Bus) MustHandle(pattern string, h HandlerFunc) {
	if err := b.Handle(pattern, h); err != nil {
		panic(err)
	}
}

// Has reports whether a handler is registered under the pattern.
func (b *Bus) Has(pattern string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[pattern]
	return ok
}

// Dispatch invokes the handler registered under the pattern. Every dispatch
// gets a fresh correlation id on the context for log lines downstream.
func (b *Bus) Dispatch(ctx context.Context, pattern string, p Payload) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[pattern]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatch %q: %w", pattern, ErrNoHandler)
	}

	ctx, _ = WithRequestID(ctx)
	return h(ctx, p), nil
}

type requestIDKey struct{}

// WithRequestID returns a context carrying a correlation id, generating a
// fresh one unless the context already has one.
func WithRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, requestIDKey{}, id), id
}

// RequestID returns the correlation id Dispatch attached to the context, or
// an empty string outside a dispatch.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
