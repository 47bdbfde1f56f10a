// Package dispatch maps command names received over web access onto
// handlers.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// HandlerFunc runs one command. Its result is marshalled to JSON; a nil
// result becomes null.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// UnknownCommandError is returned for names nothing registered.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("Command '%s' not yet supported via web access", e.Command)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func New() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Commands lists registered names in sorted order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Dispatch(ctx context.Context, command string, raw json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	h, ok := r.handlers[command]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownCommandError{Command: command}
	}

	args, err := parseArgs(raw)
	if err != nil {
		return nil, err
	}
	v, err := h(ctx, args)
	if err != nil {
		return nil, err
	}
	if rm, ok := v.(json.RawMessage); ok {
		if rm == nil {
			return json.RawMessage("null"), nil
		}
		return rm, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", command, err)
	}
	return b, nil
}
