package loop

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one named command. Params carry JSON-compatible
// values as decoded from the envelope (numbers arrive as float64).
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Registry maps command names to handlers and implements CommandExecutor.
// An allow-list fixed at construction time decides which registered commands
// may execute; a nil or empty allow-list permits every registered command.
type Registry struct {
	handlers map[string]HandlerFunc
	allowed  map[string]bool
	mu       sync.RWMutex
}

// NewRegistry creates a Registry. The allowed names are fixed for the
// registry's lifetime so run behavior stays reproducible.
func NewRegistry(allowed []string) *Registry {
	r := &Registry{
		handlers: make(map[string]HandlerFunc),
	}
	if len(allowed) > 0 {
		r.allowed = make(map[string]bool, len(allowed))
		for _, name := range allowed {
			r.allowed[name] = true
		}
	}
	return r
}

// Register adds or replaces a handler.
func (r *Registry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Allowed reports whether name is registered and permitted by the
// allow-list. It matches the envelope.Parser validator signature.
func (r *Registry) Allowed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.handlers[name]; !ok {
		return false
	}
	return r.allowed == nil || r.allowed[name]
}

// Names returns the sorted names of all registered handlers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches one command to its handler.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	permitted := r.allowed == nil || r.allowed[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown command: %s", name)
	}
	if !permitted {
		return nil, fmt.Errorf("command %s is not allowed", name)
	}
	return fn(ctx, params)
}
