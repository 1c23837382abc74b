// Package spawn provides the collaborators the scheduler consumes to turn a
// task into a live execution context: a handler registry, a memoizing
// loader, and a spawner whose contexts are goroutines reachable only through
// serialized message frames.
package spawn

import (
	"sort"
	"sync"
)

// Handler is the body of a task. It runs inside an isolated execution
// context with env as its only link to the rest of the process.
type Handler func(env *Env)

// Registry holds named task handlers. Tasks reference handlers by name; no
// source-level code ever crosses into a context.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given name, replacing any previous one.
func (r *Registry) Register(name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered handler names in sorted order.
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
