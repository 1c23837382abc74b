package spawn

import (
	"sync"

	"github.com/seantiz/foundry/internal/boundary"
)

// Env is a handler's view of its execution context: the assigned ID, the
// boundary-copied task arguments, a private replica of the shared store, and
// the termination signal. It is the only object a handler receives; nothing
// else in the process is reachable from inside a context.
type Env struct {
	emit   func(boundary.Envelope) bool
	killed <-chan struct{}
	args   any

	mu      sync.RWMutex
	id      string
	seeded  bool
	replica map[string]any
}

// ID returns the identifier the coordinator assigned to this context.
func (e *Env) ID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

// Args returns the task arguments as they arrived through the boundary.
func (e *Env) Args() any {
	return e.args
}

// Done is closed when the context is forcibly destroyed. Long-running
// handlers may watch it to stop early; nothing requires them to.
func (e *Env) Done() <-chan struct{} {
	return e.killed
}

// Get reads a key from the local shared-store replica.
func (e *Env) Get(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.replica[key]
	return v, ok
}

// Set writes a key to the local replica and publishes the write to the
// coordinator, which fans it out to every other running context.
func (e *Env) Set(key string, value any) {
	e.mu.Lock()
	e.replica[key] = value
	e.mu.Unlock()

	e.emit(boundary.Envelope{Kind: boundary.KindMemoryUpdated, Key: key, Value: value})
}

// Exit sends the termination signal carrying result. The coordinator
// responds by tearing the context down; result may be nil.
func (e *Env) Exit(result any) {
	e.emit(boundary.Envelope{Kind: boundary.KindTerminate, Result: result})
}

func (e *Env) setID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = id
}

// seed merges the launch-time snapshot into the replica and marks the
// environment ready for the handler to start.
func (e *Env) seed(snapshot map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range snapshot {
		e.replica[k] = v
	}
	e.seeded = true
}

// applyUpdate overwrites one replica entry with a value replicated from the
// coordinator. Last write wins; there is no cross-context ordering.
func (e *Env) applyUpdate(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replica[key] = value
}

func (e *Env) ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seeded
}
