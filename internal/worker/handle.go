package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/seantiz/foundry/internal/boundary"
)

// Handle states.
const (
	StateStarting int32 = iota
	StateRunning
	StateTerminated
)

// StateName returns a human-readable name for a handle state.
func StateName(s int32) string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// UpdateFunc observes a shared-store write reported by the context.
type UpdateFunc func(h *Handle, key string, value any)

// Handle is the coordinator-side proxy for one live execution context. It
// normalizes however the context ends — a thread-terminate message or a
// forced Terminate — into one termination event that fires exactly once.
type Handle struct {
	id       string
	ectx     ExecutionContext
	onUpdate UpdateFunc
	logger   *slog.Logger

	state    atomic.Int32
	done     chan struct{}
	termOnce sync.Once

	mu     sync.Mutex
	result any
	forced bool
}

// New wraps ectx in a handle: it pushes the context's assigned ID and the
// current shared-store snapshot into the context, then starts consuming its
// messages. If either seed message cannot be delivered the handle is not
// viable and an error is returned; the caller still owns ectx in that case.
func New(id string, ectx ExecutionContext, snapshot map[string]any, onUpdate UpdateFunc, logger *slog.Logger) (*Handle, error) {
	h := &Handle{
		id:       id,
		ectx:     ectx,
		onUpdate: onUpdate,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryID, ID: id}); err != nil {
		return nil, fmt.Errorf("send id: %w", err)
	}
	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryInit, Snapshot: snapshot}); err != nil {
		return nil, fmt.Errorf("send store snapshot: %w", err)
	}

	h.state.Store(StateRunning)
	go h.pump()

	return h, nil
}

// ID returns the handle's immutable identifier.
func (h *Handle) ID() string {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handle) State() int32 {
	return h.state.Load()
}

// Done returns a channel closed when the termination event fires.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the result carried by the context's termination signal, or
// nil when it provided none (or was force-terminated). Meaningful only after
// Done is closed.
func (h *Handle) Result() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// PushUpdate forwards one shared-store write into the context.
func (h *Handle) PushUpdate(key string, value any) error {
	return h.ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryUpdate, Key: key, Value: value})
}

// Killed reports whether the handle went down by forced termination rather
// than the context's own termination signal. Meaningful only after Done is
// closed.
func (h *Handle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forced
}

// Terminate forces the context down with no result. Calling it on an
// already-terminated handle is a no-op and does not re-fire the event.
func (h *Handle) Terminate() {
	h.finish(nil, true)
}

// pump consumes the context's message stream until it terminates. A
// thread-terminate message is absorbed here — it never propagates to any
// other consumer — and any message of unrecognized kind is dropped so that
// malformed or future payloads cannot take the handle down.
func (h *Handle) pump() {
	for env := range h.ectx.Messages() {
		switch env.Kind {
		case boundary.KindMemoryUpdated:
			if h.onUpdate != nil {
				h.onUpdate(h, env.Key, env.Value)
			}
		case boundary.KindTerminate:
			h.finish(env.Result, false)
			return
		default:
			h.logger.Debug("dropping message of unknown kind",
				"handle_id", h.id,
				"kind", string(env.Kind),
			)
		}
	}

	// The context died without sending a termination signal.
	h.finish(nil, false)
}

// finish records the result, kills the underlying context, and fires the
// termination event. Exactly one caller wins; the rest are no-ops.
func (h *Handle) finish(result any, forced bool) {
	h.termOnce.Do(func() {
		h.mu.Lock()
		h.result = result
		h.forced = forced
		h.mu.Unlock()

		h.state.Store(StateTerminated)
		if err := h.ectx.Kill(); err != nil {
			h.logger.Debug("kill execution context", "handle_id", h.id, "error", err)
		}
		close(h.done)
	})
}
