package spawn

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/seantiz/foundry/internal/boundary"
	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/worker"
)

const uriScheme = "mem://task/"

// unit is one loadable execution unit: a resolved handler plus its
// boundary-copied arguments.
type unit struct {
	name    string
	handler Handler
	args    any
}

// Host turns tasks into loadable units and loadable units into execution
// contexts. Load is memoized per task identity: the same task always yields
// the same URI.
type Host struct {
	reg    *Registry
	logger *slog.Logger

	mu    sync.Mutex
	uris  map[string]string // task ID → URI
	units map[string]*unit  // URI → unit
}

// NewHost creates a host backed by the given handler registry.
func NewHost(reg *Registry, logger *slog.Logger) *Host {
	return &Host{
		reg:    reg,
		logger: logger,
		uris:   make(map[string]string),
		units:  make(map[string]*unit),
	}
}

// Load resolves the task's handler and packages it as a loadable unit,
// returning a stable URI for it. Arguments are copied through the boundary
// codec here, once, so later mutations by the submitter cannot leak into the
// context.
func (h *Host) Load(t *model.Task) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if uri, ok := h.uris[t.ID]; ok {
		return uri, nil
	}

	fn, ok := h.reg.Resolve(t.Handler)
	if !ok {
		return "", fmt.Errorf("unknown handler %q", t.Handler)
	}

	args, err := boundary.Clone(t.Args)
	if err != nil {
		return "", fmt.Errorf("copy task args: %w", err)
	}

	uri := uriScheme + t.ID
	h.units[uri] = &unit{name: t.Handler, handler: fn, args: args}
	h.uris[t.ID] = uri
	return uri, nil
}

// SpawnContext launches the unit behind uri in a fresh execution context and
// returns the coordinator-side capability over it.
func (h *Host) SpawnContext(uri string) (worker.ExecutionContext, error) {
	h.mu.Lock()
	u, ok := h.units[uri]
	h.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no loaded unit for %q", uri)
	}

	return newTaskContext(u, h.logger), nil
}
