// Package scheduler admits tasks into a bounded pool of execution contexts.
// It owns the FIFO overflow queue, the running set the concurrency ceiling
// counts against, and the coordinator's replica of the shared store, fanning
// store writes out to every other live context.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/sharedstore"
	"github.com/seantiz/foundry/internal/worker"
)

// DefaultLimit is the concurrency ceiling used when none is configured.
const DefaultLimit = 4

// ErrPurged is returned to queued Run callers whose task was discarded by
// Purge before it could launch.
var ErrPurged = errors.New("task purged before launch")

// Loader converts a task into a loadable execution unit. It is memoized per
// task identity: the same task always yields the same URI.
type Loader interface {
	Load(t *model.Task) (string, error)
}

// Spawner bootstraps an isolated execution context from a loadable unit.
// Spawning may fail; the failure surfaces to the Run caller.
type Spawner interface {
	SpawnContext(uri string) (worker.ExecutionContext, error)
}

type launchResult struct {
	handle *worker.Handle
	err    error
}

type pending struct {
	task  *model.Task
	ready chan launchResult
}

// Scheduler is safe for concurrent use. One mutex guards the limit, the
// queue, and the running set, so admission decisions are serialized.
type Scheduler struct {
	loader  Loader
	spawner Spawner
	store   *sharedstore.Store
	logger  *slog.Logger

	mu      sync.Mutex
	limit   int
	queue   []*pending
	running map[string]*worker.Handle
}

// New creates a scheduler with the given concurrency limit. Non-positive
// limits fall back to DefaultLimit.
func New(loader Loader, spawner Spawner, limit int, logger *slog.Logger) *Scheduler {
	if limit <= 0 {
		limit = DefaultLimit
	}

	s := &Scheduler{
		loader:  loader,
		spawner: spawner,
		store:   sharedstore.New(),
		logger:  logger,
		limit:   limit,
		running: make(map[string]*worker.Handle),
	}
	s.store.Watch(s.fanOut)
	limitGauge.Set(float64(limit))

	return s
}

// SetLimit changes the concurrency ceiling. Non-positive values are ignored,
// preserving the prior limit. Raising the limit drains the queue up to the
// new slack in FIFO order; lowering it never preempts running handles, it
// only throttles future launches.
func (s *Scheduler) SetLimit(n int) {
	if n <= 0 {
		s.logger.Warn("ignoring invalid concurrency limit", "limit", n)
		return
	}

	s.mu.Lock()
	s.limit = n
	s.mu.Unlock()

	limitGauge.Set(float64(n))
	s.drain()
}

// Run admits a task: it launches immediately when a slot is free, otherwise
// it queues the task FIFO and blocks until a slot opens, the context is
// canceled, or the queue is purged. On return the handle has been spawned
// and seeded with the shared-store snapshot. A spawn failure is returned to
// this caller and triggers another drain pass so it cannot stall the line.
func (s *Scheduler) Run(ctx context.Context, t *model.Task) (*worker.Handle, error) {
	s.mu.Lock()
	if len(s.running) < s.limit {
		h, err := s.launchLocked(t)
		s.mu.Unlock()
		if err != nil {
			s.drain()
			return nil, err
		}
		return h, nil
	}

	p := &pending{task: t, ready: make(chan launchResult, 1)}
	s.queue = append(s.queue, p)
	queueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	select {
	case res := <-p.ready:
		return res.handle, res.err
	case <-ctx.Done():
	}

	// Withdraw from the queue if the task is still waiting. If the drain
	// already took it, launch is imminent, so wait for the outcome.
	s.mu.Lock()
	for i, q := range s.queue {
		if q == p {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			queueDepth.Set(float64(len(s.queue)))
			s.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	s.mu.Unlock()

	res := <-p.ready
	return res.handle, res.err
}

// Execute composes Run with a wait for the handle's termination event,
// yielding the result the context exited with (nil when none).
func (s *Scheduler) Execute(ctx context.Context, t *model.Task) (any, error) {
	h, err := s.Run(ctx, t)
	if err != nil {
		return nil, err
	}

	select {
	case <-h.Done():
		return h.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Purge discards every queued task and force-terminates every running
// handle. Queued Run callers receive ErrPurged; each terminated handle fires
// its termination event once and leaves the running set through the same
// path as a natural exit.
func (s *Scheduler) Purge() {
	s.mu.Lock()
	dropped := s.queue
	s.queue = nil
	queueDepth.Set(0)
	victims := make([]*worker.Handle, 0, len(s.running))
	for _, h := range s.running {
		victims = append(victims, h)
	}
	s.mu.Unlock()

	for _, p := range dropped {
		p.ready <- launchResult{err: ErrPurged}
	}
	for _, h := range victims {
		h.Terminate()
	}
}

// RunningCount returns the number of handles occupying a slot.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// QueueLen returns the number of tasks waiting for a slot.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Limit returns the current concurrency ceiling.
func (s *Scheduler) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// Handles returns a snapshot of the running handles.
func (s *Scheduler) Handles() []*worker.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*worker.Handle, 0, len(s.running))
	for _, h := range s.running {
		out = append(out, h)
	}
	return out
}

// SharedState returns the coordinator's shared-store replica. Writes through
// it broadcast to every running context; reads see the coordinator's current
// view.
func (s *Scheduler) SharedState() *sharedstore.Store {
	return s.store
}

// launchLocked loads, spawns, and seeds one task. Callers hold s.mu.
func (s *Scheduler) launchLocked(t *model.Task) (*worker.Handle, error) {
	uri, err := s.loader.Load(t)
	if err != nil {
		spawnFailuresTotal.Inc()
		return nil, fmt.Errorf("load task %s: %w", t.ID, err)
	}

	ectx, err := s.spawner.SpawnContext(uri)
	if err != nil {
		spawnFailuresTotal.Inc()
		return nil, fmt.Errorf("spawn context for task %s: %w", t.ID, err)
	}

	h, err := worker.New(model.NewID(), ectx, s.store.Snapshot(), s.applyHandleWrite, s.logger)
	if err != nil {
		ectx.Kill()
		spawnFailuresTotal.Inc()
		return nil, fmt.Errorf("seed context for task %s: %w", t.ID, err)
	}

	s.running[h.ID()] = h
	runningGauge.Set(float64(len(s.running)))
	launchesTotal.Inc()
	s.logger.Debug("launched task", "task_id", t.ID, "handle_id", h.ID())

	go s.reap(h)
	return h, nil
}

// reap waits for one handle's termination event, frees its slot, and runs a
// drain pass. This is the sole trigger for starting queued tasks besides a
// limit increase.
func (s *Scheduler) reap(h *worker.Handle) {
	<-h.Done()

	s.mu.Lock()
	delete(s.running, h.ID())
	runningGauge.Set(float64(len(s.running)))
	s.mu.Unlock()

	terminationsTotal.Inc()
	s.drain()
}

// drain launches queued tasks while slots are free. It is iterative, never
// recursive: a failed launch resolves that caller with the error and the
// loop moves on to the next task.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || len(s.running) >= s.limit {
			s.mu.Unlock()
			return
		}
		p := s.queue[0]
		s.queue = s.queue[1:]
		queueDepth.Set(float64(len(s.queue)))
		h, err := s.launchLocked(p.task)
		s.mu.Unlock()

		p.ready <- launchResult{handle: h, err: err}
	}
}

// applyHandleWrite is the handle update callback: a context published a
// local write, so record it in the coordinator replica. The store listener
// then fans it out to every other context. Arrival order here is the
// last-write-wins tie-break for concurrent writers.
func (s *Scheduler) applyHandleWrite(h *worker.Handle, key string, value any) {
	s.store.SetFrom(h.ID(), key, value)
}

// fanOut pushes one applied write to every running handle except its origin.
// Queued tasks are skipped; they get a full snapshot at launch instead.
func (s *Scheduler) fanOut(origin, key string, value any) {
	s.mu.Lock()
	targets := make([]*worker.Handle, 0, len(s.running))
	for id, h := range s.running {
		if id == origin {
			continue
		}
		targets = append(targets, h)
	}
	s.mu.Unlock()

	for _, h := range targets {
		if err := h.PushUpdate(key, value); err != nil {
			s.logger.Debug("push store update", "handle_id", h.ID(), "error", err)
		}
	}
}
