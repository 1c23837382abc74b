package spawn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seantiz/foundry/internal/boundary"
)

// ErrKilled is returned by Send once the context has been destroyed.
var ErrKilled = errors.New("execution context killed")

// channelDepth bounds in-flight frames per direction. The worker side always
// drains its inbound channel, so senders only block transiently.
const channelDepth = 64

// taskContext is a goroutine-backed execution context. The handler goroutine
// and the coordinator share nothing: every message in either direction is
// encoded into a frame by the boundary codec, so ordinary values are copied
// and move-eligible values transfer by reference exactly once.
type taskContext struct {
	toWorker   chan boundary.Frame
	fromWorker chan boundary.Frame
	out        chan boundary.Envelope

	killed   chan struct{}
	killOnce sync.Once
	logger   *slog.Logger
}

func newTaskContext(u *unit, logger *slog.Logger) *taskContext {
	c := &taskContext{
		toWorker:   make(chan boundary.Frame, channelDepth),
		fromWorker: make(chan boundary.Frame, channelDepth),
		out:        make(chan boundary.Envelope, channelDepth),
		killed:     make(chan struct{}),
		logger:     logger,
	}

	go c.decode()
	go c.run(u)

	return c
}

// Send encodes one envelope and queues it for the worker side.
func (c *taskContext) Send(env boundary.Envelope) error {
	f, err := boundary.Encode(env)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	select {
	case c.toWorker <- f:
		return nil
	case <-c.killed:
		return ErrKilled
	}
}

// Messages returns the decoded stream of worker-side emissions. The channel
// closes once the context is killed.
func (c *taskContext) Messages() <-chan boundary.Envelope {
	return c.out
}

// Kill destroys the context. The handler goroutine cannot be preempted, but
// it is detached: everything it sends or publishes afterwards is dropped,
// and cooperative handlers can observe Env.Done to bail out.
func (c *taskContext) Kill() error {
	c.killOnce.Do(func() {
		close(c.killed)
	})
	return nil
}

// decode runs on the coordinator side, turning worker frames back into
// envelopes. Undecodable frames are dropped.
func (c *taskContext) decode() {
	for {
		select {
		case f := <-c.fromWorker:
			env, err := boundary.Decode(f)
			if err != nil {
				c.logger.Debug("dropping undecodable frame", "error", err)
				continue
			}
			select {
			case c.out <- env:
			case <-c.killed:
				close(c.out)
				return
			}
		case <-c.killed:
			close(c.out)
			return
		}
	}
}

// run is the worker side. It seeds the environment from the coordinator's
// id and snapshot messages before the handler starts, so state written
// before launch is visible from the handler's first instruction, then keeps
// applying replication traffic while the handler runs.
func (c *taskContext) run(u *unit) {
	e := &Env{
		replica: make(map[string]any),
		args:    u.args,
		killed:  c.killed,
		emit:    c.emit,
	}

	for !e.ready() {
		f, ok := c.recv()
		if !ok {
			return
		}
		c.apply(e, f)
	}

	go c.intake(e)

	u.handler(e)
	// A handler that returns without calling Exit leaves the context
	// alive and its slot occupied; only a termination signal or a forced
	// kill ends it.
}

// intake applies coordinator traffic to the local replica for the lifetime
// of the context.
func (c *taskContext) intake(e *Env) {
	for {
		f, ok := c.recv()
		if !ok {
			return
		}
		c.apply(e, f)
	}
}

func (c *taskContext) recv() (boundary.Frame, bool) {
	select {
	case f := <-c.toWorker:
		return f, true
	case <-c.killed:
		return boundary.Frame{}, false
	}
}

// apply interprets one coordinator message. Unknown kinds are ignored so a
// newer coordinator cannot crash an older context.
func (c *taskContext) apply(e *Env, f boundary.Frame) {
	env, err := boundary.Decode(f)
	if err != nil {
		c.logger.Debug("dropping undecodable frame", "error", err)
		return
	}

	switch env.Kind {
	case boundary.KindMemoryID:
		e.setID(env.ID)
	case boundary.KindMemoryInit:
		e.seed(env.Snapshot)
	case boundary.KindMemoryUpdate:
		e.applyUpdate(env.Key, env.Value)
	default:
		c.logger.Debug("dropping message of unknown kind", "kind", string(env.Kind))
	}
}

// emit encodes one worker-side envelope toward the coordinator. It reports
// false once the context is killed.
func (c *taskContext) emit(env boundary.Envelope) bool {
	f, err := boundary.Encode(env)
	if err != nil {
		c.logger.Debug("dropping unencodable message", "error", err)
		return false
	}

	select {
	case c.fromWorker <- f:
		return true
	case <-c.killed:
		return false
	}
}
