// Package worker wraps a spawned execution context in a coordinator-side
// handle with an explicit lifecycle and a single termination event.
package worker

import "github.com/seantiz/foundry/internal/boundary"

// ExecutionContext is the capability the coordinator holds over one isolated
// execution context: send a message in, receive messages out, and force
// termination. Implementations own the transport; the coordinator never
// shares memory with the context.
type ExecutionContext interface {
	// Send delivers one message into the context. It fails once the
	// context has been killed.
	Send(env boundary.Envelope) error

	// Messages returns the stream of messages emitted by the context.
	// The channel is closed when the context dies.
	Messages() <-chan boundary.Envelope

	// Kill forcibly destroys the context. It is idempotent.
	Kill() error
}
