// Package boundary defines the message shapes and copy/move semantics for
// values crossing an execution-context boundary. Contexts share no memory;
// everything they exchange is serialized through this package, except for
// move-eligible values which transfer ownership by reference.
package boundary

// Kind discriminates the messages exchanged with an execution context.
type Kind string

// Message kinds. The first three flow coordinator→context, the last two
// context→coordinator.
const (
	KindMemoryID      Kind = "shared-memory-id"
	KindMemoryInit    Kind = "shared-memory-init"
	KindMemoryUpdate  Kind = "shared-memory-update"
	KindMemoryUpdated Kind = "shared-memory-updated"
	KindTerminate     Kind = "thread-terminate"
)

// Envelope is the single message shape exchanged with an execution context.
// Which fields are populated depends on Kind.
type Envelope struct {
	Kind     Kind           `cbor:"kind"`
	ID       string         `cbor:"id,omitempty"`
	Key      string         `cbor:"key,omitempty"`
	Value    any            `cbor:"value,omitempty"`
	Snapshot map[string]any `cbor:"snapshot,omitempty"`
	Result   any            `cbor:"result,omitempty"`
}
