package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as an entity identifier.
// IDs are labels for routing and bookkeeping, not security tokens.
func NewID() string {
	return ulid.Make().String()
}
