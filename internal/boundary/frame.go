package boundary

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum allowed frame payload (16 MiB).
const MaxFrameSize = 16 << 20

// Frame is one encoded message in transit between the coordinator and an
// execution context. Payload is the CBOR-encoded envelope with move-eligible
// sub-values replaced by index placeholders; Moved carries those sub-values
// by reference, in placeholder order. Ownership of the moved values passes
// with the frame.
type Frame struct {
	Payload []byte
	Moved   []any
}

// WriteFrame writes a length-prefixed payload to w.
// The wire format is a 4-byte big-endian length followed by the payload.
// Only byte-stream transports use this; moved values cannot cross a byte
// stream and must be rejected by the caller first.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame size %d exceeds maximum %d", len(payload), MaxFrameSize)
	}

	length := uint32(len(payload))
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// ReadFrame reads a length-prefixed payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return payload, nil
}
