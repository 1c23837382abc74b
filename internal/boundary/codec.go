package boundary

import (
	"fmt"
	"reflect"

	cbor "github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode, decMode = em, dm
}

// Encode serializes an envelope into a frame. Store traffic (Value,
// Snapshot) is deep-copied through CBOR, except for inherently non-copyable
// values (ports, surfaces, render targets) which are detached into the
// frame's move list. Result additionally moves raw byte buffers, per result
// transfer semantics. The input envelope is never mutated.
func Encode(env Envelope) (Frame, error) {
	w := newWalker()

	shadow := Envelope{
		Kind: env.Kind,
		ID:   env.ID,
		Key:  env.Key,
	}
	shadow.Value = w.detach(env.Value)
	if env.Snapshot != nil {
		snap := make(map[string]any, len(env.Snapshot))
		for k, v := range env.Snapshot {
			snap[k] = w.detach(v)
		}
		shadow.Snapshot = snap
	}
	w.moveBytes = true
	shadow.Result = w.detach(env.Result)

	payload, err := encMode.Marshal(shadow)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return Frame{Payload: payload, Moved: w.moved}, nil
}

// Decode reconstructs an envelope from a frame, substituting moved values
// back into their placeholder positions.
func Decode(f Frame) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(f.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	env.Value = reattach(env.Value, f.Moved)
	for k, v := range env.Snapshot {
		env.Snapshot[k] = reattach(v, f.Moved)
	}
	env.Result = reattach(env.Result, f.Moved)

	return env, nil
}

// Clone copies v the way a context boundary would: structural deep copy for
// ordinary values, reference transfer for move-eligible ones. Numbers come
// back in CBOR's decoded forms (int64, uint64, float64).
func Clone(v any) (any, error) {
	f, err := Encode(Envelope{Kind: KindMemoryUpdate, Value: v})
	if err != nil {
		return nil, err
	}
	env, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return env.Value, nil
}
