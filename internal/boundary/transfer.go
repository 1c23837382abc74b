package boundary

import (
	"fmt"
	"reflect"
)

// moveKey marks a placeholder left in an encoded payload where a
// move-eligible sub-value was detached.
const moveKey = "__foundry-move__"

// escKey wraps a detached user map whose own shape would otherwise read as
// a move placeholder or an escape wrapper on the way back in.
const escKey = "__foundry-esc__"

// DetectMoves recursively walks v and collects every move-eligible
// sub-value: raw byte buffers, Ports, Surfaces, and RenderTargets. The
// returned list is what a transport should move rather than copy. The walk
// is cycle-safe and never mutates v; a value with no move-eligible
// sub-values yields an empty list. An object referenced from several places
// is listed once.
func DetectMoves(v any) []any {
	w := newWalker()
	w.moveBytes = true
	w.detach(v)
	return w.moved
}

type walker struct {
	moved []any

	// stack marks pointers on the current walk path. Re-entering one is a
	// cycle and is cut; a value merely referenced from two places is
	// walked again so both occurrences survive.
	stack map[uintptr]bool

	// placed memoizes the placeholder issued for each moved object, so an
	// object referenced twice moves once and reattaches as one object.
	placed map[uintptr]map[string]any

	// moveBytes selects result semantics: byte buffers transfer by
	// reference. Store traffic leaves it off so buffers are copied by the
	// codec like any other value.
	moveBytes bool
}

func newWalker() *walker {
	return &walker{
		stack:  make(map[uintptr]bool),
		placed: make(map[uintptr]map[string]any),
	}
}

// detach returns a copy-safe shadow of v: move-eligible sub-values are
// replaced by index placeholders and appended to w.moved, and composites are
// rebuilt from plain maps, slices, and scalars so the CBOR codec can clone
// them without touching the originals.
func (w *walker) detach(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if w.moveBytes {
			return w.move(x)
		}
		// Copied: CBOR re-encodes the bytes, so the receiver gets its
		// own backing array.
		return x
	case *Port:
		return w.moveOnce(x)
	case *Surface:
		return w.moveOnce(x)
	case *RenderTarget:
		return w.moveOnce(x)
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return w.detach(rv.Elem().Interface())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		p := rv.Pointer()
		if w.stack[p] {
			return nil
		}
		w.stack[p] = true
		out := w.detach(rv.Elem().Interface())
		delete(w.stack, p)
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		p := rv.Pointer()
		if w.stack[p] {
			return nil
		}
		w.stack[p] = true
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = w.detach(rv.Index(i).Interface())
		}
		delete(w.stack, p)
		return out
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = w.detach(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		p := rv.Pointer()
		if w.stack[p] {
			return nil
		}
		w.stack[p] = true
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKeyString(iter.Key())] = w.detach(iter.Value().Interface())
		}
		delete(w.stack, p)
		return escapeMap(out)
	case reflect.Struct:
		// Field names cannot contain hyphens, so struct shadows never
		// collide with the sentinels and need no escaping.
		rt := rv.Type()
		out := make(map[string]any, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			out[f.Name] = w.detach(rv.Field(i).Interface())
		}
		return out
	default:
		// Funcs, channels, and other unrepresentable kinds do not cross
		// the boundary.
		return nil
	}
}

func (w *walker) move(v any) map[string]any {
	idx := len(w.moved)
	w.moved = append(w.moved, v)
	return map[string]any{moveKey: idx}
}

// moveOnce issues one placeholder per moved object, keyed by its pointer, so
// shared references reattach to the same object on the far side.
func (w *walker) moveOnce(v any) map[string]any {
	p := reflect.ValueOf(v).Pointer()
	if ph, ok := w.placed[p]; ok {
		return ph
	}
	ph := w.move(v)
	w.placed[p] = ph
	return ph
}

// escapeMap wraps a detached user map that happens to carry a sentinel key,
// so reattach cannot mistake it for a placeholder.
func escapeMap(m map[string]any) map[string]any {
	_, clash := m[moveKey]
	if !clash {
		_, clash = m[escKey]
	}
	if !clash {
		return m
	}
	return map[string]any{escKey: m}
}

func mapKeyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

// reattach substitutes moved values back into a decoded payload, replacing
// each placeholder by the referenced entry of moved and unwrapping escaped
// user maps.
func reattach(v any, moved []any) any {
	switch x := v.(type) {
	case map[string]any:
		if idx, ok := moveIndex(x); ok {
			if idx < 0 || idx >= len(moved) {
				return nil
			}
			return moved[idx]
		}
		if inner, ok := escapedMap(x); ok {
			for k, vv := range inner {
				inner[k] = reattach(vv, moved)
			}
			return inner
		}
		for k, vv := range x {
			x[k] = reattach(vv, moved)
		}
		return x
	case []any:
		for i := range x {
			x[i] = reattach(x[i], moved)
		}
		return x
	default:
		return x
	}
}

func moveIndex(m map[string]any) (int, bool) {
	if len(m) != 1 {
		return 0, false
	}
	v, ok := m[moveKey]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

func escapedMap(m map[string]any) (map[string]any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	v, ok := m[escKey]
	if !ok {
		return nil, false
	}
	inner, ok := v.(map[string]any)
	return inner, ok
}
