package boundary

import (
	"testing"
)

func TestDetectMovesByteBuffer(t *testing.T) {
	buf := []byte{1, 2, 3}
	moved := DetectMoves(buf)
	if len(moved) != 1 {
		t.Fatalf("len(moved) = %d, want 1", len(moved))
	}
	if got, ok := moved[0].([]byte); !ok || &got[0] != &buf[0] {
		t.Error("detected buffer is not the original backing array")
	}
}

func TestDetectMovesPort(t *testing.T) {
	a, b := NewPortPair()
	defer a.Close()
	defer b.Close()

	moved := DetectMoves(map[string]any{"port": a})
	if len(moved) != 1 {
		t.Fatalf("len(moved) = %d, want 1", len(moved))
	}
	if moved[0] != a {
		t.Error("detected port is not the original")
	}
}

func TestDetectMovesSurfaceAndTarget(t *testing.T) {
	s := NewSurface(2, 2)
	rt := NewRenderTarget(4, 4)

	moved := DetectMoves([]any{s, rt, "plain string", 7})
	if len(moved) != 2 {
		t.Fatalf("len(moved) = %d, want 2 (surface and render target)", len(moved))
	}
	if moved[0] != s || moved[1] != rt {
		t.Errorf("moved = %v, want original surface then render target", moved)
	}
}

func TestDetectMovesNested(t *testing.T) {
	buf := []byte{9}
	v := map[string]any{
		"outer": []any{
			map[string]any{"inner": buf},
		},
	}

	moved := DetectMoves(v)
	if len(moved) != 1 {
		t.Fatalf("len(moved) = %d, want 1", len(moved))
	}
}

func TestDetachSharedMap(t *testing.T) {
	inner := map[string]any{"n": 1}
	v := map[string]any{"a": inner, "b": inner}

	w := newWalker()
	shadow := w.detach(v).(map[string]any)

	for _, key := range []string{"a", "b"} {
		m, ok := shadow[key].(map[string]any)
		if !ok {
			t.Fatalf("shadow[%q] = %v (%T), want the shared map at both positions", key, shadow[key], shadow[key])
		}
		if m["n"] != 1 {
			t.Errorf("shadow[%q][n] = %v, want 1", key, m["n"])
		}
	}
}

func TestDetachSharedSlice(t *testing.T) {
	s := []int{1, 2, 3}
	v := map[string]any{"x": s, "y": s}

	w := newWalker()
	shadow := w.detach(v).(map[string]any)

	for _, key := range []string{"x", "y"} {
		got, ok := shadow[key].([]any)
		if !ok || len(got) != 3 {
			t.Fatalf("shadow[%q] = %v, want the shared slice at both positions", key, shadow[key])
		}
	}
}

func TestDetectMovesSharedPortOnce(t *testing.T) {
	a, b := NewPortPair()
	defer a.Close()
	defer b.Close()

	moved := DetectMoves([]any{a, a, map[string]any{"again": a}})
	if len(moved) != 1 {
		t.Fatalf("len(moved) = %d, want 1 for three references to one port", len(moved))
	}
	if moved[0] != a {
		t.Error("detected port is not the original")
	}
}

func TestDetectMovesCycle(t *testing.T) {
	v := map[string]any{}
	v["self"] = v

	// Must terminate and find nothing to move.
	if moved := DetectMoves(v); len(moved) != 0 {
		t.Errorf("moved = %v, want empty", moved)
	}
}

func TestDetachReattachRoundTrip(t *testing.T) {
	a, b := NewPortPair()
	defer a.Close()
	defer b.Close()
	buf := []byte{1, 2, 3}

	w := newWalker()
	w.moveBytes = true
	shadow := w.detach(map[string]any{
		"port":  a,
		"data":  buf,
		"label": "copied",
	})

	if len(w.moved) != 2 {
		t.Fatalf("len(moved) = %d, want 2", len(w.moved))
	}

	back, ok := reattach(shadow, w.moved).(map[string]any)
	if !ok {
		t.Fatalf("reattached value is %T, want map[string]any", back)
	}
	if back["port"] != a {
		t.Error("port not reattached to the original")
	}
	if got, ok := back["data"].([]byte); !ok || &got[0] != &buf[0] {
		t.Error("byte buffer not reattached to the original backing array")
	}
	if back["label"] != "copied" {
		t.Errorf("label = %v, want %q", back["label"], "copied")
	}
}

func TestDetachBytesCopiedWhenNotMoveBytes(t *testing.T) {
	buf := []byte{1, 2, 3}

	w := newWalker()
	shadow := w.detach(map[string]any{"data": buf})

	if len(w.moved) != 0 {
		t.Fatalf("moved = %v, want empty when byte moves are off", w.moved)
	}
	m := shadow.(map[string]any)
	if _, ok := m["data"].([]byte); !ok {
		t.Errorf("shadow data = %T, want []byte passed through for copying", m["data"])
	}
}
