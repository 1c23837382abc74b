package spawn_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/foundry/internal/boundary"
	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/spawn"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRegistry(t *testing.T) {
	reg := spawn.NewRegistry()

	if _, ok := reg.Resolve("missing"); ok {
		t.Error("Resolve on an empty registry reported a handler")
	}

	reg.Register("b", func(env *spawn.Env) {})
	reg.Register("a", func(env *spawn.Env) {})

	if _, ok := reg.Resolve("a"); !ok {
		t.Error("Resolve(a) failed after Register")
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
}

func TestLoadMemoized(t *testing.T) {
	reg := spawn.NewRegistry()
	reg.Register("noop", func(env *spawn.Env) {})
	host := spawn.NewHost(reg, testLogger())

	task := model.NewTask("noop", nil)
	uri1, err := host.Load(task)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasSuffix(uri1, task.ID) {
		t.Errorf("URI %q does not embed the task ID %q", uri1, task.ID)
	}

	uri2, err := host.Load(task)
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}
	if uri1 != uri2 {
		t.Errorf("repeated Load returned %q then %q, want the same URI", uri1, uri2)
	}

	other, err := host.Load(model.NewTask("noop", nil))
	if err != nil {
		t.Fatalf("Load other task: %v", err)
	}
	if other == uri1 {
		t.Error("distinct tasks must get distinct URIs")
	}
}

func TestLoadUnknownHandler(t *testing.T) {
	host := spawn.NewHost(spawn.NewRegistry(), testLogger())
	if _, err := host.Load(model.NewTask("ghost", nil)); err == nil {
		t.Fatal("Load should fail for an unregistered handler")
	}
}

func TestLoadCopiesArgs(t *testing.T) {
	args := map[string]any{"n": 1}
	got := make(chan any, 1)

	reg := spawn.NewRegistry()
	reg.Register("probe", func(env *spawn.Env) {
		m := env.Args().(map[string]any)
		got <- m["n"]
		env.Exit(nil)
	})
	host := spawn.NewHost(reg, testLogger())

	task := model.NewTask("probe", args)
	uri, err := host.Load(task)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Mutate after Load; the context must not see the change.
	args["n"] = 99

	ectx := mustSpawn(t, host, uri)
	defer ectx.Kill()
	seed(t, ectx)

	select {
	case v := <-got:
		if v != uint64(1) {
			t.Errorf("handler saw args n = %v (%T), want the pre-mutation value 1", v, v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestSpawnContextUnknownURI(t *testing.T) {
	host := spawn.NewHost(spawn.NewRegistry(), testLogger())
	if _, err := host.SpawnContext("mem://task/nope"); err == nil {
		t.Fatal("SpawnContext should fail for an unloaded URI")
	}
}

func TestHandlerSeesSeedBeforeStart(t *testing.T) {
	reg := spawn.NewRegistry()
	got := make(chan any, 1)
	reg.Register("read", func(env *spawn.Env) {
		v, _ := env.Get("seeded-key")
		got <- v
		env.Exit(nil)
	})
	host := spawn.NewHost(reg, testLogger())

	uri, err := host.Load(model.NewTask("read", nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ectx := mustSpawn(t, host, uri)
	defer ectx.Kill()

	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryID, ID: "ctx-1"}); err != nil {
		t.Fatalf("send id: %v", err)
	}
	if err := ectx.Send(boundary.Envelope{
		Kind:     boundary.KindMemoryInit,
		Snapshot: map[string]any{"seeded-key": "seeded-value"},
	}); err != nil {
		t.Fatalf("send init: %v", err)
	}

	select {
	case v := <-got:
		if v != "seeded-value" {
			t.Errorf("handler read %v, want the launch snapshot value", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestSetEmitsUpdate(t *testing.T) {
	reg := spawn.NewRegistry()
	reg.Register("write", func(env *spawn.Env) {
		env.Set("answer", 42)
		env.Exit("bye")
	})
	host := spawn.NewHost(reg, testLogger())

	uri, err := host.Load(model.NewTask("write", nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ectx := mustSpawn(t, host, uri)
	defer ectx.Kill()
	seed(t, ectx)

	var kinds []boundary.Kind
	deadline := time.After(2 * time.Second)
	for len(kinds) < 2 {
		select {
		case env := <-ectx.Messages():
			kinds = append(kinds, env.Kind)
			switch env.Kind {
			case boundary.KindMemoryUpdated:
				if env.Key != "answer" || env.Value != uint64(42) {
					t.Errorf("update = %q/%v, want answer/42", env.Key, env.Value)
				}
			case boundary.KindTerminate:
				if env.Result != "bye" {
					t.Errorf("result = %v, want bye", env.Result)
				}
			}
		case <-deadline:
			t.Fatalf("messages so far %v, want update then terminate", kinds)
		}
	}
	if kinds[0] != boundary.KindMemoryUpdated || kinds[1] != boundary.KindTerminate {
		t.Errorf("message order = %v, want update then terminate", kinds)
	}
}

func TestUpdateReplication(t *testing.T) {
	reg := spawn.NewRegistry()
	got := make(chan any, 1)
	reg.Register("watch", func(env *spawn.Env) {
		for {
			if v, ok := env.Get("pushed"); ok {
				got <- v
				env.Exit(nil)
				return
			}
			select {
			case <-env.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	})
	host := spawn.NewHost(reg, testLogger())

	uri, err := host.Load(model.NewTask("watch", nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ectx := mustSpawn(t, host, uri)
	defer ectx.Kill()
	seed(t, ectx)

	if err := ectx.Send(boundary.Envelope{
		Kind:  boundary.KindMemoryUpdate,
		Key:   "pushed",
		Value: "later",
	}); err != nil {
		t.Fatalf("send update: %v", err)
	}

	select {
	case v := <-got:
		if v != "later" {
			t.Errorf("replicated value = %v, want later", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the handler's replica")
	}
}

func TestKillDetaches(t *testing.T) {
	reg := spawn.NewRegistry()
	released := make(chan struct{})
	reg.Register("hang", func(env *spawn.Env) {
		<-env.Done()
		close(released)
	})
	host := spawn.NewHost(reg, testLogger())

	uri, err := host.Load(model.NewTask("hang", nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ectx := mustSpawn(t, host, uri)
	seed(t, ectx)

	if err := ectx.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := ectx.Kill(); err != nil {
		t.Fatalf("second Kill: %v", err)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never observed the kill signal")
	}

	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryUpdate, Key: "k", Value: 1}); err != spawn.ErrKilled {
		t.Errorf("Send after Kill = %v, want ErrKilled", err)
	}

	waitClosed(t, ectx.Messages())
}

// mustSpawn launches the unit behind uri.
func mustSpawn(t *testing.T, host *spawn.Host, uri string) interface {
	Send(boundary.Envelope) error
	Messages() <-chan boundary.Envelope
	Kill() error
} {
	t.Helper()
	ectx, err := host.SpawnContext(uri)
	if err != nil {
		t.Fatalf("SpawnContext: %v", err)
	}
	return ectx
}

// seed pushes the id and an empty snapshot so the handler starts.
func seed(t *testing.T, ectx interface{ Send(boundary.Envelope) error }) {
	t.Helper()
	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryID, ID: "ctx-test"}); err != nil {
		t.Fatalf("send id: %v", err)
	}
	if err := ectx.Send(boundary.Envelope{Kind: boundary.KindMemoryInit, Snapshot: map[string]any{}}); err != nil {
		t.Fatalf("send init: %v", err)
	}
}

// waitClosed drains ch until it closes.
func waitClosed(t *testing.T, ch <-chan boundary.Envelope) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("message stream never closed after Kill")
		}
	}
}
