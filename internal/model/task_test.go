package model_test

import (
	"testing"

	"github.com/seantiz/foundry/internal/model"
)

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{model.StatusPending, model.StatusRunning},
		{model.StatusPending, model.StatusFailed},
		{model.StatusPending, model.StatusKilled},
		{model.StatusRunning, model.StatusCompleted},
		{model.StatusRunning, model.StatusFailed},
		{model.StatusRunning, model.StatusKilled},
	}
	for _, tr := range allowed {
		if !model.ValidTransition(tr.from, tr.to) {
			t.Errorf("ValidTransition(%s, %s) = false, want true", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to string }{
		{model.StatusPending, model.StatusCompleted},
		{model.StatusCompleted, model.StatusRunning},
		{model.StatusFailed, model.StatusRunning},
		{model.StatusKilled, model.StatusPending},
		{"bogus", model.StatusRunning},
	}
	for _, tr := range denied {
		if model.ValidTransition(tr.from, tr.to) {
			t.Errorf("ValidTransition(%s, %s) = true, want false", tr.from, tr.to)
		}
	}
}

func TestNewTask(t *testing.T) {
	a := model.NewTask("echo", map[string]any{"k": "v"})
	b := model.NewTask("echo", nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("NewTask produced an empty ID")
	}
	if a.ID == b.ID {
		t.Error("NewTask produced duplicate IDs")
	}
	if a.Handler != "echo" {
		t.Errorf("handler = %q, want echo", a.Handler)
	}
	if a.Args["k"] != "v" {
		t.Errorf("args = %v", a.Args)
	}
}

func TestNewIDSortable(t *testing.T) {
	prev := model.NewID()
	for i := 0; i < 10; i++ {
		next := model.NewID()
		if len(next) != 26 {
			t.Fatalf("ID length = %d, want 26", len(next))
		}
		if next < prev {
			t.Errorf("IDs not monotonically sortable: %s then %s", prev, next)
		}
		prev = next
	}
}
