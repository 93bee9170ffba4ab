package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.order = append(r.order, s)
	r.mu.Unlock()
}

type fakeComponent struct {
	name   string
	rec    *recorder
	fail   error
	forced bool
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Shutdown(context.Context) error {
	f.rec.add("shutdown:" + f.name)
	return f.fail
}

func (f *fakeComponent) ForceStop() {
	f.forced = true
	f.rec.add("force:" + f.name)
}

func TestManager_ShutdownReverseOrder(t *testing.T) {
	rec := &recorder{}
	m := New(time.Second)
	m.Register(&fakeComponent{name: "engine", rec: rec})
	m.Register(&fakeComponent{name: "cache", rec: rec})
	m.Register(&fakeComponent{name: "metrics", rec: rec})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"shutdown:metrics", "shutdown:cache", "shutdown:engine"}
	if len(rec.order) != len(want) {
		t.Fatalf("Got %v, want %v", rec.order, want)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Errorf("Step %d = %q, want %q", i, rec.order[i], want[i])
		}
	}

	select {
	case <-m.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestManager_ForceStopsOnFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("stuck")
	failing := &fakeComponent{name: "pool", rec: rec, fail: boom}
	ok := &fakeComponent{name: "engine", rec: rec}

	m := New(time.Second)
	m.Register(ok)
	m.Register(failing)

	err := m.Shutdown()
	if !errors.Is(err, boom) {
		t.Errorf("Expected joined error to contain cause, got %v", err)
	}
	if !failing.forced {
		t.Error("Expected failing component to be force-stopped")
	}
	if ok.forced {
		t.Error("Expected healthy component not to be force-stopped")
	}

	if again := m.Shutdown(); !errors.Is(again, boom) {
		t.Errorf("Expected repeated Shutdown to return the same result, got %v", again)
	}
	if len(rec.order) != 3 {
		t.Errorf("Expected components to shut down once, got %v", rec.order)
	}
}

func TestManager_RegisterAfterShutdownIgnored(t *testing.T) {
	rec := &recorder{}
	m := New(0)
	_ = m.Shutdown()

	m.Register(&fakeComponent{name: "late", rec: rec})
	if len(m.components) != 0 {
		t.Errorf("Expected late registration to be ignored, got %d components", len(m.components))
	}
}

func TestManager_StartThenShutdown(t *testing.T) {
	m := New(time.Second)
	m.Start()

	var called bool
	m.Register(NewFunc("func", func(context.Context) error {
		called = true
		return nil
	}))

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !called {
		t.Error("Expected func component to run")
	}
	m.Wait()
}
