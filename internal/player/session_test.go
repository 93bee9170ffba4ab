package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockHandle struct {
	playing, paused, connected bool
}

func (h *mockHandle) Channel() string                  { return "voice" }
func (h *mockHandle) IsConnected() bool                { return h.connected }
func (h *mockHandle) IsPlaying() bool                  { return h.playing }
func (h *mockHandle) IsPaused() bool                   { return h.paused }
func (h *mockHandle) Play(string, func(error)) error   { h.playing = true; return nil }
func (h *mockHandle) Pause() error                     { h.paused = true; return nil }
func (h *mockHandle) Resume() error                    { h.paused = false; return nil }
func (h *mockHandle) Stop() error                      { h.playing = false; return nil }
func (h *mockHandle) Disconnect(context.Context) error { h.connected = false; return nil }
func (h *mockHandle) HumanMembers() int                { return 1 }

func testTrack(seconds int) mtypes.Track {
	return mtypes.Track{
		Title:        "Track",
		CanonicalURL: "https://example.com/watch?v=1",
		PlayableURL:  "https://cdn.example.com/1",
		Duration:     time.Duration(seconds) * time.Second,
	}
}

func TestState_ElapsedAccountsForPauses(t *testing.T) {
	clock := newFakeClock()
	s := NewState(clock)
	s.Start(testTrack(300), "alice")

	clock.Advance(30 * time.Second)
	s.RecordPauseStart()
	clock.Advance(10 * time.Second)
	s.RecordResumeAndAccumulate()
	clock.Advance(20 * time.Second)
	s.RecordPauseStart()
	clock.Advance(5 * time.Second)
	s.RecordResumeAndAccumulate()
	clock.Advance(15 * time.Second)

	p, ok := s.Progress()
	if !ok {
		t.Fatal("Expected progress to be available")
	}
	if p.Elapsed != 65*time.Second {
		t.Errorf("Expected elapsed 65s, got %s", p.Elapsed)
	}
	if p.Paused {
		t.Error("Expected not paused")
	}
	if p.Total != 300*time.Second {
		t.Errorf("Expected total 300s, got %s", p.Total)
	}
}

func TestState_ProgressWhilePaused(t *testing.T) {
	clock := newFakeClock()
	s := NewState(clock)
	s.Start(testTrack(100), "alice")

	clock.Advance(40 * time.Second)
	s.RecordPauseStart()
	clock.Advance(25 * time.Second)

	p, _ := s.Progress()
	if p.Elapsed != 40*time.Second {
		t.Errorf("Expected elapsed frozen at 40s, got %s", p.Elapsed)
	}
	if !p.Paused {
		t.Error("Expected paused")
	}
	if p.Fraction != 0.4 {
		t.Errorf("Expected fraction 0.4, got %f", p.Fraction)
	}

	sess, _ := s.Current()
	if sess.PauseStart == nil {
		t.Error("Expected pause start to be set while paused")
	}
}

func TestState_DoublePauseIgnored(t *testing.T) {
	clock := newFakeClock()
	s := NewState(clock)
	s.Start(testTrack(100), "alice")

	clock.Advance(10 * time.Second)
	if !s.RecordPauseStart() {
		t.Fatal("Expected first pause to be recorded")
	}
	clock.Advance(10 * time.Second)
	if s.RecordPauseStart() {
		t.Error("Expected second pause to be rejected")
	}
	clock.Advance(10 * time.Second)
	s.RecordResumeAndAccumulate()
	if s.RecordResumeAndAccumulate() {
		t.Error("Expected second resume to be rejected")
	}

	sess, _ := s.Current()
	if sess.PausedTotal != 20*time.Second {
		t.Errorf("Expected accumulated pause 20s, got %s", sess.PausedTotal)
	}
}

func TestState_FractionCapped(t *testing.T) {
	clock := newFakeClock()
	s := NewState(clock)
	s.Start(testTrack(10), "alice")
	clock.Advance(time.Minute)

	p, _ := s.Progress()
	if p.Fraction != 1 {
		t.Errorf("Expected fraction capped at 1, got %f", p.Fraction)
	}
}

func TestState_ClearAndUnavailable(t *testing.T) {
	s := NewState(newFakeClock())

	if _, ok := s.Progress(); ok {
		t.Error("Expected progress to be unavailable without a session")
	}

	s.Start(testTrack(10), "alice")
	s.Clear()

	if _, ok := s.Current(); ok {
		t.Error("Expected session to be cleared")
	}
	if s.RecordPauseStart() {
		t.Error("Expected pause without session to be rejected")
	}
}

func TestState_Decide(t *testing.T) {
	tests := []struct {
		name     string
		handle   *mockHandle
		expected Branch
	}{
		{"no handle", nil, BranchPlay},
		{"idle", &mockHandle{connected: true}, BranchPlay},
		{"playing", &mockHandle{connected: true, playing: true}, BranchEnqueue},
		{"paused", &mockHandle{connected: true, paused: true}, BranchEnqueue},
		{"disconnected", &mockHandle{playing: true}, BranchPlay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(newFakeClock())
			if tt.handle != nil {
				s.SetHandle(tt.handle)
			}
			if got := s.Decide(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestState_Handle(t *testing.T) {
	s := NewState(nil)
	h := &mockHandle{connected: true}
	s.SetHandle(h)

	if s.Handle() != h {
		t.Error("Expected stored handle")
	}
	if s.DropHandle() != h || s.Handle() != nil {
		t.Error("Expected DropHandle to return and forget the handle")
	}
}
