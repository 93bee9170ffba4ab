package player

import (
	"sync"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// Session is the record of the track currently playing in a guild.
type Session struct {
	Track       mtypes.Track
	Requester   string
	StartedAt   time.Time
	PausedTotal time.Duration
	// PauseStart is non-nil iff the transport is paused.
	PauseStart *time.Time
}

// Progress describes how far playback has advanced.
type Progress struct {
	Elapsed  time.Duration
	Total    time.Duration
	Paused   bool
	Fraction float64
}

// Branch is the outcome of a play request.
type Branch int

const (
	// BranchPlay starts playback immediately.
	BranchPlay Branch = iota
	// BranchEnqueue appends to the queue.
	BranchEnqueue
)

// String returns the string representation of the branch.
func (b Branch) String() string {
	switch b {
	case BranchPlay:
		return "play"
	case BranchEnqueue:
		return "enqueue"
	default:
		return "unknown"
	}
}

// State holds the playback state of one guild.
type State struct {
	mu      sync.RWMutex
	clock   mtypes.Clock
	handle  mtypes.Handle
	session *Session
}

// NewState creates an empty playback state.
func NewState(clock mtypes.Clock) *State {
	if clock == nil {
		clock = mtypes.SystemClock{}
	}
	return &State{clock: clock}
}

// Decide reports whether a new track should start now or be enqueued.
// Tracks start immediately when there is no handle or the handle is idle.
func (s *State) Decide() Branch {
	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()

	if h != nil && h.IsConnected() && (h.IsPlaying() || h.IsPaused()) {
		return BranchEnqueue
	}
	return BranchPlay
}

// SetHandle stores the live transport handle.
func (s *State) SetHandle(h mtypes.Handle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

// Handle returns the stored transport handle, or nil.
func (s *State) Handle() mtypes.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// DropHandle forgets the stored transport handle and returns it.
func (s *State) DropHandle() mtypes.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	s.handle = nil
	return h
}

// Start records that track began playing now, replacing any session.
func (s *State) Start(track mtypes.Track, requester string) {
	s.mu.Lock()
	s.session = &Session{
		Track:     track,
		Requester: requester,
		StartedAt: s.clock.Now(),
	}
	s.mu.Unlock()
}

// Current returns a copy of the active session.
func (s *State) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return Session{}, false
	}
	cp := *s.session
	if cp.PauseStart != nil {
		ps := *cp.PauseStart
		cp.PauseStart = &ps
	}
	return cp, true
}

// RecordPauseStart marks the session paused. It returns false if there is
// no session or it is already paused.
func (s *State) RecordPauseStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.PauseStart != nil {
		return false
	}
	now := s.clock.Now()
	s.session.PauseStart = &now
	return true
}

// RecordResumeAndAccumulate folds the current pause into the accumulated
// pause time. It returns false if the session is not paused.
func (s *State) RecordResumeAndAccumulate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.PauseStart == nil {
		return false
	}
	s.session.PausedTotal += s.clock.Now().Sub(*s.session.PauseStart)
	s.session.PauseStart = nil
	return true
}

// Progress computes elapsed playback time for the active session.
func (s *State) Progress() (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return Progress{}, false
	}
	return computeProgress(*s.session, s.clock.Now()), true
}

func computeProgress(sess Session, now time.Time) Progress {
	paused := sess.PausedTotal
	if sess.PauseStart != nil {
		paused += now.Sub(*sess.PauseStart)
	}

	elapsed := now.Sub(sess.StartedAt) - paused
	if elapsed < 0 {
		elapsed = 0
	}

	p := Progress{
		Elapsed: elapsed,
		Total:   sess.Track.Duration,
		Paused:  sess.PauseStart != nil,
	}
	if p.Total > 0 {
		p.Fraction = float64(elapsed) / float64(p.Total)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}
	return p
}

// Clear drops the session entirely.
func (s *State) Clear() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}
