package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

var (
	// ErrNotConnected is returned by operations on a dropped handle.
	ErrNotConnected = errors.New("simulated handle is not connected")

	// ErrAlreadyPlaying is returned when Play is called on a busy handle.
	ErrAlreadyPlaying = errors.New("already playing audio")

	// ErrConnectionLost is delivered to onFinish when the link drops.
	ErrConnectionLost = errors.New("voice connection lost")
)

// HandleState represents the state of a simulated handle.
type HandleState int32

const (
	StateIdle HandleState = iota
	StatePlaying
	StatePaused
)

// Handle is a simulated voice link. Sources finish on their own after
// their registered duration, or when Finish is called.
type Handle struct {
	channel   string
	state     atomic.Int32
	connected atomic.Bool
	members   atomic.Int32

	mu        sync.Mutex
	source    string
	onFinish  func(error)
	timer     *time.Timer
	length    time.Duration
	startTime time.Time
	played    time.Duration
	failPlay  error

	playCount  atomic.Int64
	pauseCount atomic.Int64
	stopCount  atomic.Int64
}

func newHandle(channel string, members int) *Handle {
	h := &Handle{channel: channel}
	h.connected.Store(true)
	h.members.Store(int32(members))
	return h
}

// Channel returns the channel reference.
func (h *Handle) Channel() string { return h.channel }

// IsConnected reports whether the link is up.
func (h *Handle) IsConnected() bool { return h.connected.Load() }

// IsPlaying reports whether a source is playing.
func (h *Handle) IsPlaying() bool { return HandleState(h.state.Load()) == StatePlaying }

// IsPaused reports whether a source is paused.
func (h *Handle) IsPaused() bool { return HandleState(h.state.Load()) == StatePaused }

// HumanMembers returns the simulated occupant count.
func (h *Handle) HumanMembers() int { return int(h.members.Load()) }

// SetMembers changes the simulated occupant count.
func (h *Handle) SetMembers(n int) { h.members.Store(int32(n)) }

// FailNextPlay makes the next Play call return err.
func (h *Handle) FailNextPlay(err error) {
	h.mu.Lock()
	h.failPlay = err
	h.mu.Unlock()
}

// Play starts source and calls onFinish once when it ends.
func (h *Handle) Play(source string, onFinish func(error)) error {
	return h.play(source, 0, onFinish)
}

func (h *Handle) play(source string, length time.Duration, onFinish func(error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected.Load() {
		return ErrNotConnected
	}
	if err := h.failPlay; err != nil {
		h.failPlay = nil
		return err
	}
	if HandleState(h.state.Load()) != StateIdle {
		return ErrAlreadyPlaying
	}

	h.source = source
	h.onFinish = onFinish
	h.length = length
	h.played = 0
	h.startTime = time.Now()
	h.state.Store(int32(StatePlaying))
	h.playCount.Add(1)
	h.armLocked()
	return nil
}

// armLocked schedules the natural end of the source (must be called with
// lock held).
func (h *Handle) armLocked() {
	if h.length <= 0 {
		return
	}
	remaining := h.length - h.played
	if remaining < 0 {
		remaining = 0
	}
	src := h.source
	h.timer = time.AfterFunc(remaining, func() {
		h.mu.Lock()
		if h.source != src || HandleState(h.state.Load()) != StatePlaying {
			h.mu.Unlock()
			return
		}
		h.finishLocked(nil)
	})
}

func (h *Handle) disarmLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// finishLocked ends the source and invokes the callback on its own
// goroutine. It releases the lock.
func (h *Handle) finishLocked(err error) {
	h.disarmLocked()
	cb := h.onFinish
	h.onFinish = nil
	h.source = ""
	h.state.Store(int32(StateIdle))
	h.mu.Unlock()

	if cb != nil {
		go cb(err)
	}
}

// Pause pauses the source.
func (h *Handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if HandleState(h.state.Load()) != StatePlaying {
		return errors.New("not playing")
	}
	h.disarmLocked()
	h.played += time.Since(h.startTime)
	h.state.Store(int32(StatePaused))
	h.pauseCount.Add(1)
	return nil
}

// Resume resumes a paused source.
func (h *Handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if HandleState(h.state.Load()) != StatePaused {
		return errors.New("not paused")
	}
	h.startTime = time.Now()
	h.state.Store(int32(StatePlaying))
	h.armLocked()
	return nil
}

// Stop ends the source; onFinish receives nil.
func (h *Handle) Stop() error {
	h.mu.Lock()
	if HandleState(h.state.Load()) == StateIdle {
		h.mu.Unlock()
		return nil
	}
	h.stopCount.Add(1)
	h.finishLocked(nil)
	return nil
}

// Finish ends the source as if it completed, delivering err to onFinish.
func (h *Handle) Finish(err error) {
	h.mu.Lock()
	if HandleState(h.state.Load()) == StateIdle {
		h.mu.Unlock()
		return
	}
	h.finishLocked(err)
}

// Disconnect closes the link voluntarily.
func (h *Handle) Disconnect(context.Context) error {
	h.connected.Store(false)
	h.mu.Lock()
	if HandleState(h.state.Load()) == StateIdle {
		h.mu.Unlock()
		return nil
	}
	h.finishLocked(nil)
	return nil
}

// Drop simulates an involuntary connection loss. Playback state is left
// as it was so the loss is observable as "dropped while playing".
func (h *Handle) Drop() {
	h.connected.Store(false)
	h.mu.Lock()
	h.disarmLocked()
	cb := h.onFinish
	h.onFinish = nil
	h.mu.Unlock()

	if cb != nil {
		go cb(ErrConnectionLost)
	}
}

// Source returns the source currently loaded.
func (h *Handle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.source
}

// Metrics contains handle counters for tests.
type Metrics struct {
	PlayCount  int64
	PauseCount int64
	StopCount  int64
}

// GetMetrics returns handle counters.
func (h *Handle) GetMetrics() Metrics {
	return Metrics{
		PlayCount:  h.playCount.Load(),
		PauseCount: h.pauseCount.Load(),
		StopCount:  h.stopCount.Load(),
	}
}

var _ mtypes.Handle = (*Handle)(nil)
