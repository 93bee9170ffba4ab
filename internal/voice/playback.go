package voice

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
)

var (
	// ErrAlreadyPaused indicates pause was requested while paused
	ErrAlreadyPaused = errors.New("playback is already paused")

	// ErrNotPaused indicates resume was requested while not paused
	ErrNotPaused = errors.New("playback is not paused")
)

// PlayOutcome reports what a play request did.
type PlayOutcome struct {
	Branch player.Branch
	Track  mtypes.Track
	// Position is the 1-based queue position when enqueued.
	Position int
}

// StopOutcome reports what a stop request did.
type StopOutcome struct {
	WasPlaying bool
	Cleared    int
}

// SkipOutcome reports what a skip request did.
type SkipOutcome struct {
	Skipped mtypes.Track
	// Target is the entry that plays next, if known.
	Target  *mtypes.QueueEntry
	Dropped int
}

// StartOrEnqueue starts track now if the guild is idle, or appends it to
// the queue if something is playing or paused.
func (e *Engine) StartOrEnqueue(ctx context.Context, g *guild.Guild, track mtypes.Track, requester string) (PlayOutcome, error) {
	h := g.Player.Handle()
	if h == nil || !h.IsConnected() {
		return PlayOutcome{}, mtypes.NewError(mtypes.ErrorCodeNotConnected, "not connected", nil)
	}

	g.Ops.Lock()
	defer g.Ops.Unlock()

	if g.Player.Decide() == player.BranchEnqueue {
		pos, err := e.enqueueLocked(g, track, requester)
		if err != nil {
			return PlayOutcome{}, err
		}
		return PlayOutcome{Branch: player.BranchEnqueue, Track: track, Position: pos}, nil
	}

	// A track that just ended may not have been advanced yet.
	if sess, ok := g.Player.Current(); ok {
		g.History.Push(historyOf(sess))
	}
	if err := e.startLocked(g, h, track, requester); err != nil {
		return PlayOutcome{}, err
	}
	return PlayOutcome{Branch: player.BranchPlay, Track: track}, nil
}

func (e *Engine) enqueueLocked(g *guild.Guild, track mtypes.Track, requester string) (int, error) {
	entry, err := mtypes.NewTrackEntry(track, requester)
	if err != nil {
		return 0, err
	}
	if !g.Queue.Enqueue(entry) {
		return 0, mtypes.NewError(mtypes.ErrorCodeQueueFull, "queue is full", nil).
			WithContext("max", g.Queue.MaxSize())
	}
	n := g.Queue.Len()
	e.observer.QueueLength(g.ID, n)
	return n, nil
}

// startLocked plays track on h and records the new session (must be
// called with g.Ops held).
func (e *Engine) startLocked(g *guild.Guild, h mtypes.Handle, track mtypes.Track, requester string) error {
	gen := g.NextGeneration()
	g.Player.Start(track, requester)

	if err := h.Play(track.PlayableURL, e.finishCallback(g.ID, gen)); err != nil {
		g.Player.Clear()
		return mtypes.NewError(mtypes.ErrorCodeTransport, "could not start "+track.Title, err).
			WithContext("guild", g.ID)
	}

	e.observer.TrackStarted()
	log.Info("Now playing", "guild", g.ID, "title", track.Title, "requester", requester)
	return nil
}

// Pause pauses the current track.
func (e *Engine) Pause(g *guild.Guild) error {
	h, err := connected(g)
	if err != nil {
		return err
	}

	g.Ops.Lock()
	defer g.Ops.Unlock()

	switch {
	case h.IsPaused():
		return ErrAlreadyPaused
	case !h.IsPlaying():
		return mtypes.NewError(mtypes.ErrorCodeNothingPlaying, "nothing is playing", nil)
	}

	if err := h.Pause(); err != nil {
		return mtypes.NewError(mtypes.ErrorCodeTransport, "could not pause", err)
	}
	g.Player.RecordPauseStart()
	return nil
}

// Resume resumes a paused track.
func (e *Engine) Resume(g *guild.Guild) error {
	h, err := connected(g)
	if err != nil {
		return err
	}

	g.Ops.Lock()
	defer g.Ops.Unlock()

	if !h.IsPaused() {
		if h.IsPlaying() {
			return ErrNotPaused
		}
		return mtypes.NewError(mtypes.ErrorCodeNothingPlaying, "nothing is paused", nil)
	}

	if err := h.Resume(); err != nil {
		return mtypes.NewError(mtypes.ErrorCodeTransport, "could not resume", err)
	}
	g.Player.RecordResumeAndAccumulate()
	return nil
}

// Skip stops the current track so the queue advances. A 1-based position
// drops the entries before it so that entry plays next.
func (e *Engine) Skip(g *guild.Guild, position int) (SkipOutcome, error) {
	h, err := connected(g)
	if err != nil {
		return SkipOutcome{}, err
	}

	g.Ops.Lock()
	defer g.Ops.Unlock()

	if !h.IsPlaying() && !h.IsPaused() {
		return SkipOutcome{}, mtypes.NewError(mtypes.ErrorCodeNothingPlaying, "nothing to skip", nil)
	}

	var out SkipOutcome
	if sess, ok := g.Player.Current(); ok {
		out.Skipped = sess.Track
	}

	if position > 0 {
		if position > g.Queue.Len() {
			return SkipOutcome{}, mtypes.NewError(mtypes.ErrorCodeInvalidPosition, "no such queue position", nil).
				WithContext("position", position).
				WithContext("length", g.Queue.Len())
		}
		target, _ := g.Queue.At(position - 1)
		out.Target = &target
		out.Dropped = g.Queue.DropFront(position - 1)
	} else if next, ok := g.Queue.At(0); ok {
		out.Target = &next
	}

	if err := h.Stop(); err != nil {
		return SkipOutcome{}, mtypes.NewError(mtypes.ErrorCodeTransport, "could not stop", err)
	}
	e.observer.QueueLength(g.ID, g.Queue.Len())
	return out, nil
}

// Stop clears the queue and the session and stops playback. The guild
// stays connected.
func (e *Engine) Stop(g *guild.Guild) (StopOutcome, error) {
	h, err := connected(g)
	if err != nil {
		return StopOutcome{}, err
	}

	g.CancelTask(guild.TaskIngest)

	g.Ops.Lock()
	defer g.Ops.Unlock()

	out := StopOutcome{
		WasPlaying: h.IsPlaying() || h.IsPaused(),
		Cleared:    g.Queue.Clear(),
	}
	if sess, ok := g.Player.Current(); ok {
		g.History.Push(historyOf(sess))
	}
	g.NextGeneration()
	g.Player.Clear()
	e.observer.QueueLength(g.ID, 0)

	if out.WasPlaying {
		if err := h.Stop(); err != nil {
			return out, mtypes.NewError(mtypes.ErrorCodeTransport, "could not stop", err)
		}
	}
	return out, nil
}

func connected(g *guild.Guild) (mtypes.Handle, error) {
	h := g.Player.Handle()
	if h == nil || !h.IsConnected() {
		return nil, mtypes.NewError(mtypes.ErrorCodeNotConnected, "not connected", nil)
	}
	return h, nil
}
