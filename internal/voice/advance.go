package voice

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// advance handles the end of the track started as generation: it records
// it in history, clears the session, and starts the next queue entry. It
// does nothing if another track was started in the meantime.
func (e *Engine) advance(ctx context.Context, g *guild.Guild, generation uint64, playErr error) {
	g.Ops.Lock()
	if g.Generation() != generation {
		g.Ops.Unlock()
		log.Debug("Skipping advance, playback moved on", "guild", g.ID, "generation", generation)
		return
	}
	sess, ok := g.Player.Current()
	if ok {
		g.History.Push(historyOf(sess))
	}
	g.Player.Clear()
	g.Ops.Unlock()

	if playErr != nil {
		log.Warn("Error occurred during playback", "guild", g.ID, "title", sess.Track.Title, "error", playErr)
		e.notify(ctx, g, "An error occurred during playback. Attempting to continue with the next song.")
	}

	e.playNext(ctx, g)
}

// playNext pops queue entries until one starts playing or the queue is
// empty. Entries that fail to resolve or start are consumed and reported.
func (e *Engine) playNext(ctx context.Context, g *guild.Guild) {
	for ctx.Err() == nil {
		h := g.Player.Handle()
		if h == nil || !h.IsConnected() || g.ConnState() == guild.StateReconnecting {
			return
		}

		entry, ok := g.Queue.DequeueFront()
		if !ok {
			return
		}
		e.observer.QueueLength(g.ID, g.Queue.Len())

		track, err := e.materialize(ctx, entry)
		if err != nil {
			log.Error("Could not load next track", "guild", g.ID, "title", entry.Title(), "error", err)
			e.notify(ctx, g, fmt.Sprintf("Could not load %s, skipping.", entry.Title()))
			continue
		}

		g.Ops.Lock()
		if g.Player.Handle() != h || h.IsPlaying() || h.IsPaused() {
			// Playback was started elsewhere while resolving.
			entry.Track, entry.Placeholder = &track, nil
			g.Queue.InsertAt(0, entry)
			g.Ops.Unlock()
			return
		}
		err = e.startLocked(g, h, track, entry.Requester)
		g.Ops.Unlock()

		if err != nil {
			log.Error("Could not start next track", "guild", g.ID, "title", track.Title, "error", err)
			e.notify(ctx, g, fmt.Sprintf("Error playing %s, skipping.", track.Title))
			continue
		}

		e.notify(ctx, g, fmt.Sprintf("Now playing: **%s**", track.Title))
		return
	}
}

// materialize returns the playable track of entry, resolving deferred
// catalog placeholders.
func (e *Engine) materialize(ctx context.Context, entry mtypes.QueueEntry) (mtypes.Track, error) {
	if entry.Resolved() {
		return *entry.Track, nil
	}
	if entry.Placeholder == nil {
		return mtypes.Track{}, fmt.Errorf("%w: empty queue entry", mtypes.ErrInvalidTrack)
	}
	return e.resolver.Resolve(ctx, entry.Placeholder.Query)
}
