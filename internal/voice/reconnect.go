package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
)

// Backoff returns the wait before reconnect attempt (0-indexed).
func (e *Engine) Backoff(attempt int) time.Duration {
	return e.cfg.BackoffBase * time.Duration(1<<attempt)
}

// TriggerReconnect starts the reconnection driver for g, cancelling any
// driver already running. The returned channel closes when it exits.
func (e *Engine) TriggerReconnect(g *guild.Guild) <-chan struct{} {
	ctx, cancel := context.WithCancel(e.ctx)
	g.StartTask(guild.TaskReconnect, cancel)
	g.CancelTask(guild.TaskInactivity)

	done := make(chan struct{})
	e.goTask(func() {
		defer close(done)
		defer cancel()
		e.reconnect(ctx, g)
	})
	return done
}

func (e *Engine) reconnect(ctx context.Context, g *guild.Guild) {
	if !e.transition(g, guild.StateReconnecting) {
		return
	}

	g.Ops.Lock()
	sess, hadSession := g.Player.Current()
	if hadSession {
		g.History.Push(historyOf(sess))
	}
	// Events from the lost handle must not advance the queue.
	g.NextGeneration()
	g.Ops.Unlock()

	channel := g.Reconnect().LastChannel

	for attempt := 0; attempt < e.cfg.MaxReconnectAttempts; attempt++ {
		delay := e.Backoff(attempt)
		log.Info("Waiting before reconnection attempt", "guild", g.ID, "attempt", attempt+1, "delay", delay)
		if err := e.sleeper.Sleep(ctx, delay); err != nil {
			log.Info("Reconnection task cancelled", "guild", g.ID)
			return
		}

		h, err := e.dial(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Reconnection task cancelled", "guild", g.ID)
				return
			}
			g.SetAttempts(attempt + 1)
			e.observer.ReconnectAttempt("failure")
			log.Error("Reconnection attempt failed", "guild", g.ID, "attempt", attempt+1, "error", err)
			continue
		}
		if ctx.Err() != nil {
			_ = h.Disconnect(context.WithoutCancel(ctx))
			return
		}

		e.restore(ctx, g, h, sess, hadSession)
		return
	}

	if ctx.Err() != nil {
		return
	}

	log.Warn("Failed to reconnect", "guild", g.ID, "attempts", e.cfg.MaxReconnectAttempts)
	g.Ops.Lock()
	g.Player.Clear()
	g.Player.DropHandle()
	g.Ops.Unlock()
	e.transition(g, guild.StateDisconnected)
	e.observer.ReconnectAttempt("exhausted")

	e.notify(ctx, g, fmt.Sprintf("Could not reconnect after %d attempts. Use /play to restart.", e.cfg.MaxReconnectAttempts))
}

// restore installs h as the guild's handle and resumes the interrupted
// track from the beginning.
func (e *Engine) restore(ctx context.Context, g *guild.Guild, h mtypes.Handle, sess player.Session, hadSession bool) {
	g.Player.SetHandle(h)
	g.SetAttempts(0)
	e.transition(g, guild.StateConnected)
	e.observer.ReconnectAttempt("success")
	e.startInactivity(g, h)

	log.Info("Reconnected to voice channel", "guild", g.ID, "channel", h.Channel())
	e.notify(ctx, g, "Reconnected to voice channel after connection issue.")

	if !hadSession {
		return
	}

	track, err := e.resolver.Refresh(ctx, sess.Track.ResumeQuery())
	if err == nil {
		g.Ops.Lock()
		err = e.startLocked(g, h, track, sess.Requester)
		g.Ops.Unlock()
	}
	if err != nil {
		log.Error("Could not resume after reconnection", "guild", g.ID, "track", sess.Track.Title, "error", err)
		e.notify(ctx, g, fmt.Sprintf("Could not resume %s after reconnection.", sess.Track.Title))
		e.playNext(ctx, g)
		return
	}

	e.notify(ctx, g, fmt.Sprintf("Resumed playing **%s** after reconnection.", track.Title))
}

func historyOf(sess player.Session) mtypes.HistoryEntry {
	return mtypes.HistoryEntry{Track: sess.Track, Requester: sess.Requester, PlayedAt: sess.StartedAt}
}
