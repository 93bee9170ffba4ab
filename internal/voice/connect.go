package voice

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// VoiceStateChange describes the agent's own voice channel changing.
// Before and After are channel references; empty means "not in a channel".
type VoiceStateChange struct {
	Before string
	After  string
	// Handle is the live handle after a channel move, if the platform
	// supplies one.
	Handle mtypes.Handle
}

// EnsureConnected returns a live handle for the guild, connecting to
// voiceChannel when there is none. A user-initiated connect preempts any
// reconnection in progress.
func (e *Engine) EnsureConnected(ctx context.Context, g *guild.Guild, voiceChannel, notifyChannel string) (mtypes.Handle, error) {
	g.SetChannels("", notifyChannel)

	if h := g.Player.Handle(); h != nil && h.IsConnected() {
		return h, nil
	}
	if voiceChannel == "" {
		return nil, mtypes.NewError(mtypes.ErrorCodeNotConnected, "no voice channel to join", nil)
	}

	g.CancelTask(guild.TaskReconnect)
	h, err := e.dial(ctx, voiceChannel)
	if err != nil {
		return nil, err
	}

	g.MarkLeaving(false)
	g.Player.SetHandle(h)
	g.SetChannels(voiceChannel, "")
	g.SetAttempts(0)
	e.transition(g, guild.StateConnected)
	e.startInactivity(g, h)

	log.Info("Connected to voice channel", "guild", g.ID, "channel", voiceChannel)
	return h, nil
}

// dial connects to channel behind the join pacer.
func (e *Engine) dial(ctx context.Context, channel string) (mtypes.Handle, error) {
	if err := e.pacer.Wait(ctx, ActionJoinVoice); err != nil {
		return nil, err
	}
	h, err := e.transport.Connect(ctx, channel)
	if err != nil {
		return nil, mtypes.NewError(mtypes.ErrorCodeTransport, "could not connect to "+channel, err).
			WithContext("channel", channel)
	}
	return h, nil
}

// Leave disconnects voluntarily and drops all playback state: session,
// handle, queue and background tasks.
func (e *Engine) Leave(ctx context.Context, g *guild.Guild) error {
	g.CancelAll()

	g.Ops.Lock()
	g.NextGeneration()
	h := g.Player.DropHandle()
	g.Player.Clear()
	g.Queue.Clear()
	g.Ops.Unlock()

	g.SetProcessing(false)
	g.SetAttempts(0)
	g.ForceState(guild.StateDisconnected)
	e.observer.QueueLength(g.ID, 0)

	if h == nil {
		return mtypes.NewError(mtypes.ErrorCodeNotConnected, "not connected", nil)
	}

	g.MarkLeaving(true)
	if err := h.Disconnect(ctx); err != nil {
		log.Warn("Error disconnecting", "guild", g.ID, "error", err)
	}
	log.Info("Left voice channel", "guild", g.ID, "channel", h.Channel())
	return nil
}

// startInactivity (re)starts the inactivity monitor for h, cancelling any
// monitor from a previous connection.
func (e *Engine) startInactivity(g *guild.Guild, h mtypes.Handle) {
	if e.cfg.InactivityInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	g.StartTask(guild.TaskInactivity, cancel)
	e.goTask(func() {
		defer cancel()
		e.watchInactivity(ctx, g, h)
	})
}

func (e *Engine) watchInactivity(ctx context.Context, g *guild.Guild, h mtypes.Handle) {
	ticker := time.NewTicker(e.cfg.InactivityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if g.Player.Handle() != h || !h.IsConnected() {
			return
		}
		if h.IsPlaying() || h.IsPaused() || h.HumanMembers() > 0 {
			continue
		}

		log.Info("Disconnecting due to inactivity", "guild", g.ID)
		if err := e.Leave(context.WithoutCancel(ctx), g); err != nil {
			log.Warn("Inactivity disconnect failed", "guild", g.ID, "error", err)
		}
		e.notify(context.WithoutCancel(ctx), g, "Left the voice channel due to inactivity.")
		return
	}
}

// HandleVoiceState reacts to the agent's voice state changing. An
// involuntary disconnect while a track is active starts the reconnection
// driver; the returned channel closes when that driver exits. It is nil
// when no driver was started.
func (e *Engine) HandleVoiceState(ctx context.Context, guildID string, change VoiceStateChange) <-chan struct{} {
	g, ok := e.registry.Get(guildID)
	if !ok {
		return nil
	}

	switch {
	case change.Before != "" && change.After == "":
		if g.TakeLeaving() {
			log.Debug("Voluntary disconnect", "guild", guildID)
			return nil
		}
		if g.ConnState() == guild.StateDisconnected && g.Player.Handle() == nil {
			return nil
		}

		h := g.Player.Handle()
		_, hasSession := g.Player.Current()
		if h != nil && (h.IsPlaying() || h.IsPaused()) && hasSession {
			log.Warn("Unexpected disconnect during playback", "guild", guildID, "channel", change.Before)
			g.SetChannels(change.Before, "")
			return e.TriggerReconnect(g)
		}

		log.Info("Disconnected while idle", "guild", guildID)
		g.CancelTask(guild.TaskInactivity)
		g.Ops.Lock()
		g.NextGeneration()
		g.Player.DropHandle()
		g.Player.Clear()
		g.Ops.Unlock()
		e.transition(g, guild.StateDisconnected)

	case change.Before != "" && change.After != "" && change.Before != change.After:
		log.Info("Moved to another voice channel", "guild", guildID, "from", change.Before, "to", change.After)
		g.SetChannels(change.After, "")
		if change.Handle != nil {
			g.Player.SetHandle(change.Handle)
			e.startInactivity(g, change.Handle)
		}
	}
	return nil
}
