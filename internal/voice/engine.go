package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// Config tunes the engine.
type Config struct {
	InactivityInterval     time.Duration
	BackoffBase            time.Duration
	MaxReconnectAttempts   int
	PacingInterval         time.Duration
	BatchSize              int
	BatchPause             time.Duration
	DeferCatalogResolution bool
	EventBuffer            int
}

// DefaultConfig returns the reference timings.
func DefaultConfig() Config {
	return Config{
		InactivityInterval:   5 * time.Minute,
		BackoffBase:          5 * time.Second,
		MaxReconnectAttempts: 3,
		PacingInterval:       500 * time.Millisecond,
		BatchSize:            1,
		BatchPause:           2 * time.Second,
		EventBuffer:          64,
	}
}

// TrackResolver resolves queries into tracks.
type TrackResolver interface {
	Resolve(ctx context.Context, query string) (mtypes.Track, error)
	Refresh(ctx context.Context, query string) (mtypes.Track, error)
}

// Observer receives engine events. The metrics package implements it.
type Observer interface {
	ReconnectAttempt(outcome string)
	TrackStarted()
	QueueLength(guild string, n int)
}

type nopObserver struct{}

func (nopObserver) ReconnectAttempt(string) {}
func (nopObserver) TrackStarted()           {}
func (nopObserver) QueueLength(string, int) {}

// Deps are the collaborators of an Engine.
type Deps struct {
	Registry  *guild.Registry
	Transport mtypes.Transport
	Resolver  TrackResolver
	Notifier  mtypes.Notifier
	Pacer     *Pacer
	Sleeper   mtypes.Sleeper
	Observer  Observer
}

// finishEvent is posted by transport callbacks when a source ends.
type finishEvent struct {
	guildID    string
	generation uint64
	err        error
}

// Engine drives connection resilience and queue advance for all guilds.
type Engine struct {
	cfg       Config
	registry  *guild.Registry
	transport mtypes.Transport
	resolver  TrackResolver
	notifier  mtypes.Notifier
	pacer     *Pacer
	sleeper   mtypes.Sleeper
	observer  Observer

	ctx    context.Context
	cancel context.CancelFunc

	events   chan finishEvent
	loopDone chan struct{}
	tasks    sync.WaitGroup

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an engine. Call Start before playing anything.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Registry == nil || deps.Transport == nil || deps.Resolver == nil {
		return nil, errors.New("voice engine requires a registry, transport and resolver")
	}
	if cfg.MaxReconnectAttempts < 1 {
		return nil, fmt.Errorf("max reconnect attempts must be positive, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 64
	}
	if deps.Pacer == nil {
		deps.Pacer = NewPacer(cfg.PacingInterval)
	}
	if deps.Sleeper == nil {
		deps.Sleeper = mtypes.SystemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:       cfg,
		registry:  deps.Registry,
		transport: deps.Transport,
		resolver:  deps.Resolver,
		notifier:  deps.Notifier,
		pacer:     deps.Pacer,
		sleeper:   deps.Sleeper,
		observer:  deps.Observer,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan finishEvent, cfg.EventBuffer),
		loopDone:  make(chan struct{}),
	}, nil
}

// Registry returns the guild registry.
func (e *Engine) Registry() *guild.Registry {
	return e.registry
}

// Pacer returns the shared call pacer.
func (e *Engine) Pacer() *Pacer {
	return e.pacer
}

// Start launches the event loop.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.loop()
		log.Debug("Voice engine started")
	})
}

func (e *Engine) loop() {
	defer close(e.loopDone)

	for {
		select {
		case ev := <-e.events:
			e.dispatch(ev)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) dispatch(ev finishEvent) {
	g, ok := e.registry.Get(ev.guildID)
	if !ok {
		return
	}
	if ev.generation != g.Generation() {
		log.Debug("Ignoring stale end-of-track event", "guild", ev.guildID, "generation", ev.generation)
		return
	}
	if h := g.Player.Handle(); h != nil && !h.IsConnected() {
		// The link dropped; the reconnection driver owns this guild now.
		log.Debug("Ignoring end-of-track event from lost connection", "guild", ev.guildID)
		return
	}
	e.goTask(func() { e.advance(e.ctx, g, ev.generation, ev.err) })
}

// finishCallback returns the onFinish hook for a playback generation. It
// only posts an event; the loop does the work.
func (e *Engine) finishCallback(guildID string, generation uint64) func(error) {
	return func(err error) {
		select {
		case e.events <- finishEvent{guildID: guildID, generation: generation, err: err}:
		case <-e.ctx.Done():
		}
	}
}

func (e *Engine) goTask(fn func()) {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		fn()
	}()
}

// notify sends msg to the guild's notification channel. Failures are
// logged, never returned.
func (e *Engine) notify(ctx context.Context, g *guild.Guild, msg string) {
	if e.notifier == nil {
		return
	}
	channel := g.Reconnect().NotifyChannel
	if channel == "" {
		return
	}
	if err := e.notifier.Send(ctx, channel, msg); err != nil {
		log.Warn("Failed to send notification", "guild", g.ID, "channel", channel, "error", err)
	}
}

// transition moves g's connection state, logging moves the state machine
// rejects.
func (e *Engine) transition(g *guild.Guild, to guild.ConnState) bool {
	if g.Transition(to) {
		return true
	}
	log.Warn("Rejected connection state change", "guild", g.ID, "from", g.ConnState(), "to", to)
	return false
}

// Name implements lifecycle.Component.
func (e *Engine) Name() string { return "voice-engine" }

// Shutdown cancels every background task and waits for them to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(e.cancel)

	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for voice tasks: %w", ctx.Err())
	}

	if !e.started.Load() {
		return nil
	}
	select {
	case <-e.loopDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for voice loop: %w", ctx.Err())
	}
}

// ForceStop cancels every background task without waiting.
func (e *Engine) ForceStop() {
	e.stopOnce.Do(e.cancel)
}
