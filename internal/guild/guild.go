package guild

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
	"github.com/dgnsrekt/tunebox/internal/queue"
)

// ReconnectState is the reconnection bookkeeping of one guild.
type ReconnectState struct {
	Attempts      int
	LastChannel   string
	NotifyChannel string
}

// Guild is the state of one tenant.
type Guild struct {
	ID      string
	Queue   *queue.Queue
	Player  *player.State
	History *History

	// Ops serializes playback mutations (start, advance, skip, stop) in
	// this guild. It is never held across a metadata lookup.
	Ops sync.Mutex

	mu         sync.Mutex
	conn       *StateMachine
	reconnect  ReconnectState
	leaving    bool
	tasks      map[Task]context.CancelFunc
	generation uint64

	processing atomic.Bool
}

// Task names a cancellable per-guild background task.
type Task int

const (
	TaskInactivity Task = iota
	TaskReconnect
	TaskIngest
)

// String returns the string representation of the task.
func (t Task) String() string {
	switch t {
	case TaskInactivity:
		return "inactivity"
	case TaskReconnect:
		return "reconnect"
	case TaskIngest:
		return "ingest"
	default:
		return "unknown"
	}
}

func newGuild(id string, cfg Config, clock mtypes.Clock) *Guild {
	return &Guild{
		ID:      id,
		Queue:   queue.New(cfg.QueueSize),
		Player:  player.NewState(clock),
		History: NewHistory(cfg.HistorySize),
		conn:    NewStateMachine(),
		tasks:   make(map[Task]context.CancelFunc),
	}
}

// ConnState returns the connection state.
func (g *Guild) ConnState() ConnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.Current()
}

// Transition moves the connection state machine to state and reports
// whether the transition was valid.
func (g *Guild) Transition(to ConnState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.Transition(to)
}

// ForceState sets the connection state without validation. Only a
// voluntary leave, which is valid from any state, uses it.
func (g *Guild) ForceState(to ConnState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn.Reset(to)
}

// Reconnect returns a copy of the reconnection bookkeeping.
func (g *Guild) Reconnect() ReconnectState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reconnect
}

// SetChannels records the voice channel and notification channel.
func (g *Guild) SetChannels(voice, notify string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if voice != "" {
		g.reconnect.LastChannel = voice
	}
	if notify != "" {
		g.reconnect.NotifyChannel = notify
	}
}

// SetAttempts records the reconnect attempt count.
func (g *Guild) SetAttempts(n int) {
	g.mu.Lock()
	g.reconnect.Attempts = n
	g.mu.Unlock()
}

// MarkLeaving flags that the next disconnect is voluntary.
func (g *Guild) MarkLeaving(leaving bool) {
	g.mu.Lock()
	g.leaving = leaving
	g.mu.Unlock()
}

// TakeLeaving returns and clears the voluntary-leave flag.
func (g *Guild) TakeLeaving() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.leaving
	g.leaving = false
	return l
}

// NextGeneration invalidates pending end-of-track events and returns the
// generation for the next playback.
func (g *Guild) NextGeneration() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	return g.generation
}

// Generation returns the current playback generation.
func (g *Guild) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// StartTask registers cancel for task, cancelling any previous run of the
// same task.
func (g *Guild) StartTask(task Task, cancel context.CancelFunc) {
	g.mu.Lock()
	prev := g.tasks[task]
	g.tasks[task] = cancel
	g.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// CancelTask cancels the running task, if any.
func (g *Guild) CancelTask(task Task) {
	g.mu.Lock()
	cancel := g.tasks[task]
	delete(g.tasks, task)
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// CancelAll cancels every background task of the guild.
func (g *Guild) CancelAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = make(map[Task]context.CancelFunc)
	g.mu.Unlock()

	for _, cancel := range tasks {
		cancel()
	}
}

// SetProcessing sets the batch-ingestion flag.
func (g *Guild) SetProcessing(v bool) {
	g.processing.Store(v)
}

// Processing reports whether batch ingestion is running.
func (g *Guild) Processing() bool {
	return g.processing.Load()
}
