package guild

import (
	"sort"
	"sync"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/queue"
)

// Config sizes the per-guild collections.
type Config struct {
	QueueSize   int
	HistorySize int
}

// DefaultConfig returns the reference sizes.
func DefaultConfig() Config {
	return Config{QueueSize: queue.DefaultMaxSize, HistorySize: DefaultHistorySize}
}

// Registry owns the state of every guild.
type Registry struct {
	mu     sync.RWMutex
	guilds map[string]*Guild
	cfg    Config
	clock  mtypes.Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, clock mtypes.Clock) *Registry {
	if clock == nil {
		clock = mtypes.SystemClock{}
	}
	return &Registry{guilds: make(map[string]*Guild), cfg: cfg, clock: clock}
}

// GetOrCreate returns the guild with id, creating it on first access.
func (r *Registry) GetOrCreate(id string) *Guild {
	r.mu.RLock()
	g, ok := r.guilds[id]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guilds[id]; ok {
		return g
	}
	g = newGuild(id, r.cfg, r.clock)
	r.guilds[id] = g
	return g
}

// Get returns the guild with id if it exists.
func (r *Registry) Get(id string) (*Guild, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guilds[id]
	return g, ok
}

// IDs returns every known guild id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.guilds))
	for id := range r.guilds {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of guilds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guilds)
}
