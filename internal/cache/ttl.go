package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache memoizes the results of expensive calls for a fixed TTL.
//
// Concurrent misses for the same key share a single compute call. Failed
// computes are never stored.
type TTLCache[V any] struct {
	name       string
	maxEntries int
	ttl        time.Duration

	mu          sync.RWMutex
	entries     map[string]entry[V]
	lastCleanup time.Time

	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64

	now      func() time.Time
	observer Observer
}

// New creates a cache from cfg.
func New[V any](cfg Config, opts ...Option) (*TTLCache[V], error) {
	if cfg.MaxEntries < 1 {
		return nil, fmt.Errorf("%w: %s max entries must be positive, got %d", ErrInvalidConfig, cfg.Name, cfg.MaxEntries)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: %s ttl must be positive, got %s", ErrInvalidConfig, cfg.Name, cfg.TTL)
	}

	o := buildOptions(opts)
	return &TTLCache[V]{
		name:       cfg.Name,
		maxEntries: cfg.MaxEntries,
		ttl:        cfg.TTL,
		entries:    make(map[string]entry[V]),
		now:        o.now,
		observer:   o.observer,
	}, nil
}

// Name returns the cache name.
func (c *TTLCache[V]) Name() string {
	return c.name
}

// GetOrCompute returns the cached value for fn(args...) or computes, stores
// and returns it. A compute error is returned as-is and nothing is stored.
// The compute does not see ctx cancellation and must bound itself.
func (c *TTLCache[V]) GetOrCompute(ctx context.Context, fn string, compute func(context.Context) (V, error), args ...any) (V, error) {
	return c.GetOrComputeKey(ctx, Key(fn, args...), compute)
}

// GetOrComputeKey is GetOrCompute with a precomputed key.
func (c *TTLCache[V]) GetOrComputeKey(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.recordHit(key)
		return v, nil
	}

	// The compute runs detached from ctx so one waiter giving up never
	// fails the others sharing the flight. Each waiter stops on its own ctx.
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// Another flight may have published while we queued for this one.
		if v, ok := c.lookup(key); ok {
			c.recordHit(key)
			return v, nil
		}

		c.misses.Add(1)
		c.observer.CacheMiss(c.name)
		log.Debug("Cache miss, computing", "cache", c.name, "key", key)

		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			log.Debug("Cache compute failed", "cache", c.name, "key", key, "error", err)
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Get returns an unexpired value without computing.
func (c *TTLCache[V]) Get(fn string, args ...any) (V, bool) {
	return c.lookup(Key(fn, args...))
}

// Invalidate removes the entry for fn(args...).
func (c *TTLCache[V]) Invalidate(fn string, args ...any) {
	key := Key(fn, args...)

	c.mu.Lock()
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	c.observer.CacheSize(c.name, size)
}

// Clear removes all entries. Hit and miss counters are kept.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()

	c.observer.CacheSize(c.name, 0)
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CleanupExpired removes every expired entry and returns how many were
// removed.
func (c *TTLCache[V]) CleanupExpired() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.lastCleanup = now
	size := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		log.Info("Cleaned up expired cache entries", "cache", c.name, "removed", removed)
	}
	c.observer.CacheSize(c.name, size)
	return removed
}

// Stats returns a snapshot of cache statistics.
func (c *TTLCache[V]) Stats() Stats {
	now := c.now()

	c.mu.RLock()
	total := len(c.entries)
	expired := 0
	for _, e := range c.entries {
		if !now.Before(e.expiresAt) {
			expired++
		}
	}
	lastCleanup := c.lastCleanup
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	return Stats{
		Name:           c.name,
		TotalEntries:   total,
		ExpiredEntries: expired,
		ActiveEntries:  total - expired,
		Hits:           hits,
		Misses:         misses,
		HitRatio:       ratio,
		MaxEntries:     c.maxEntries,
		TTL:            c.ttl,
		LastCleanup:    lastCleanup,
	}
}

// lookup returns the value for key if present and unexpired.
func (c *TTLCache[V]) lookup(key string) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !now.Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) recordHit(key string) {
	c.hits.Add(1)
	c.observer.CacheHit(c.name)
	log.Debug("Cache hit", "cache", c.name, "key", key)
}

func (c *TTLCache[V]) store(key string, v V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
	if len(c.entries) > c.maxEntries {
		c.evictSoonestExpiring()
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.observer.CacheSize(c.name, size)
}

// evictSoonestExpiring trims the cache to maxEntries, removing the entries
// that expire first (must be called with lock held).
func (c *TTLCache[V]) evictSoonestExpiring() {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := c.entries[keys[i]].expiresAt, c.entries[keys[j]].expiresAt
		if ei.Equal(ej) {
			return keys[i] < keys[j]
		}
		return ei.Before(ej)
	})

	excess := len(c.entries) - c.maxEntries
	for _, k := range keys[:excess] {
		delete(c.entries, k)
	}
	log.Debug("Evicted cache entries", "cache", c.name, "count", excess)
}
