package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Sweeper is a cache that can drop its expired entries.
type Sweeper interface {
	Name() string
	CleanupExpired() int
}

// Janitor periodically sweeps expired entries from a set of caches until it
// is closed.
type Janitor struct {
	sweepers []Sweeper
	interval time.Duration

	stop   chan struct{}
	ticker *time.Ticker
	wg     sync.WaitGroup
	once   sync.Once

	mu    sync.Mutex
	stats struct {
		Runs        int64
		Removed     int64
		LastCleanup time.Time
	}
}

// NewJanitor creates a janitor. A non-positive interval disables the
// background sweep; Sweep can still be called directly.
func NewJanitor(interval time.Duration, sweepers ...Sweeper) *Janitor {
	return &Janitor{
		sweepers: sweepers,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the background sweep.
func (j *Janitor) Start() {
	if j.interval <= 0 {
		return
	}

	j.ticker = time.NewTicker(j.interval)
	j.wg.Add(1)

	go func() {
		defer j.wg.Done()

		for {
			select {
			case <-j.ticker.C:
				j.Sweep()
			case <-j.stop:
				return
			}
		}
	}()
	log.Debug("Cache janitor started", "interval", j.interval, "caches", len(j.sweepers))
}

// Sweep runs one cleanup pass over every cache and returns the number of
// removed entries.
func (j *Janitor) Sweep() int {
	removed := 0
	for _, s := range j.sweepers {
		removed += s.CleanupExpired()
	}

	j.mu.Lock()
	j.stats.Runs++
	j.stats.Removed += int64(removed)
	j.stats.LastCleanup = time.Now()
	j.mu.Unlock()

	return removed
}

// Runs returns how many sweeps have completed.
func (j *Janitor) Runs() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats.Runs
}

// Close stops the background sweep and waits for it to exit.
func (j *Janitor) Close() error {
	j.once.Do(func() {
		close(j.stop)
		j.wg.Wait()
		if j.ticker != nil {
			j.ticker.Stop()
		}
	})
	return nil
}
