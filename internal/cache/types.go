package cache

import (
	"errors"
	"time"
)

// Common cache errors
var (
	// ErrInvalidConfig indicates a cache was configured with invalid bounds
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Config describes a single cache instance.
type Config struct {
	Name       string        `yaml:"name"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// MediaConfig returns the defaults for the media-metadata cache.
func MediaConfig() Config {
	return Config{Name: "media", MaxEntries: 100, TTL: time.Hour}
}

// CatalogConfig returns the defaults for the catalog-resolution cache.
func CatalogConfig() Config {
	return Config{Name: "catalog", MaxEntries: 50, TTL: 2 * time.Hour}
}

// ImageConfig returns the defaults for the image cache.
func ImageConfig() Config {
	return Config{Name: "image", MaxEntries: 200, TTL: 24 * time.Hour}
}

// DefaultCleanupInterval is how often the janitor sweeps expired entries.
const DefaultCleanupInterval = 30 * time.Minute

// Stats tracks cache usage statistics.
type Stats struct {
	Name           string
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           int64
	Misses         int64
	HitRatio       float64
	MaxEntries     int
	TTL            time.Duration
	LastCleanup    time.Time
}

// Observer receives cache events. The metrics package implements it.
type Observer interface {
	CacheHit(cache string)
	CacheMiss(cache string)
	CacheSize(cache string, entries int)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)       {}
func (nopObserver) CacheMiss(string)      {}
func (nopObserver) CacheSize(string, int) {}

type options struct {
	now      func() time.Time
	observer Observer
}

// Option configures a cache.
type Option func(*options)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver registers an observer for hit, miss and size events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
