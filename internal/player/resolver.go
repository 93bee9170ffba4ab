package player

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// DefaultExtractTimeout bounds a single extraction call.
const DefaultExtractTimeout = 30 * time.Second

// TrackCache memoizes track lookups.
type TrackCache interface {
	GetOrCompute(ctx context.Context, fn string, compute func(context.Context) (mtypes.Track, error), args ...any) (mtypes.Track, error)
	Invalidate(fn string, args ...any)
}

// Pacer gates outbound calls of a named kind.
type Pacer interface {
	Wait(ctx context.Context, action string) error
}

// ExtractionObserver receives extraction timings.
type ExtractionObserver interface {
	ExtractionObserved(d time.Duration, err error)
}

// Resolver turns queries into tracks through the media cache.
type Resolver struct {
	cache     TrackCache
	extractor mtypes.Extractor
	pool      *Pool
	pacer     Pacer
	timeout   time.Duration
	observer  ExtractionObserver
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPacer gates each extraction behind pacer.
func WithPacer(p Pacer) ResolverOption {
	return func(r *Resolver) { r.pacer = p }
}

// WithExtractTimeout overrides DefaultExtractTimeout.
func WithExtractTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithExtractionObserver registers an observer for extraction timings.
func WithExtractionObserver(o ExtractionObserver) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a resolver. cache may be nil, in which case every
// lookup goes straight to the extractor.
func NewResolver(cache TrackCache, extractor mtypes.Extractor, pool *Pool, opts ...ResolverOption) *Resolver {
	if pool == nil {
		pool = NewPool(DefaultWorkers)
	}
	r := &Resolver{
		cache:     cache,
		extractor: extractor,
		pool:      pool,
		timeout:   DefaultExtractTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the track for query through the media cache. Any error
// from the cached path is followed by one direct extraction, unless ctx
// itself is done. Failures are returned as ExtractionFailure.
func (r *Resolver) Resolve(ctx context.Context, query string) (mtypes.Track, error) {
	if r.cache == nil {
		return r.extract(ctx, query)
	}

	track, err := r.cache.GetOrCompute(ctx, "extract", func(ctx context.Context) (mtypes.Track, error) {
		// Shared by every caller of this query, so it carries its own deadline.
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.extract(ctx, query)
	}, query)
	if err == nil {
		return track, nil
	}
	if ctx.Err() != nil {
		if errors.Is(err, mtypes.ErrExtractionFailed) {
			return mtypes.Track{}, err
		}
		return mtypes.Track{}, mtypes.NewError(mtypes.ErrorCodeExtraction, "could not extract "+query, err).
			WithContext("query", query)
	}

	log.Error("Error using cache, falling back to direct extraction", "query", query, "error", err)
	return r.extract(ctx, query)
}

// Refresh resolves query again, bypassing any cached result. Playable URLs
// can expire before the cache entry does.
func (r *Resolver) Refresh(ctx context.Context, query string) (mtypes.Track, error) {
	if r.cache != nil {
		r.cache.Invalidate("extract", query)
	}
	return r.Resolve(ctx, query)
}

// extract runs the extractor on the worker pool.
func (r *Resolver) extract(ctx context.Context, query string) (mtypes.Track, error) {
	if r.pacer != nil {
		if err := r.pacer.Wait(ctx, "extract_info"); err != nil {
			return mtypes.Track{}, err
		}
	}

	var track mtypes.Track
	start := time.Now()
	err := r.pool.Run(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		t, err := r.extractor.Extract(ctx, query)
		if err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}
		track = t
		return nil
	})
	elapsed := time.Since(start)
	if r.observer != nil {
		r.observer.ExtractionObserved(elapsed, err)
	}

	if err != nil {
		return mtypes.Track{}, mtypes.NewError(mtypes.ErrorCodeExtraction, "could not extract "+query, err).
			WithContext("query", query)
	}

	log.Info("Extraction finished", "query", truncateQuery(query), "took", elapsed.Round(time.Millisecond))
	return track, nil
}

func truncateQuery(q string) string {
	const max = 30
	r := []rune(q)
	if len(r) <= max {
		return q
	}
	return string(r[:max]) + "..."
}
