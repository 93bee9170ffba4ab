package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

type mockExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
	track mtypes.Track
}

func (m *mockExtractor) Extract(_ context.Context, query string) (mtypes.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return mtypes.Track{}, m.err
	}
	t := m.track
	if t.Title == "" {
		t = testTrack(120)
		t.Title = query
	}
	return t, nil
}

func (m *mockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type brokenCache struct{}

func (brokenCache) GetOrCompute(context.Context, string, func(context.Context) (mtypes.Track, error), ...any) (mtypes.Track, error) {
	return mtypes.Track{}, errors.New("cache backend unavailable")
}

func (brokenCache) Invalidate(string, ...any) {}

func TestResolver_UsesCache(t *testing.T) {
	c, err := cache.New[mtypes.Track](cache.MediaConfig())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	ex := &mockExtractor{}
	r := NewResolver(c, ex, NewPool(2))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr, err := r.Resolve(ctx, "song")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if tr.Title != "song" {
			t.Errorf("Expected title song, got %q", tr.Title)
		}
	}

	if ex.Calls() != 1 {
		t.Errorf("Expected 1 extractor call, got %d", ex.Calls())
	}
	if s := c.Stats(); s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Expected 2 hits and 1 miss, got %d/%d", s.Hits, s.Misses)
	}
}

func TestResolver_FallsBackWhenCacheFails(t *testing.T) {
	ex := &mockExtractor{}
	r := NewResolver(brokenCache{}, ex, nil)

	tr, err := r.Resolve(context.Background(), "song")
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if tr.Title != "song" || ex.Calls() != 1 {
		t.Errorf("Expected direct extraction, got %q after %d calls", tr.Title, ex.Calls())
	}
}

func TestResolver_ExtractionFailure(t *testing.T) {
	c, _ := cache.New[mtypes.Track](cache.MediaConfig())
	ex := &mockExtractor{err: errors.New("video unavailable")}
	r := NewResolver(c, ex, nil)

	_, err := r.Resolve(context.Background(), "song")
	if !errors.Is(err, mtypes.ErrExtractionFailed) {
		t.Fatalf("Expected ErrExtractionFailed, got %v", err)
	}
	if code, ok := mtypes.CodeOf(err); !ok || code != mtypes.ErrorCodeExtraction {
		t.Errorf("Expected extraction error code, got %q", code)
	}
	if ex.Calls() != 2 {
		t.Errorf("Expected one direct retry after the cached attempt, got %d calls", ex.Calls())
	}
	if c.Len() != 0 {
		t.Error("Expected failed extraction not to be cached")
	}
}

func TestResolver_RejectsInvalidTrack(t *testing.T) {
	ex := &mockExtractor{track: mtypes.Track{Title: "no url"}}
	r := NewResolver(nil, ex, nil)

	_, err := r.Resolve(context.Background(), "song")
	if !errors.Is(err, mtypes.ErrExtractionFailed) || !errors.Is(err, mtypes.ErrInvalidTrack) {
		t.Errorf("Expected invalid track extraction failure, got %v", err)
	}
}

type recordingPacer struct{ actions []string }

func (p *recordingPacer) Wait(_ context.Context, action string) error {
	p.actions = append(p.actions, action)
	return nil
}

func TestResolver_PacesExtraction(t *testing.T) {
	pacer := &recordingPacer{}
	r := NewResolver(nil, &mockExtractor{}, nil, WithPacer(pacer))

	if _, err := r.Resolve(context.Background(), "song"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(pacer.actions) != 1 || pacer.actions[0] != "extract_info" {
		t.Errorf("Expected one extract_info wait, got %v", pacer.actions)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	ctx := context.Background()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(ctx, func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent jobs, saw %d", peak.Load())
	}
	if p.Completed() != 6 {
		t.Errorf("Expected 6 completed jobs, got %d", p.Completed())
	}
}

func TestPool_Shutdown(t *testing.T) {
	p := NewPool(1)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	err := p.Run(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed after shutdown, got %v", err)
	}
}

func TestResolver_RefreshBypassesCache(t *testing.T) {
	c, _ := cache.New[mtypes.Track](cache.MediaConfig())
	ex := &mockExtractor{}
	r := NewResolver(c, ex, nil)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "song"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Refresh(ctx, "song"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if ex.Calls() != 2 {
		t.Errorf("Expected refresh to extract again, got %d calls", ex.Calls())
	}
}

// gatedExtractor blocks every extraction until release is closed or the
// extraction context ends.
type gatedExtractor struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedExtractor) Extract(ctx context.Context, query string) (mtypes.Track, error) {
	g.calls.Add(1)
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return mtypes.Track{}, ctx.Err()
	}
	t := testTrack(120)
	t.Title = query
	return t, nil
}

func TestResolver_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	c, _ := cache.New[mtypes.Track](cache.MediaConfig())
	ex := &gatedExtractor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := NewResolver(c, ex, NewPool(2))

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(first, "song")
		firstErr <- err
	}()
	<-ex.entered

	type result struct {
		track mtypes.Track
		err   error
	}
	second := make(chan result, 1)
	go func() {
		tr, err := r.Resolve(context.Background(), "song")
		second <- result{tr, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) || !errors.Is(err, mtypes.ErrExtractionFailed) {
			t.Errorf("Expected the cancelled caller to fail with its own cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancelled caller did not return")
	}

	close(ex.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("Expected the live caller to succeed, got %v", res.err)
		}
		if res.track.Title != "song" {
			t.Errorf("Expected title song, got %q", res.track.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Live caller did not return")
	}

	if got := ex.calls.Load(); got != 1 {
		t.Errorf("Expected a single shared extraction, got %d", got)
	}
	if c.Len() != 1 {
		t.Error("Expected the shared result to be cached")
	}
}
