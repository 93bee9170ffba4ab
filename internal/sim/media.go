package sim

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

const canonicalPrefix = "https://media.sim/watch/"

// ErrUnknownCollection is returned for catalog links that were never added.
var ErrUnknownCollection = errors.New("unknown collection")

// Extractor resolves every query into a synthetic track titled after it.
// Canonical URLs map back to the same title.
type Extractor struct {
	mu    sync.Mutex
	delay time.Duration
	fail  map[string]error
	calls int
}

// NewExtractor creates an extractor that takes delay per call.
func NewExtractor(delay time.Duration) *Extractor {
	return &Extractor{delay: delay, fail: make(map[string]error)}
}

// Fail makes extraction of title return err.
func (e *Extractor) Fail(title string, err error) {
	e.mu.Lock()
	e.fail[title] = err
	e.mu.Unlock()
}

// Calls returns how many extractions ran.
func (e *Extractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Extract implements mtypes.Extractor.
func (e *Extractor) Extract(ctx context.Context, query string) (mtypes.Track, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return mtypes.Track{}, ctx.Err()
		}
	}

	title := query
	if rest, ok := strings.CutPrefix(query, canonicalPrefix); ok {
		if t, err := url.PathUnescape(rest); err == nil {
			title = t
		}
	}

	e.mu.Lock()
	e.calls++
	n := e.calls
	err := e.fail[title]
	e.mu.Unlock()
	if err != nil {
		return mtypes.Track{}, err
	}

	length := 2*time.Minute + time.Duration(len(title)%60)*time.Second
	track, err := mtypes.NewTrack(title, canonicalPrefix+url.PathEscape(title), fmt.Sprintf("sim-stream://%s#%d", url.PathEscape(title), n), length)
	if err != nil {
		return mtypes.Track{}, err
	}
	track.Uploader = "Simulator"
	return track, nil
}

// Catalog serves collections registered with Add.
type Catalog struct {
	mu          sync.RWMutex
	collections map[string][]mtypes.CatalogItem
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{collections: make(map[string][]mtypes.CatalogItem)}
}

// Add registers the items behind link.
func (c *Catalog) Add(link string, items ...mtypes.CatalogItem) {
	c.mu.Lock()
	c.collections[link] = items
	c.mu.Unlock()
}

// ResolveCollection implements mtypes.Catalog.
func (c *Catalog) ResolveCollection(_ context.Context, link string) ([]mtypes.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.collections[link]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, link)
	}
	out := make([]mtypes.CatalogItem, len(items))
	copy(out, items)
	return out, nil
}
