package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// SetConfig configures the three caches used by the playback core.
type SetConfig struct {
	Media           Config
	Catalog         Config
	Image           Config
	CleanupInterval time.Duration
}

// DefaultSetConfig returns the reference cache sizes and TTLs.
func DefaultSetConfig() SetConfig {
	return SetConfig{
		Media:           MediaConfig(),
		Catalog:         CatalogConfig(),
		Image:           ImageConfig(),
		CleanupInterval: DefaultCleanupInterval,
	}
}

// Set owns the media, catalog and image caches and their janitor.
type Set struct {
	Media   *TTLCache[mtypes.Track]
	Catalog *TTLCache[[]mtypes.CatalogItem]
	Image   *TTLCache[[]byte]

	janitor *Janitor
}

// NewSet builds the caches and starts the janitor.
func NewSet(cfg SetConfig, opts ...Option) (*Set, error) {
	media, err := New[mtypes.Track](cfg.Media, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create media cache: %w", err)
	}
	catalog, err := New[[]mtypes.CatalogItem](cfg.Catalog, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	image, err := New[[]byte](cfg.Image, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	s := &Set{Media: media, Catalog: catalog, Image: image}
	s.janitor = NewJanitor(cfg.CleanupInterval, media, catalog, image)
	s.janitor.Start()
	return s, nil
}

// Stats returns statistics for every cache in the set.
func (s *Set) Stats() []Stats {
	return []Stats{s.Media.Stats(), s.Catalog.Stats(), s.Image.Stats()}
}

// Sweep runs one cleanup pass immediately.
func (s *Set) Sweep() int {
	return s.janitor.Sweep()
}

// Name implements lifecycle.Component.
func (s *Set) Name() string { return "cache-janitor" }

// Shutdown stops the janitor.
func (s *Set) Shutdown(context.Context) error {
	return s.janitor.Close()
}

// ForceStop stops the janitor.
func (s *Set) ForceStop() {
	_ = s.janitor.Close()
}
