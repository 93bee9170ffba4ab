package catalog

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// CollectionCache memoizes collection lookups.
type CollectionCache interface {
	GetOrCompute(ctx context.Context, fn string, compute func(context.Context) ([]mtypes.CatalogItem, error), args ...any) ([]mtypes.CatalogItem, error)
}

// Cached resolves collections through a cache, one entry per link.
type Cached struct {
	cache  CollectionCache
	source mtypes.Catalog
}

// NewCached wraps source with cache.
func NewCached(cache CollectionCache, source mtypes.Catalog) *Cached {
	return &Cached{cache: cache, source: source}
}

// ResolveCollection returns the cached items for link, resolving on a miss.
// Source failures are returned as CatalogFailure.
func (c *Cached) ResolveCollection(ctx context.Context, link string) ([]mtypes.CatalogItem, error) {
	items, err := c.cache.GetOrCompute(ctx, "resolve_collection", func(ctx context.Context) ([]mtypes.CatalogItem, error) {
		return c.resolve(ctx, link)
	}, link)
	if err == nil {
		return items, nil
	}
	if errors.Is(err, mtypes.ErrCatalogFailed) || ctx.Err() != nil {
		return nil, err
	}

	log.Error("Error using catalog cache, falling back to direct lookup", "url", link, "error", err)
	return c.resolve(ctx, link)
}

func (c *Cached) resolve(ctx context.Context, link string) ([]mtypes.CatalogItem, error) {
	items, err := c.source.ResolveCollection(ctx, link)
	if err != nil {
		return nil, mtypes.NewError(mtypes.ErrorCodeCatalog, "could not resolve catalog link", err).
			WithContext("url", link)
	}
	return items, nil
}
