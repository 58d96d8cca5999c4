package retailers

import (
	"context"

	"comparador/pkg/logger"
	"comparador/pkg/models"
)

// ResultCache stores search results per store and query.
type ResultCache interface {
	Get(ctx context.Context, store, query string) ([]models.Product, bool)
	Set(ctx context.Context, store, query string, products []models.Product)
}

// CacheObserver records cache lookups.
type CacheObserver interface {
	ObserveCache(store string, hit bool)
}

type cached struct {
	Retailer
	cache    ResultCache
	observer CacheObserver
}

// WithCache wraps rt so non-empty search results are served from c.
// Offers always go to rt. observer may be nil.
func WithCache(rt Retailer, c ResultCache, observer CacheObserver) Retailer {
	return &cached{Retailer: rt, cache: c, observer: observer}
}

func (c *cached) Search(ctx context.Context, term string) ([]models.Product, error) {
	store := c.Name()
	if products, ok := c.cache.Get(ctx, store, term); ok {
		c.observe(store, true)
		logger.Dedup("Cache hit for %s/%s", store, term)
		return products, nil
	}
	c.observe(store, false)

	products, err := c.Retailer.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		c.cache.Set(ctx, store, term, products)
	}
	return products, nil
}

func (c *cached) observe(store string, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(store, hit)
	}
}
