// Package retailers defines the uniform retailer integration and the
// registry the aggregation endpoint fans out over.
package retailers

import (
	"context"
	"fmt"

	"comparador/pkg/models"

	"golang.org/x/sync/errgroup"
)

// Retailer is one store integration. Search and Offers return an error only
// for failures the caller must surface; upstream trouble is expected to be
// logged and reported as an empty result.
type Retailer interface {
	Name() string
	Search(ctx context.Context, term string) ([]models.Product, error)
	Offers(ctx context.Context) ([]models.Product, error)
}

type entry struct {
	retailer Retailer
	enabled  bool
}

type Registry struct {
	entries []entry
	limit   int
}

// NewRegistry returns an empty registry that queries at most limit
// retailers at once. limit <= 0 means no limit.
func NewRegistry(limit int) *Registry {
	return &Registry{limit: limit}
}

func (r *Registry) Register(rt Retailer, enabled bool) {
	r.entries = append(r.entries, entry{retailer: rt, enabled: enabled})
}

// Active returns the enabled retailers in registration order.
func (r *Registry) Active() []Retailer {
	var active []Retailer
	for _, e := range r.entries {
		if e.enabled {
			active = append(active, e.retailer)
		}
	}
	return active
}

// SearchAll searches every active retailer and concatenates the results in
// registration order.
func (r *Registry) SearchAll(ctx context.Context, term string) ([]models.Product, error) {
	return r.collect(ctx, func(ctx context.Context, rt Retailer) ([]models.Product, error) {
		return rt.Search(ctx, term)
	})
}

// OffersAll gathers offers from every active retailer in registration order.
func (r *Registry) OffersAll(ctx context.Context) ([]models.Product, error) {
	return r.collect(ctx, func(ctx context.Context, rt Retailer) ([]models.Product, error) {
		return rt.Offers(ctx)
	})
}

func (r *Registry) collect(ctx context.Context, call func(context.Context, Retailer) ([]models.Product, error)) ([]models.Product, error) {
	active := r.Active()
	results := make([][]models.Product, len(active))

	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, rt := range active {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("%s: panic: %v", rt.Name(), rec)
				}
			}()
			products, err := call(gctx, rt)
			if err != nil {
				return fmt.Errorf("%s: %w", rt.Name(), err)
			}
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]models.Product, 0)
	for _, products := range results {
		all = append(all, products...)
	}
	return all, nil
}
