package carrefour

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"comparador/pkg/fetch"
	"comparador/pkg/logger"
	"comparador/pkg/metrics"
	"comparador/pkg/models"
)

const (
	Key     = "carrefour"
	Source  = "Carrefour"
	BaseURL = "https://mercado.carrefour.com.br/api/catalog_system/pub/products/search/"
)

// Retailer searches the public VTEX catalog of Carrefour Mercado.
type Retailer struct {
	Fetcher  *fetch.Fetcher
	Metrics  *metrics.Registry
	BaseURL  string
	Store    string
	Location string
}

func New(f *fetch.Fetcher) *Retailer {
	return &Retailer{
		Fetcher:  f,
		BaseURL:  BaseURL,
		Store:    Source,
		Location: models.DefaultLocation,
	}
}

func (r *Retailer) Name() string { return r.Store }

// searchURL escapes query as a single path segment. Reserved characters such
// as '+', '&' and '=' are percent-encoded and spaces become %20.
func (r *Retailer) searchURL(query string) string {
	base := r.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.ReplaceAll(url.QueryEscape(query), "+", "%20") + "/"
}

// Search never fails: upstream and decoding problems are logged and yield
// no products.
func (r *Retailer) Search(ctx context.Context, query string) ([]models.Product, error) {
	log := logger.With("carrefour")
	if strings.TrimSpace(query) == "" {
		return []models.Product{}, nil
	}

	endpoint := r.searchURL(query)
	res, err := r.Fetcher.Get(ctx, endpoint)
	if err != nil {
		log.Error().Err(err).Str("url", endpoint).Msg("catalog request failed")
		r.Metrics.ObserveUpstream(r.Store, metrics.OutcomeFetchError)
		return []models.Product{}, nil
	}
	if !res.OK() {
		log.Error().Int("status", res.StatusCode).Str("url", endpoint).Msg("catalog search returned an error status")
		r.Metrics.ObserveUpstream(r.Store, metrics.OutcomeHTTPError)
		return []models.Product{}, nil
	}

	products, err := r.Normalize(res.Body)
	if err != nil {
		log.Error().Err(err).Str("url", endpoint).Msg("catalog response is not a product list")
		r.Metrics.ObserveUpstream(r.Store, metrics.OutcomeDecodeError)
		return []models.Product{}, nil
	}

	r.Metrics.ObserveUpstream(r.Store, metrics.OutcomeOK)
	log.Debug().Str("query", query).Int("products", len(products)).Msg("catalog search done")
	return products, nil
}

// Normalize maps a catalog search body to products, dropping entries that
// lack a SKU, a seller or a priced offer.
func (r *Retailer) Normalize(body []byte) ([]models.Product, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(raw))
	for i, msg := range raw {
		var entry catalogEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			logger.Log.Debug().Err(err).Int("index", i).Msg("skipping malformed catalog entry")
			continue
		}
		if p, ok := r.normalizeEntry(entry); ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *Retailer) normalizeEntry(entry catalogEntry) (models.Product, bool) {
	if len(entry.Items) == 0 {
		return models.Product{}, false
	}
	sku := entry.Items[0]
	if len(sku.Sellers) == 0 {
		return models.Product{}, false
	}
	offer := sku.Sellers[0].CommertialOffer
	if offer == nil || offer.Price == nil || *offer.Price == 0 {
		return models.Product{}, false
	}

	id := string(sku.ItemID)
	if id == "" {
		id = string(entry.ProductID)
	}
	name := entry.ProductName
	if name == "" {
		name = sku.Name
	}
	image := models.PlaceholderImage
	if len(sku.Images) > 0 && sku.Images[0].ImageURL != "" {
		image = sku.Images[0].ImageURL
	}

	return models.NewProduct(models.Product{
		ID:            id,
		Name:          name,
		Price:         *offer.Price,
		OriginalPrice: offer.ListPrice,
		Store:         r.Store,
		Image:         image,
		Location:      r.Location,
	}), true
}
