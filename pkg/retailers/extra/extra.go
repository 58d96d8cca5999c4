// Package extra is a placeholder for the Extra supermarket. It serves mock
// data until a real catalog integration exists and ships disabled.
package extra

import (
	"context"
	"strings"
	"unicode"

	"comparador/pkg/models"

	"golang.org/x/text/unicode/norm"
)

const (
	Key    = "extra"
	Source = "Extra"
)

const minOfferDiscount = 10

type Retailer struct {
	Store    string
	Location string
}

func New() *Retailer {
	return &Retailer{Store: Source, Location: models.DefaultLocation}
}

func (r *Retailer) Name() string { return r.Store }

func (r *Retailer) mock(prefix string) []models.Product {
	return []models.Product{
		models.NewProduct(models.Product{
			ID:            prefix + "1",
			Name:          "Leite Integral Italac 1L",
			Price:         4.79,
			OriginalPrice: models.Float(5.99),
			Store:         r.Store,
			Location:      r.Location,
		}),
		models.NewProduct(models.Product{
			ID:            prefix + "2",
			Name:          "Açúcar Cristal União 1kg",
			Price:         3.99,
			OriginalPrice: models.Float(4.49),
			Store:         r.Store,
			Location:      r.Location,
		}),
	}
}

// fold lowercases s and strips combining accents.
func fold(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Search returns the mock products whose name contains query as a
// substring, ignoring case and accents.
func (r *Retailer) Search(ctx context.Context, query string) ([]models.Product, error) {
	products := make([]models.Product, 0)
	needle := fold(query)
	for _, p := range r.mock("extra-") {
		if strings.Contains(fold(p.Name), needle) {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *Retailer) Offers(ctx context.Context) ([]models.Product, error) {
	offers := make([]models.Product, 0)
	for _, p := range r.mock("extra-offer-") {
		if p.DiscountOrZero() > minOfferDiscount {
			offers = append(offers, p)
		}
	}
	return offers, nil
}
