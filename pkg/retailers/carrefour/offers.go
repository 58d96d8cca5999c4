package carrefour

import (
	"context"

	"comparador/pkg/models"
)

// MinOfferDiscount is the smallest discount, exclusive, an item needs to be
// listed as an offer.
const MinOfferDiscount = 10

type mockOffer struct {
	id            string
	name          string
	price         float64
	originalPrice float64
}

// Carrefour has no public offers endpoint; these stand in for one.
var mockOffers = []mockOffer{
	{id: "carrefour-offer-1", name: "Leite Integral Parmalat 1L", price: 4.5, originalPrice: 5.49},
	{id: "carrefour-offer-2", name: "Arroz Tio João 5kg", price: 17.99, originalPrice: 22.99},
	{id: "carrefour-offer-3", name: "Óleo de Soja Soya 900ml", price: 3.99, originalPrice: 4.99},
}

func (r *Retailer) Offers(ctx context.Context) ([]models.Product, error) {
	offers := make([]models.Product, 0, len(mockOffers))
	for _, o := range mockOffers {
		p := models.NewProduct(models.Product{
			ID:            o.id,
			Name:          o.name,
			Price:         o.price,
			OriginalPrice: models.Float(o.originalPrice),
			Store:         r.Store,
			Location:      r.Location,
		})
		if p.DiscountOrZero() > MinOfferDiscount {
			offers = append(offers, p)
		}
	}
	return offers, nil
}
