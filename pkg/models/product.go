package models

import "math"

const (
	PlaceholderImage = "/placeholder.svg?height=100&width=100"
	DefaultLocation  = "São Paulo - SP"
)

// Product is the uniform record every retailer integration returns.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Store         string   `json:"store"`
	Image         string   `json:"image"`
	Location      string   `json:"location"`
	Discount      *int     `json:"discount,omitempty"`
}

// NewProduct returns p with OriginalPrice dropped unless it exceeds Price,
// Discount derived from the remaining prices, and empty Image and Location
// replaced by their defaults. Any Discount already set on p is ignored.
func NewProduct(p Product) Product {
	if p.OriginalPrice != nil && *p.OriginalPrice > p.Price {
		original := *p.OriginalPrice
		p.OriginalPrice = &original
	} else {
		p.OriginalPrice = nil
	}
	p.Discount = Discount(p.OriginalPrice, p.Price)

	if p.Image == "" {
		p.Image = PlaceholderImage
	}
	if p.Location == "" {
		p.Location = DefaultLocation
	}
	return p
}

// Discount returns the rounded percentage drop from originalPrice to price,
// or nil when there is no drop. Halves round up.
func Discount(originalPrice *float64, price float64) *int {
	if originalPrice == nil || *originalPrice <= price {
		return nil
	}
	pct := (*originalPrice - price) / *originalPrice * 100
	d := int(math.Floor(pct + 0.5))
	return &d
}

// DiscountOrZero is the discount used for ordering; products without one rank as 0%.
func (p Product) DiscountOrZero() int {
	if p.Discount == nil {
		return 0
	}
	return *p.Discount
}

func Float(v float64) *float64 { return &v }
