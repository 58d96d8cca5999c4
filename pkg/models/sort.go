package models

import "sort"

// SortByPrice orders products cheapest first.
func SortByPrice(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Price < products[j].Price
	})
}

// SortOffers orders products by biggest discount, then cheapest.
func SortOffers(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		di, dj := products[i].DiscountOrZero(), products[j].DiscountOrZero()
		if di != dj {
			return di > dj
		}
		return products[i].Price < products[j].Price
	})
}
