package carrefour

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VTEX catalog_system search payload. Only the fields we read are declared.
type catalogEntry struct {
	ProductID   catalogID     `json:"productId"`
	ProductName string        `json:"productName"`
	Brand       string        `json:"brand"`
	Link        string        `json:"link"`
	Items       []catalogItem `json:"items"`
}

type catalogItem struct {
	ItemID  catalogID       `json:"itemId"`
	Name    string          `json:"name"`
	EAN     string          `json:"ean"`
	Images  []catalogImage  `json:"images"`
	Sellers []catalogSeller `json:"sellers"`
}

type catalogImage struct {
	ImageURL string `json:"imageUrl"`
}

type catalogSeller struct {
	SellerID        string           `json:"sellerId"`
	SellerName      string           `json:"sellerName"`
	CommertialOffer *commercialOffer `json:"commertialOffer"`
}

// commercialOffer keeps VTEX's capitalized field names.
type commercialOffer struct {
	Price       *float64 `json:"Price"`
	ListPrice   *float64 `json:"ListPrice"`
	IsAvailable bool     `json:"IsAvailable"`
}

// catalogID is an identifier that some catalog responses send as a number
// instead of a string.
type catalogID string

func (id *catalogID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = catalogID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("catalog id %s is neither a string nor a number", b)
	}
	*id = catalogID(n.String())
	return nil
}
