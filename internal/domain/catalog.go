package domain

import "github.com/shopspring/decimal"

// CatalogPrice is the authoritative price of an item at lookup time.
type CatalogPrice struct {
	ItemID   string          `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

type Item struct {
	ID                 string          `json:"id"`
	Category           string          `json:"category"`
	Brand              string          `json:"brand"`
	Model              string          `json:"model"`
	Condition          string          `json:"condition"`
	Price              decimal.Decimal `json:"price"`
	Currency           string          `json:"currency"`
	AvailabilityStatus string          `json:"availability_status"`
	ImageURL           string          `json:"image_url,omitempty"`
	Colors             []string        `json:"colors,omitempty"`
}
