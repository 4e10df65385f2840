package domain

import "github.com/shopspring/decimal"

// CartLine is a client-held selection. Its price is a display hint only and
// is never trusted at checkout.
type CartLine struct {
	ItemID          string          `json:"item_id"`
	Model           string          `json:"model"`
	Brand           string          `json:"brand"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Currency        string          `json:"currency"`
	ImageURL        string          `json:"image_url,omitempty"`
	Condition       string          `json:"condition"`
	SelectedColor   string          `json:"selected_color,omitempty"`
	SelectedStorage string          `json:"selected_storage,omitempty"`
}

func (l CartLine) Ref() CartLineRef {
	return CartLineRef{
		ItemID: l.ItemID,
		SelectedOptions: SelectedOptions{
			Color:   l.SelectedColor,
			Storage: l.SelectedStorage,
		},
	}
}

// CartLineRef is what checkout accepts for each line.
type CartLineRef struct {
	ItemID          string          `json:"item_id"`
	SelectedOptions SelectedOptions `json:"selected_options"`
}
