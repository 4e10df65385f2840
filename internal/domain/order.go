package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// orderTransitions lists, for every status, the statuses it may move to.
// Statuses with no entry are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusPaid:            {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:      {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which next can be reached.
// Repositories use it to make status updates conditional on the current value.
func TransitionSources(next OrderStatus) []OrderStatus {
	var sources []OrderStatus
	for _, from := range []OrderStatus{
		OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusPaid,
		OrderStatusProcessing, OrderStatusShipped,
	} {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

type ShippingAddress struct {
	Line1    string `json:"line1"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
}

type SelectedOptions struct {
	Color   string `json:"color,omitempty"`
	Storage string `json:"storage,omitempty"`
}

type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ItemID          string          `json:"item_id"`
	Price           decimal.Decimal `json:"price"`
	SelectedOptions SelectedOptions `json:"selected_options"`
	// Catalog fields joined on read; empty when the item left the catalog.
	Brand    string `json:"brand,omitempty"`
	Model    string `json:"model,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	Status           OrderStatus     `json:"status"`
	PaymentProofPath string          `json:"payment_proof_path,omitempty"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
