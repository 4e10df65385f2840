package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotificationOrderPlaced          NotificationKind = "order.placed"
	NotificationPaymentProofUploaded NotificationKind = "payment.proof_uploaded"
	NotificationShipmentCreated      NotificationKind = "shipment.created"
	NotificationTrackingUpdated      NotificationKind = "shipment.event_appended"
)

// StaffAudience reports whether the notification goes to the store staff
// rather than the customer.
func (k NotificationKind) StaffAudience() bool {
	return k == NotificationOrderPlaced || k == NotificationPaymentProofUploaded
}

// NotificationIntent is published by the order lifecycle and delivered by the
// notifier. Recipient is empty for staff notifications.
type NotificationIntent struct {
	ID             string           `json:"id"`
	Kind           NotificationKind `json:"kind"`
	Recipient      string           `json:"recipient,omitempty"`
	OrderID        string           `json:"order_id"`
	CustomerName   string           `json:"customer_name,omitempty"`
	CustomerEmail  string           `json:"customer_email,omitempty"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Currency       string           `json:"currency,omitempty"`
	ItemCount      int              `json:"item_count,omitempty"`
	ProofURL       string           `json:"proof_url,omitempty"`
	TrackingNumber string           `json:"tracking_number,omitempty"`
	TrackingURL    string           `json:"tracking_url,omitempty"`
	Event          *TrackingEvent   `json:"event,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
