package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

type ShipmentStatus string

const (
	ShipmentStatusCreated        ShipmentStatus = "created"
	ShipmentStatusProcessing     ShipmentStatus = "processing"
	ShipmentStatusPickedUp       ShipmentStatus = "picked_up"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusException      ShipmentStatus = "exception"
)

func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentStatusCreated, ShipmentStatusProcessing, ShipmentStatusPickedUp, ShipmentStatusInTransit,
		ShipmentStatusOutForDelivery, ShipmentStatusDelivered, ShipmentStatusException:
		return true
	}
	return false
}

// OrderStatus reports the order status a shipment milestone implies, if any.
func (s ShipmentStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case ShipmentStatusPickedUp, ShipmentStatusInTransit, ShipmentStatusOutForDelivery:
		return OrderStatusShipped, true
	case ShipmentStatusDelivered:
		return OrderStatusDelivered, true
	}
	return "", false
}

type TrackingEvent struct {
	Status      ShipmentStatus `json:"status"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Shipment events are ordered newest first.
type Shipment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	TrackingNumber string          `json:"tracking_number"`
	Status         ShipmentStatus  `json:"status"`
	Events         []TrackingEvent `json:"events"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TrackingInfo is the public view of a shipment: no contact details beyond
// the recipient name and destination.
type TrackingInfo struct {
	Shipment
	CustomerName    string          `json:"customer_name"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

func SeedTrackingEvent(now time.Time) TrackingEvent {
	return TrackingEvent{
		Status:      ShipmentStatusCreated,
		Location:    "Warehouse",
		Description: "Shipment information received",
		Timestamp:   now,
	}
}

const trackingPrefix = "SW-"

var trackingNumberPattern = regexp.MustCompile(`^SW-[0-9]{8}$`)

var trackingRange = big.NewInt(90000000)

// NewTrackingNumber returns SW- followed by 8 random digits without a leading zero.
func NewTrackingNumber() (string, error) {
	n, err := rand.Int(rand.Reader, trackingRange)
	if err != nil {
		return "", fmt.Errorf("generate tracking number: %w", err)
	}
	return fmt.Sprintf("%s%d", trackingPrefix, n.Int64()+10000000), nil
}

func ValidTrackingNumber(s string) bool {
	return trackingNumberPattern.MatchString(s)
}
