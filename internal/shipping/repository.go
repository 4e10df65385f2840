package shipping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const uniqueViolation = "23505"

// ErrTrackingNumberTaken is returned by Create when another shipment
// already uses the tracking number.
var ErrTrackingNumberTaken = errors.New("tracking number already in use")

const shipmentColumns = `id, order_id, tracking_number, status, events, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the shipment unless its order already has one. It reports
// false, without error, when the order was already shipped.
func (r *Repository) Create(ctx context.Context, shipment *domain.Shipment) (bool, error) {
	events, err := json.Marshal(shipment.Events)
	if err != nil {
		return false, fmt.Errorf("encode events: %w", err)
	}

	id := uuid.New().String()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO shipments (id, order_id, tracking_number, status, events, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id
	`, id, shipment.OrderID, shipment.TrackingNumber, shipment.Status, events, shipment.CreatedAt).Scan(&shipment.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, ErrTrackingNumberTaken
		}
		return false, err
	}

	shipment.UpdatedAt = shipment.CreatedAt
	return true, nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+shipmentColumns+`
		FROM shipments
		WHERE order_id = $1
	`, orderID)

	shipment, err := scanShipment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return shipment, nil
}

// AppendEvent prepends event to the shipment's timeline and sets its status
// in a single statement. It returns nil when the tracking number is unknown.
func (r *Repository) AppendEvent(ctx context.Context, trackingNumber string, event domain.TrackingEvent) (*domain.Shipment, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE shipments
		SET events = jsonb_build_array($2::jsonb) || events, status = $3, updated_at = $4
		WHERE tracking_number = $1
		RETURNING `+shipmentColumns,
		trackingNumber, payload, event.Status, event.Timestamp)

	shipment, err := scanShipment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return shipment, nil
}

// GetTracking returns the public view of a shipment, or nil when the
// tracking number is unknown.
func (r *Repository) GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	var info domain.TrackingInfo
	var events, address []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.order_id, s.tracking_number, s.status, s.events, s.created_at, s.updated_at,
		       o.customer_name, o.shipping_address
		FROM shipments s
		JOIN orders o ON o.id = s.order_id
		WHERE s.tracking_number = $1
	`, trackingNumber).Scan(&info.ID, &info.OrderID, &info.TrackingNumber, &info.Status, &events,
		&info.CreatedAt, &info.UpdatedAt, &info.CustomerName, &address)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := decodeEvents(events, &info.Shipment); err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &info.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address of order %s: %w", info.OrderID, err)
		}
	}

	return &info, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*domain.Shipment, error) {
	var s domain.Shipment
	var events []byte

	if err := row.Scan(&s.ID, &s.OrderID, &s.TrackingNumber, &s.Status, &events, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeEvents(events, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeEvents(raw []byte, s *domain.Shipment) error {
	s.Events = []domain.TrackingEvent{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.Events); err != nil {
		return fmt.Errorf("decode events of shipment %s: %w", s.TrackingNumber, err)
	}
	return nil
}
