package shipping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

var shipmentRowColumns = []string{"id", "order_id", "tracking_number", "status", "events", "created_at", "updated_at"}

func newShipment() *domain.Shipment {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Shipment{
		OrderID:        "order-1",
		TrackingNumber: "SW-12345678",
		Status:         domain.ShipmentStatusCreated,
		Events:         []domain.TrackingEvent{domain.SeedTrackingEvent(now)},
		CreatedAt:      now,
	}
}

func TestRepository_Create(t *testing.T) {
	const insertSQL = `INSERT INTO shipments .+ ON CONFLICT \(order_id\) DO NOTHING\s+RETURNING id`

	t.Run("inserts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(insertSQL).
			WithArgs(sqlmock.AnyArg(), "order-1", "SW-12345678", "created", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ship-1"))

		shipment := newShipment()
		created, err := NewRepository(db).Create(context.Background(), shipment)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "ship-1", shipment.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("order already has a shipment", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(insertSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		created, err := NewRepository(db).Create(context.Background(), newShipment())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("tracking number taken", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(insertSQL).WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "shipments_tracking_number_key"})

		_, err = NewRepository(db).Create(context.Background(), newShipment())
		assert.ErrorIs(t, err, ErrTrackingNumberTaken)
	})
}

func TestRepository_AppendEvent(t *testing.T) {
	event := domain.TrackingEvent{
		Status:      domain.ShipmentStatusInTransit,
		Location:    "Leeds Hub",
		Description: "Departed facility",
		Timestamp:   time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	const appendSQL = `UPDATE shipments\s+SET events = jsonb_build_array\(\$2::jsonb\) \|\| events, status = \$3, updated_at = \$4\s+WHERE tracking_number = \$1\s+RETURNING`

	t.Run("prepends atomically and returns new state", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		seed := domain.SeedTrackingEvent(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
		events, err := json.Marshal([]domain.TrackingEvent{event, seed})
		require.NoError(t, err)

		mock.ExpectQuery(appendSQL).
			WithArgs("SW-12345678", payload, "in_transit", event.Timestamp).
			WillReturnRows(sqlmock.NewRows(shipmentRowColumns).
				AddRow("ship-1", "order-1", "SW-12345678", "in_transit", events, seed.Timestamp, event.Timestamp))

		shipment, err := NewRepository(db).AppendEvent(context.Background(), "SW-12345678", event)
		require.NoError(t, err)
		require.NotNil(t, shipment)

		assert.Equal(t, domain.ShipmentStatusInTransit, shipment.Status)
		require.Len(t, shipment.Events, 2)
		assert.Equal(t, event, shipment.Events[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown tracking number", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(appendSQL).WillReturnRows(sqlmock.NewRows(shipmentRowColumns))

		shipment, err := NewRepository(db).AppendEvent(context.Background(), "SW-99999999", event)
		require.NoError(t, err)
		assert.Nil(t, shipment)
	})

	t.Run("store failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(appendSQL).WillReturnError(sql.ErrConnDone)

		_, err = NewRepository(db).AppendEvent(context.Background(), "SW-12345678", event)
		assert.True(t, errors.Is(err, sql.ErrConnDone))
	})
}

func TestRepository_GetTracking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events, err := json.Marshal([]domain.TrackingEvent{domain.SeedTrackingEvent(now)})
	require.NoError(t, err)

	mock.ExpectQuery(`FROM shipments s\s+JOIN orders o ON o.id = s.order_id\s+WHERE s.tracking_number = \$1`).
		WithArgs("SW-12345678").
		WillReturnRows(sqlmock.NewRows(append(shipmentRowColumns, "customer_name", "shipping_address")).
			AddRow("ship-1", "order-1", "SW-12345678", "created", events, now, now,
				"Ada", []byte(`{"line1":"1 High St","city":"Leeds","postcode":"LS1 1AA"}`)))

	info, err := NewRepository(db).GetTracking(context.Background(), "SW-12345678")
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "order-1", info.OrderID)
	assert.Equal(t, "Ada", info.CustomerName)
	assert.Equal(t, "LS1 1AA", info.ShippingAddress.Postcode)
	require.Len(t, info.Events, 1)
	assert.Equal(t, domain.ShipmentStatusCreated, info.Events[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByOrderID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM shipments\s+WHERE order_id = \$1`).WithArgs("order-9").
		WillReturnRows(sqlmock.NewRows(shipmentRowColumns))

	shipment, err := NewRepository(db).GetByOrderID(context.Background(), "order-9")
	require.NoError(t, err)
	assert.Nil(t, shipment)
}
