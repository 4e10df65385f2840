package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const orderColumns = `
	o.id, o.customer_id, o.customer_name, o.customer_email, o.customer_phone, o.shipping_address,
	o.total_amount, o.currency, o.status, COALESCE(o.payment_proof_path, ''), COALESCE(s.tracking_number, ''),
	o.created_at, o.updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create writes the order and its items in one transaction. The returned
// error wraps ErrOrderPersistence or ErrOrderItemPersistence depending on
// which write failed; either way nothing is left behind.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOrderPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.UpdatedAt = order.CreatedAt

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOrderPersistence, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, customer_email, customer_phone,
		                    shipping_address, total_amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, order.ID, order.CustomerID, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		address, order.TotalAmount, order.Currency, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOrderPersistence, err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID

		options, err := json.Marshal(item.SelectedOptions)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrOrderItemPersistence, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, item_id, price, selected_options)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ItemID, item.Price, options)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrOrderItemPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOrderPersistence, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN shipments s ON s.order_id = o.id
		WHERE o.id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	byOrder, err := r.itemsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = byOrder[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

// List returns every order, newest first, with items and tracking number.
func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN shipments s ON s.order_id = o.id
		ORDER BY o.created_at DESC
	`)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN shipments s ON s.order_id = o.id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC
	`, customerID)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	byOrder, err := r.itemsFor(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.item_id, oi.price, oi.selected_options,
			COALESCE(i.brand, ''), COALESCE(i.model, ''), COALESCE(i.image_url, '')
		FROM order_items oi
		LEFT JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byOrder := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		var options []byte
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemID, &item.Price, &options,
			&item.Brand, &item.Model, &item.ImageURL); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &item.SelectedOptions); err != nil {
				return nil, fmt.Errorf("decode selected options of item %s: %w", item.ID, err)
			}
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return byOrder, nil
}

// UpdateStatus moves an order to status when the transition table allows it
// from the order's current status. It returns nil when the order does not
// exist and ErrInvalidTransition when the current status forbids the move.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	sources := domain.TransitionSources(status)
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`, status, id, pq.Array(from))
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 && order != nil {
		return order, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, order.Status, status)
	}

	return order, nil
}

// SetPaymentProof records the storage path of the latest proof of payment.
// It returns nil when the order does not exist.
func (r *OrderRepository) SetPaymentProof(ctx context.Context, id, path string) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_proof_path = $1, updated_at = NOW()
		WHERE id = $2
	`, path, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var address []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(&order.ID, &order.CustomerID, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone,
		&address, &order.TotalAmount, &order.Currency, &order.Status, &order.PaymentProofPath, &order.TrackingNumber,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address of order %s: %w", order.ID, err)
		}
	}
	order.CreatedAt = createdAt
	order.UpdatedAt = updatedAt

	return &order, nil
}
