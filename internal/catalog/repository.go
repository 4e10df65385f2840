package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListAvailable(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, brand, model, condition, price, currency, availability_status,
		       COALESCE(image_url, ''), colors
		FROM items
		WHERE availability_status = 'available'
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.Item{}
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Category, &item.Brand, &item.Model, &item.Condition,
			&item.Price, &item.Currency, &item.AvailabilityStatus, &item.ImageURL, pq.Array(&item.Colors)); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// PricesByIDs returns the current price of every item found among ids.
// Ids that do not exist are simply absent from the result.
func (r *Repository) PricesByIDs(ctx context.Context, ids []string) ([]domain.CatalogPrice, error) {
	if len(ids) == 0 {
		return []domain.CatalogPrice{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, price, currency
		FROM items
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	prices := []domain.CatalogPrice{}
	for rows.Next() {
		var p domain.CatalogPrice
		if err := rows.Scan(&p.ItemID, &p.Price, &p.Currency); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return prices, nil
}
