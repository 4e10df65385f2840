package catalog

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arrayArg []string

func (a arrayArg) Match(v driver.Value) bool {
	want, err := pq.Array([]string(a)).Value()
	if err != nil {
		return false
	}
	return v == want
}

func TestRepository_PricesByIDs(t *testing.T) {
	t.Run("returns found prices", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`SELECT id, price, currency\s+FROM items\s+WHERE id = ANY\(\$1\)`).
			WithArgs(arrayArg{"p1", "p2"}).
			WillReturnRows(sqlmock.NewRows([]string{"id", "price", "currency"}).
				AddRow("p1", "100.00", "GBP").
				AddRow("p2", "249.99", "GBP"))

		prices, err := NewRepository(db).PricesByIDs(context.Background(), []string{"p1", "p2"})
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.Equal(t, "p1", prices[0].ItemID)
		assert.True(t, decimal.NewFromInt(100).Equal(prices[0].Price))
		assert.True(t, decimal.RequireFromString("249.99").Equal(prices[1].Price))
		assert.Equal(t, "GBP", prices[1].Currency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips query for empty id set", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		prices, err := NewRepository(db).PricesByIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, prices)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates query errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`FROM items`).WillReturnError(errors.New("connection refused"))

		_, err = NewRepository(db).PricesByIDs(context.Background(), []string{"p1"})
		assert.Error(t, err)
	})
}
