package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

func line(id string, price int64) domain.CartLine {
	return domain.CartLine{
		ItemID:    id,
		Model:     "iPhone 13",
		Brand:     "Apple",
		UnitPrice: decimal.NewFromInt(price),
		Currency:  "GBP",
		Condition: "refurbished",
	}
}

func newTestStore() (*Store, *MemoryPersister) {
	p := NewMemoryPersister()
	return NewStore(p, slog.New(slog.NewTextHandler(io.Discard, nil))), p
}

func TestStore_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("adding an existing item id is a no-op", func(t *testing.T) {
		s, _ := newTestStore()

		_, err := s.Add(ctx, "cart-0001", line("p1", 100))
		require.NoError(t, err)
		_, err = s.Add(ctx, "cart-0001", line("p2", 50))
		require.NoError(t, err)

		repeat := line("p1", 999)
		repeat.SelectedColor = "red"
		lines, err := s.Add(ctx, "cart-0001", repeat)
		require.NoError(t, err)

		require.Len(t, lines, 2)
		assert.Equal(t, "", lines[0].SelectedColor)
		assert.True(t, decimal.NewFromInt(100).Equal(lines[0].UnitPrice))
	})

	t.Run("persists across store instances", func(t *testing.T) {
		s, p := newTestStore()
		_, err := s.Add(ctx, "cart-0001", line("p1", 100))
		require.NoError(t, err)

		reopened := NewStore(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
		lines := reopened.Get(ctx, "cart-0001")
		require.Len(t, lines, 1)
		assert.Equal(t, "p1", lines[0].ItemID)
	})
}

func TestStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := s.Add(ctx, "cart-0001", line(id, 10))
		require.NoError(t, err)
	}

	lines, err := s.Remove(ctx, "cart-0001", "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, Count(lines))

	lines, err = s.Remove(ctx, "cart-0001", "absent")
	require.NoError(t, err)
	assert.Equal(t, 2, Count(lines))

	require.NoError(t, s.Clear(ctx, "cart-0001"))
	assert.Empty(t, s.Get(ctx, "cart-0001"))
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("absent cart is empty", func(t *testing.T) {
		s, _ := newTestStore()
		lines := s.Get(ctx, "cart-0001")
		assert.NotNil(t, lines)
		assert.Empty(t, lines)
	})

	t.Run("corrupt cart starts empty", func(t *testing.T) {
		s, p := newTestStore()
		p.Put("cart-0001", []byte(`{"broken`))

		assert.Empty(t, s.Get(ctx, "cart-0001"))

		lines, err := s.Add(ctx, "cart-0001", line("p1", 10))
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	})
}

func TestDecode(t *testing.T) {
	_, err := decode([]byte("nope"))
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestTotalAndRefs(t *testing.T) {
	lines := []domain.CartLine{line("p1", 100), line("p2", 250)}
	lines[1].SelectedStorage = "256GB"

	assert.True(t, decimal.NewFromInt(350).Equal(Total(lines)))
	assert.True(t, decimal.Zero.Equal(Total(nil)))

	refs := Refs(lines)
	require.Len(t, refs, 2)
	assert.Equal(t, "p2", refs[1].ItemID)
	assert.Equal(t, "256GB", refs[1].SelectedOptions.Storage)
}
