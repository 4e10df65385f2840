package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// ErrCorrupt is returned by a Persister when stored data cannot be decoded.
var ErrCorrupt = errors.New("stored cart is corrupt")

type Persister interface {
	Load(ctx context.Context, cartID string) ([]domain.CartLine, error)
	Save(ctx context.Context, cartID string, lines []domain.CartLine) error
}

// Store holds carts keyed by a client-held cart id. Every mutation writes
// the full line list back through the persister.
type Store struct {
	persister Persister
	logger    *slog.Logger
	mu        sync.Mutex
}

func NewStore(persister Persister, logger *slog.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger,
	}
}

// Get returns the lines of a cart. Missing or unreadable data yields an
// empty cart.
func (s *Store) Get(ctx context.Context, cartID string) []domain.CartLine {
	lines, err := s.persister.Load(ctx, cartID)
	if err != nil {
		s.logger.Warn("failed to load cart, starting empty", "error", err, "cart_id", cartID)
		return []domain.CartLine{}
	}
	if lines == nil {
		return []domain.CartLine{}
	}
	return lines
}

// Add appends line unless the cart already holds its item id. A repeated add
// leaves the existing line, options included, untouched.
func (s *Store) Add(ctx context.Context, cartID string, line domain.CartLine) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Get(ctx, cartID)
	for _, existing := range lines {
		if existing.ItemID == line.ItemID {
			return lines, nil
		}
	}

	lines = append(lines, line)
	if err := s.persister.Save(ctx, cartID, lines); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return lines, nil
}

func (s *Store) Remove(ctx context.Context, cartID, itemID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Get(ctx, cartID)
	kept := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ItemID != itemID {
			kept = append(kept, l)
		}
	}

	if err := s.persister.Save(ctx, cartID, kept); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return kept, nil
}

func (s *Store) Clear(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persister.Save(ctx, cartID, []domain.CartLine{}); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func Count(lines []domain.CartLine) int {
	return len(lines)
}

// Total sums the display prices of lines. Checkout re-prices from the catalog.
func Total(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice)
	}
	return total
}

func Refs(lines []domain.CartLine) []domain.CartLineRef {
	refs := make([]domain.CartLineRef, len(lines))
	for i, l := range lines {
		refs[i] = l.Ref()
	}
	return refs
}
