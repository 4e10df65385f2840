package account

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type View struct {
	Customer domain.Customer `json:"customer"`
	Orders   []domain.Order  `json:"orders"`
}

type OrderLister interface {
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}

type Cache interface {
	Get(ctx context.Context, customerID string) (*View, error)
	Set(ctx context.Context, customerID string, view *View) error
	Invalidate(ctx context.Context, customerID string) error
}

type Service struct {
	orders OrderLister
	cache  Cache
	logger *slog.Logger
}

func NewService(orders OrderLister, cache Cache, logger *slog.Logger) *Service {
	return &Service{
		orders: orders,
		cache:  cache,
		logger: logger,
	}
}

// View returns the customer's profile and orders, newest first. Cache
// failures fall through to the database.
func (s *Service) View(ctx context.Context, customer *domain.Customer) (*View, error) {
	cached, err := s.cache.Get(ctx, customer.ID)
	if err != nil {
		s.logger.Warn("account cache read failed", "error", err, "customer_id", customer.ID)
	}
	if cached != nil {
		return cached, nil
	}

	orders, err := s.orders.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	view := &View{Customer: *customer, Orders: orders}
	if err := s.cache.Set(ctx, customer.ID, view); err != nil {
		s.logger.Warn("account cache write failed", "error", err, "customer_id", customer.ID)
	}
	return view, nil
}

func (s *Service) Invalidate(ctx context.Context, customerID string) error {
	return s.cache.Invalidate(ctx, customerID)
}
