package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/identity"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
)

const defaultCurrency = "GBP"

type OrderCreator interface {
	Create(ctx context.Context, order *domain.Order) error
}

type PriceLookup interface {
	PricesByIDs(ctx context.Context, ids []string) ([]domain.CatalogPrice, error)
}

type AccountProvisioner interface {
	CreateAccount(ctx context.Context, email, password string, profile identity.Profile) (*domain.Customer, error)
}

type CheckoutInput struct {
	Name     string               `json:"name"`
	Email    string               `json:"email"`
	Phone    string               `json:"phone"`
	Address  string               `json:"address"`
	City     string               `json:"city"`
	Postcode string               `json:"postcode"`
	Lines    []domain.CartLineRef `json:"cart_items"`
}

type CheckoutResult struct {
	OrderID    string
	NewAccount bool
}

type CheckoutService struct {
	orders       OrderCreator
	catalog      PriceLookup
	accounts     AccountProvisioner
	accountCache AccountCache
	publisher    notify.Publisher
	logger       *slog.Logger
	placed       metric.Int64Counter
	now          func() time.Time
}

func NewCheckoutService(orders OrderCreator, catalog PriceLookup, accounts AccountProvisioner,
	accountCache AccountCache, publisher notify.Publisher, logger *slog.Logger) (*CheckoutService, error) {
	placed, err := otel.Meter("orders").Int64Counter("orders.placed",
		metric.WithDescription("Orders placed through checkout"))
	if err != nil {
		return nil, fmt.Errorf("create orders.placed counter: %w", err)
	}

	return &CheckoutService{
		orders:       orders,
		catalog:      catalog,
		accounts:     accounts,
		accountCache: accountCache,
		publisher:    publisher,
		logger:       logger,
		placed:       placed,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Checkout turns a cart into a pending order priced from the catalog.
// customer is the signed-in customer, or nil for a guest; guests get an
// account provisioned with a random password.
func (s *CheckoutService) Checkout(ctx context.Context, customer *domain.Customer, in CheckoutInput) (*CheckoutResult, error) {
	in = normalize(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	lines := distinctLines(in.Lines)
	byID, err := s.price(ctx, lines)
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{}

	if customer == nil {
		created, err := s.provision(ctx, in)
		if err != nil {
			return nil, err
		}
		customer = created
		result.NewAccount = true
	}

	order := &domain.Order{
		CustomerID:    customer.ID,
		CustomerName:  in.Name,
		CustomerEmail: in.Email,
		CustomerPhone: in.Phone,
		ShippingAddress: domain.ShippingAddress{
			Line1:    in.Address,
			City:     in.City,
			Postcode: in.Postcode,
		},
		TotalAmount: decimal.Zero,
		Currency:    defaultCurrency,
		Status:      domain.OrderStatusPending,
		CreatedAt:   s.now(),
	}

	for i, line := range lines {
		price := byID[line.ItemID]
		if i == 0 && price.Currency != "" {
			order.Currency = price.Currency
		}
		order.TotalAmount = order.TotalAmount.Add(price.Price)
		order.Items = append(order.Items, domain.OrderItem{
			ItemID:          line.ItemID,
			Price:           price.Price,
			SelectedOptions: line.SelectedOptions,
		})
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	result.OrderID = order.ID

	if !result.NewAccount {
		if err := s.accountCache.Invalidate(ctx, order.CustomerID); err != nil {
			s.logger.Warn("failed to invalidate account view", "error", err, "customer_id", order.CustomerID)
		}
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("new_account", result.NewAccount)))
	s.logger.Info("order placed", "order_id", order.ID, "customer_id", order.CustomerID,
		"total", order.TotalAmount.StringFixed(2), "currency", order.Currency, "items", len(order.Items))

	intent := domain.NotificationIntent{
		Kind:          domain.NotificationOrderPlaced,
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		ItemCount:     len(order.Items),
	}
	if err := s.publisher.Publish(ctx, intent); err != nil {
		s.logger.Error("failed to publish order placed notification", "error", err, "order_id", order.ID)
	}

	return result, nil
}

// price resolves every line against the catalog. It runs before any account
// is provisioned so a rejected cart leaves nothing behind.
func (s *CheckoutService) price(ctx context.Context, lines []domain.CartLineRef) (map[string]domain.CatalogPrice, error) {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ItemID
	}

	prices, err := s.catalog.PricesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogLookup, err)
	}

	byID := make(map[string]domain.CatalogPrice, len(prices))
	for _, p := range prices {
		byID[p.ItemID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownItem, strings.Join(missing, ", "))
	}
	return byID, nil
}

func (s *CheckoutService) provision(ctx context.Context, in CheckoutInput) (*domain.Customer, error) {
	password, err := identity.GeneratePassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAccountCreation, err)
	}

	customer, err := s.accounts.CreateAccount(ctx, in.Email, password, identity.Profile{Name: in.Name, Phone: in.Phone})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrAccountCreation, err)
	}
	if customer == nil {
		return nil, domain.ErrAccountCreation
	}

	s.logger.Info("account provisioned at checkout", "customer_id", customer.ID)
	return customer, nil
}

func normalize(in CheckoutInput) CheckoutInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.Postcode = strings.TrimSpace(in.Postcode)
	return in
}

func validate(in CheckoutInput) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"email", in.Email},
		{"phone", in.Phone},
		{"address", in.Address},
		{"city", in.City},
		{"postcode", in.Postcode},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}

	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}

	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	for _, line := range in.Lines {
		if strings.TrimSpace(line.ItemID) == "" {
			return fmt.Errorf("%w: cart line without item id", domain.ErrValidation)
		}
	}

	return nil
}

// distinctLines keeps the first line per item id, matching the cart which
// never holds the same item twice.
func distinctLines(lines []domain.CartLineRef) []domain.CartLineRef {
	seen := make(map[string]bool, len(lines))
	out := make([]domain.CartLineRef, 0, len(lines))
	for _, line := range lines {
		if seen[line.ItemID] {
			continue
		}
		seen[line.ItemID] = true
		out = append(out, line)
	}
	return out
}
