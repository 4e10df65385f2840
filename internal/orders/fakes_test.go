package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/identity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrders struct {
	mu        sync.Mutex
	created   []*domain.Order
	orders    map[string]*domain.Order
	createErr error
	getErr    error
	setErr    error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*domain.Order)}
}

func (f *fakeOrders) Create(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	order.ID = "order-" + string(rune('a'+len(f.created)))
	f.created = append(f.created, order)
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.orders[id], nil
}

func (f *fakeOrders) SetPaymentProof(_ context.Context, id, path string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return nil, f.setErr
	}
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	order.PaymentProofPath = path
	return order, nil
}

func (f *fakeOrders) List(_ context.Context) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Order, 0, len(f.created))
	for _, o := range f.created {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return order, domain.ErrInvalidTransition
	}
	order.Status = status
	return order, nil
}

type fakeCatalog struct {
	prices map[string]domain.CatalogPrice
	err    error
	calls  [][]string
}

func (f *fakeCatalog) PricesByIDs(_ context.Context, ids []string) ([]domain.CatalogPrice, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CatalogPrice
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAccounts struct {
	err      error
	created  []string
	profiles []identity.Profile
}

func (f *fakeAccounts) CreateAccount(_ context.Context, email, password string, profile identity.Profile) (*domain.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(password) < 32 {
		return nil, errors.New("weak password")
	}
	f.created = append(f.created, email)
	f.profiles = append(f.profiles, profile)
	return &domain.Customer{ID: "cust-new", Email: email, Name: profile.Name, Phone: profile.Phone}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	intents []domain.NotificationIntent
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, intent domain.NotificationIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return f.err
}

type fakeStorage struct {
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	signErr   error
	ttls      []time.Duration
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.ttls = append(f.ttls, ttl)
	return "https://storage.test/" + key + "?X-Amz-Signature=abc", nil
}

type fakeAccountCache struct {
	invalidated []string
	err         error
}

func (f *fakeAccountCache) Invalidate(_ context.Context, customerID string) error {
	f.invalidated = append(f.invalidated, customerID)
	return f.err
}
