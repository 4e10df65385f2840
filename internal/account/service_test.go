package account

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type memCache struct {
	views  map[string]*View
	getErr error
}

func (c *memCache) Get(_ context.Context, id string) (*View, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.views[id], nil
}

func (c *memCache) Set(_ context.Context, id string, view *View) error {
	c.views[id] = view
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	delete(c.views, id)
	return nil
}

type countingLister struct {
	calls  int
	orders []domain.Order
	err    error
}

func (l *countingLister) ListByCustomer(_ context.Context, _ string) ([]domain.Order, error) {
	l.calls++
	return l.orders, l.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_View(t *testing.T) {
	customer := &domain.Customer{ID: "cust-1", Email: "ada@example.com", Name: "Ada"}

	t.Run("caches until invalidated", func(t *testing.T) {
		lister := &countingLister{orders: []domain.Order{{ID: "order-2"}, {ID: "order-1"}}}
		cache := &memCache{views: map[string]*View{}}
		svc := NewService(lister, cache, discardLogger())

		view, err := svc.View(context.Background(), customer)
		require.NoError(t, err)
		assert.Len(t, view.Orders, 2)
		assert.Equal(t, "Ada", view.Customer.Name)

		_, err = svc.View(context.Background(), customer)
		require.NoError(t, err)
		assert.Equal(t, 1, lister.calls)

		require.NoError(t, svc.Invalidate(context.Background(), "cust-1"))
		_, err = svc.View(context.Background(), customer)
		require.NoError(t, err)
		assert.Equal(t, 2, lister.calls)
	})

	t.Run("cache failure falls through", func(t *testing.T) {
		lister := &countingLister{orders: []domain.Order{}}
		svc := NewService(lister, &memCache{views: map[string]*View{}, getErr: errors.New("redis down")}, discardLogger())

		view, err := svc.View(context.Background(), customer)
		require.NoError(t, err)
		assert.Empty(t, view.Orders)
		assert.Equal(t, 1, lister.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		lister := &countingLister{err: errors.New("connection refused")}
		svc := NewService(lister, NopCache{}, discardLogger())

		_, err := svc.View(context.Background(), customer)
		assert.Error(t, err)
	})
}

type staticResolver struct {
	customer *domain.Customer
}

func (r staticResolver) CurrentCustomer(*http.Request) (*domain.Customer, error) {
	return r.customer, nil
}

func TestHandler_Get(t *testing.T) {
	lister := &countingLister{orders: []domain.Order{{ID: "order-1", Status: domain.OrderStatusPending}}}
	svc := NewService(lister, NopCache{}, discardLogger())

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(svc, staticResolver{}, discardLogger()).HandleGet(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed in", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewHandler(svc, staticResolver{customer: &domain.Customer{ID: "cust-1", Email: "ada@example.com"}}, discardLogger())
		h.HandleGet(rec, httptest.NewRequest(http.MethodGet, "/account", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var view View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "ada@example.com", view.Customer.Email)
		require.Len(t, view.Orders, 1)
		assert.Equal(t, domain.OrderStatusPending, view.Orders[0].Status)
	})
}
