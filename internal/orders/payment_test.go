package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

var (
	pdfReceipt = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	pngReceipt = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
)

type paymentFixture struct {
	orders    *fakeOrders
	storage   *fakeStorage
	cache     *fakeAccountCache
	publisher *fakePublisher
	service   *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		orders:    newFakeOrders(),
		storage:   newFakeStorage(),
		cache:     &fakeAccountCache{},
		publisher: &fakePublisher{},
	}
	f.orders.orders["order-1"] = &domain.Order{
		ID:            "order-1",
		CustomerID:    "cust-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		TotalAmount:   decimal.RequireFromString("100"),
		Currency:      "GBP",
		Status:        domain.OrderStatusPending,
		Items:         []domain.OrderItem{{ItemID: "p1"}},
	}

	svc, err := NewPaymentService(f.orders, f.storage, f.cache, f.publisher, 365*24*time.Hour, discardLogger())
	require.NoError(t, err)
	f.service = svc
	return f
}

func TestConfirmPayment_StoresProofAndNotifiesStaff(t *testing.T) {
	f := newPaymentFixture(t)

	result, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Filename: "Receipt.PDF", Data: pdfReceipt})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^receipts/order-1-[0-9a-f]{8}\.pdf$`), result.Path)
	assert.Equal(t, pdfReceipt, f.storage.objects[result.Path])
	assert.Equal(t, "application/pdf", f.storage.types[result.Path])
	assert.Equal(t, []time.Duration{365 * 24 * time.Hour}, f.storage.ttls)
	assert.Equal(t, result.Path, f.orders.orders["order-1"].PaymentProofPath)

	require.Len(t, f.publisher.intents, 1)
	intent := f.publisher.intents[0]
	assert.Equal(t, domain.NotificationPaymentProofUploaded, intent.Kind)
	assert.Equal(t, result.URL, intent.ProofURL)
	assert.Equal(t, "order-1", intent.OrderID)

	assert.Equal(t, []string{"cust-1"}, f.cache.invalidated)
}

func TestConfirmPayment_RetryStoresSecondObject(t *testing.T) {
	f := newPaymentFixture(t)

	first, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Filename: "a.png", Data: pngReceipt})
	require.NoError(t, err)
	second, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Filename: "a.png", Data: pngReceipt})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Len(t, f.storage.objects, 2)
	assert.Equal(t, second.Path, f.orders.orders["order-1"].PaymentProofPath)
}

func TestConfirmPayment_ExtensionFromSniffedType(t *testing.T) {
	f := newPaymentFixture(t)

	result, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Filename: "upload", Data: pngReceipt})
	require.NoError(t, err)
	assert.Regexp(t, `\.png$`, result.Path)
}

func TestConfirmPayment_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		data    []byte
		wantErr error
	}{
		{name: "missing order id", orderID: "", data: pdfReceipt, wantErr: domain.ErrValidation},
		{name: "missing file", orderID: "order-1", data: nil, wantErr: domain.ErrValidation},
		{name: "not an image or pdf", orderID: "order-1", data: []byte("just some text"), wantErr: domain.ErrValidation},
		{name: "too large", orderID: "order-1", data: make([]byte, MaxReceiptSize+1), wantErr: domain.ErrValidation},
		{name: "unknown order", orderID: "order-404", data: pdfReceipt, wantErr: domain.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)

			_, err := f.service.ConfirmPayment(context.Background(), tt.orderID, Receipt{Filename: "r.pdf", Data: tt.data})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.storage.objects)
			assert.Empty(t, f.publisher.intents)
		})
	}
}

func TestConfirmPayment_DistinctFailures(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.storage.uploadErr = errors.New("bucket missing")

		_, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Data: pdfReceipt})
		assert.ErrorIs(t, err, domain.ErrUpload)
		assert.Empty(t, f.orders.orders["order-1"].PaymentProofPath)
	})

	t.Run("signed url", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.storage.signErr = errors.New("access denied")

		_, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Data: pdfReceipt})
		assert.ErrorIs(t, err, domain.ErrSignedURL)
		assert.Empty(t, f.orders.orders["order-1"].PaymentProofPath)
	})

	t.Run("order update", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.orders.setErr = errors.New("deadlock detected")

		_, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Data: pdfReceipt})
		assert.ErrorIs(t, err, domain.ErrOrderUpdate)
		assert.Empty(t, f.publisher.intents)
		assert.Empty(t, f.cache.invalidated)
	})
}

func TestConfirmPayment_PublishFailureIsAbsorbed(t *testing.T) {
	f := newPaymentFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	_, err := f.service.ConfirmPayment(context.Background(), "order-1", Receipt{Data: pdfReceipt})
	require.NoError(t, err)
	assert.NotEmpty(t, f.orders.orders["order-1"].PaymentProofPath)
}
