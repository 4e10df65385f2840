package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
)

const MaxReceiptSize = 10 << 20

type ProofStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	SetPaymentProof(ctx context.Context, id, path string) (*domain.Order, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type AccountCache interface {
	Invalidate(ctx context.Context, customerID string) error
}

type Receipt struct {
	Filename string
	Data     []byte
}

type PaymentResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type PaymentService struct {
	orders    ProofStore
	storage   ObjectStorage
	accounts  AccountCache
	publisher notify.Publisher
	ttl       time.Duration
	logger    *slog.Logger
	uploaded  metric.Int64Counter
}

func NewPaymentService(orders ProofStore, storage ObjectStorage, accounts AccountCache,
	publisher notify.Publisher, ttl time.Duration, logger *slog.Logger) (*PaymentService, error) {
	uploaded, err := otel.Meter("orders").Int64Counter("payments.proofs_uploaded",
		metric.WithDescription("Proofs of payment stored against orders"))
	if err != nil {
		return nil, fmt.Errorf("create payments.proofs_uploaded counter: %w", err)
	}

	return &PaymentService{
		orders:    orders,
		storage:   storage,
		accounts:  accounts,
		publisher: publisher,
		ttl:       ttl,
		logger:    logger,
		uploaded:  uploaded,
	}, nil
}

// ConfirmPayment stores a receipt for an order, records its path and tells
// the staff where to view it. Uploading again stores a new object and
// replaces the recorded path.
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderID string, receipt Receipt) (*PaymentResult, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", domain.ErrValidation)
	}
	if len(receipt.Data) == 0 {
		return nil, fmt.Errorf("%w: empty receipt", domain.ErrValidation)
	}
	if len(receipt.Data) > MaxReceiptSize {
		return nil, fmt.Errorf("%w: receipt larger than %d bytes", domain.ErrValidation, MaxReceiptSize)
	}

	contentType := http.DetectContentType(receipt.Data)
	if !acceptedReceiptType(contentType) {
		return nil, fmt.Errorf("%w: unsupported receipt type %s", domain.ErrValidation, contentType)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderUpdate, err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	key, err := receiptKey(orderID, receipt.Filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}

	if err := s.storage.Upload(ctx, key, receipt.Data, contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}

	url, err := s.storage.SignedURL(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSignedURL, err)
	}

	updated, err := s.orders.SetPaymentProof(ctx, orderID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderUpdate, err)
	}
	if updated == nil {
		return nil, domain.ErrOrderNotFound
	}

	s.uploaded.Add(ctx, 1)
	s.logger.Info("payment proof stored", "order_id", orderID, "path", key, "content_type", contentType)

	if err := s.accounts.Invalidate(ctx, updated.CustomerID); err != nil {
		s.logger.Warn("failed to invalidate account view", "error", err, "customer_id", updated.CustomerID)
	}

	intent := domain.NotificationIntent{
		Kind:          domain.NotificationPaymentProofUploaded,
		OrderID:       orderID,
		CustomerName:  updated.CustomerName,
		CustomerEmail: updated.CustomerEmail,
		TotalAmount:   updated.TotalAmount,
		Currency:      updated.Currency,
		ItemCount:     len(updated.Items),
		ProofURL:      url,
	}
	if err := s.publisher.Publish(ctx, intent); err != nil {
		s.logger.Error("failed to publish payment proof notification", "error", err, "order_id", orderID)
	}

	return &PaymentResult{Path: key, URL: url}, nil
}

func acceptedReceiptType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

func receiptKey(orderID, filename, contentType string) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate receipt suffix: %w", err)
	}
	return "receipts/" + orderID + "-" + hex.EncodeToString(suffix) + receiptExt(filename, contentType), nil
}

func receiptExt(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".pdf":
		return ext
	}

	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
