package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/config"
)

func testConfig(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Endpoint:     endpoint,
		Region:       "us-east-1",
		Bucket:       "receipts",
		AccessKey:    "upload-key",
		SecretKey:    "upload-secret",
		UsePathStyle: true,
	}
}

func TestNewS3Storage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("requires bucket", func(t *testing.T) {
		cfg := testConfig("http://localhost:9000")
		cfg.Bucket = ""
		_, err := NewS3Storage(context.Background(), cfg, logger)
		assert.Error(t, err)
	})

	t.Run("requires credentials", func(t *testing.T) {
		cfg := testConfig("http://localhost:9000")
		cfg.SecretKey = ""
		_, err := NewS3Storage(context.Background(), cfg, logger)
		assert.Error(t, err)
	})
}

func TestS3Storage_Upload(t *testing.T) {
	var gotPath, gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := NewS3Storage(context.Background(), testConfig(server.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	err = s.Upload(context.Background(), "receipts/order-1-abc.pdf", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "/receipts/receipts/order-1-abc.pdf", gotPath)
	assert.Contains(t, gotBody, "%PDF-1.4")
	assert.Equal(t, "application/pdf", gotType)
}

func TestS3Storage_SignedURL(t *testing.T) {
	cfg := testConfig("http://localhost:9000")
	cfg.AdminAccessKey = "admin-key"
	cfg.AdminSecretKey = "admin-secret"

	s, err := NewS3Storage(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	signed, err := s.SignedURL(context.Background(), "receipts/order-1-abc.pdf", 365*24*time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.Equal(t, "/receipts/receipts/order-1-abc.pdf", u.Path)
	assert.Equal(t, "31536000", u.Query().Get("X-Amz-Expires"))
	assert.True(t, strings.HasPrefix(u.Query().Get("X-Amz-Credential"), "admin-key/"))

	_, err = s.SignedURL(context.Background(), "", time.Hour)
	assert.Error(t, err)
}
