package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := p.Publish(context.Background(), domain.NotificationIntent{
		Kind:    domain.NotificationOrderPlaced,
		OrderID: "order-1",
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"kind":"order.placed"`)
	assert.Contains(t, buf.String(), `"order_id":"order-1"`)
	assert.Contains(t, buf.String(), `"intent_id":"`)
}

func TestStamp(t *testing.T) {
	intent := domain.NotificationIntent{ID: "keep"}
	stamp(&intent)
	assert.Equal(t, "keep", intent.ID)
	assert.False(t, intent.Timestamp.IsZero())

	fresh := domain.NotificationIntent{}
	stamp(&fresh)
	assert.Len(t, fresh.ID, 36)
}
