package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/messaging"
)

const Topic = "notifications"

// Publisher hands notification intents to the notifier. Callers treat a
// returned error as advisory: the state change that triggered the intent
// has already been committed.
type Publisher interface {
	Publish(ctx context.Context, intent domain.NotificationIntent) error
}

type KafkaPublisher struct {
	producer *messaging.Producer
}

func NewKafkaPublisher(producer *messaging.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, intent domain.NotificationIntent) error {
	stamp(&intent)
	return p.producer.Publish(ctx, intent.OrderID, string(intent.Kind), intent)
}

// LogPublisher drops intents after logging them. It is used when no broker
// is configured, e.g. in local runs.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, intent domain.NotificationIntent) error {
	stamp(&intent)
	p.logger.Info("notification intent not dispatched, no broker configured",
		"intent_id", intent.ID, "kind", intent.Kind, "order_id", intent.OrderID)
	return nil
}

func stamp(intent *domain.NotificationIntent) {
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.Timestamp.IsZero() {
		intent.Timestamp = time.Now().UTC()
	}
}
