package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/email"
)

type Sender interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type DeliveryLog interface {
	Delivered(ctx context.Context, intentID string) (bool, error)
	MarkDelivered(ctx context.Context, intentID, messageID string) error
}

type DispatcherConfig struct {
	From       string
	StaffEmail string
	// MaxAttempts bounds sends per intent; MaxElapsed bounds the time spent retrying.
	MaxAttempts uint64
	MaxElapsed  time.Duration
}

type Dispatcher struct {
	sender     Sender
	deliveries DeliveryLog
	cfg        DispatcherConfig
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
	sent       metric.Int64Counter
	failed     metric.Int64Counter
}

func NewDispatcher(sender Sender, deliveries DeliveryLog, cfg DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 30 * time.Second
	}

	meter := otel.Meter("notify")
	sent, err := meter.Int64Counter("notifications.sent", metric.WithDescription("Notification emails delivered"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("notifications.failed", metric.WithDescription("Notification intents dropped after retries"))
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		sender:     sender,
		deliveries: deliveries,
		cfg:        cfg,
		logger:     logger,
		sent:       sent,
		failed:     failed,
	}
	d.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = d.cfg.MaxElapsed
		return b
	}
	return d, nil
}

// Handle delivers one intent. It returns an error only for payloads that can
// never be delivered; send failures are retried and then dropped.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	var intent domain.NotificationIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return fmt.Errorf("unmarshal notification intent: %w", err)
	}

	log := d.logger.With("intent_id", intent.ID, "kind", intent.Kind, "order_id", intent.OrderID)
	kindAttr := metric.WithAttributes(attribute.String("kind", string(intent.Kind)))

	if intent.ID != "" {
		delivered, err := d.deliveries.Delivered(ctx, intent.ID)
		if err != nil {
			log.Warn("could not check delivery log, sending anyway", "error", err)
		}
		if delivered {
			log.Info("notification already delivered, skipping")
			return nil
		}
	}

	msg, err := d.compose(intent)
	if err != nil {
		return err
	}

	var messageID string
	attempt := 0
	send := func() error {
		attempt++
		id, err := d.sender.Send(ctx, msg)
		if err != nil {
			var statusErr *email.StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			log.Warn("notification send failed, will retry", "error", err, "attempt", attempt)
			return err
		}
		messageID = id
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.cfg.MaxAttempts-1), ctx)
	if err := backoff.Retry(send, policy); err != nil {
		d.failed.Add(ctx, 1, kindAttr)
		log.Error("notification dropped", "error", err, "attempts", attempt)
		return nil
	}

	d.sent.Add(ctx, 1, kindAttr)
	log.Info("notification sent", "message_id", messageID, "to", msg.To)

	if intent.ID != "" {
		if err := d.deliveries.MarkDelivered(ctx, intent.ID, messageID); err != nil {
			log.Warn("could not record delivery", "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) compose(intent domain.NotificationIntent) (email.Message, error) {
	to := intent.Recipient
	if intent.Kind.StaffAudience() {
		to = d.cfg.StaffEmail
	}
	if to == "" {
		return email.Message{}, fmt.Errorf("notification %s has no recipient", intent.Kind)
	}

	html, err := render(intent)
	if err != nil {
		return email.Message{}, err
	}

	return email.Message{
		From:    d.cfg.From,
		To:      []string{to},
		Subject: subject(intent),
		HTML:    html,
	}, nil
}
