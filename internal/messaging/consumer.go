package messaging

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

type Handler func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader     *kafka.Reader
	topic      string
	groupID    string
	deadLetter *Producer
	logger     *slog.Logger
}

type ConsumerOption func(*Consumer, *kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(_ *Consumer, cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// WithDeadLetter forwards messages the handler rejects to p instead of
// stopping consumption.
func WithDeadLetter(p *Producer) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.deadLetter = p
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}

	c := &Consumer{
		topic:   topic,
		groupID: groupID,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c, &cfg)
	}

	c.reader = kafka.NewReader(cfg)
	return c
}

// Consume blocks until ctx is cancelled or the broker fails. A handler error
// stops consumption unless a dead-letter producer is configured.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if handlerErr := c.processMessage(ctx, msg, handler); handlerErr != nil {
			if c.deadLetter == nil {
				return handlerErr
			}
			c.logger.Error("message rejected, forwarding to dead letter topic",
				"error", handlerErr, "topic", c.topic, "offset", msg.Offset,
				"kind", NewMessageCarrier(&msg).Kind(), "dead_letter_topic", c.deadLetter.Topic())
			if err := c.deadLetter.PublishRaw(ctx, deadLetterMessage(msg, handlerErr)); err != nil {
				return err
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// deadLetterMessage copies msg for the dead letter topic with the handler
// error attached. The original headers are not shared with msg.
func deadLetterMessage(msg kafka.Message, handlerErr error) kafka.Message {
	dead := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: append([]kafka.Header(nil), msg.Headers...),
	}
	NewMessageCarrier(&dead).Set(ErrorHeader, handlerErr.Error())
	return dead
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	carrier := NewMessageCarrier(&msg)
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrier)

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.String("storefront.notification.kind", carrier.Kind()),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
