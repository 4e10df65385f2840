package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
)

const trackingNumberAttempts = 3

type OrderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type ShipmentStore interface {
	Create(ctx context.Context, shipment *domain.Shipment) (bool, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Shipment, error)
	AppendEvent(ctx context.Context, trackingNumber string, event domain.TrackingEvent) (*domain.Shipment, error)
	GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error)
}

// AccountCache drops a customer's cached account view once their orders
// change.
type AccountCache interface {
	Invalidate(ctx context.Context, customerID string) error
}

type ProcessResult struct {
	TrackingNumber   string `json:"tracking_number"`
	AlreadyProcessed bool   `json:"already_processed"`
}

type EventInput struct {
	Status      domain.ShipmentStatus `json:"status"`
	Location    string                `json:"location"`
	Description string                `json:"description"`
}

type Service struct {
	orders            OrderStore
	shipments         ShipmentStore
	accounts          AccountCache
	publisher         notify.Publisher
	baseURL           string
	logger            *slog.Logger
	created           metric.Int64Counter
	appended          metric.Int64Counter
	now               func() time.Time
	newTrackingNumber func() (string, error)
}

func NewService(orders OrderStore, shipments ShipmentStore, accounts AccountCache, publisher notify.Publisher,
	baseURL string, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("shipping")

	created, err := meter.Int64Counter("shipments.created",
		metric.WithDescription("Shipments created for processed orders"))
	if err != nil {
		return nil, fmt.Errorf("create shipments.created counter: %w", err)
	}

	appended, err := meter.Int64Counter("tracking.events_appended",
		metric.WithDescription("Tracking events appended to shipments"))
	if err != nil {
		return nil, fmt.Errorf("create tracking.events_appended counter: %w", err)
	}

	return &Service{
		orders:            orders,
		shipments:         shipments,
		accounts:          accounts,
		publisher:         publisher,
		baseURL:           strings.TrimRight(baseURL, "/"),
		logger:            logger,
		created:           created,
		appended:          appended,
		now:               func() time.Time { return time.Now().UTC() },
		newTrackingNumber: domain.NewTrackingNumber,
	}, nil
}

// TrackingURL is the public lookup link sent to customers.
func (s *Service) TrackingURL(trackingNumber string) string {
	return s.baseURL + "/track-order?tracking_number=" + url.QueryEscape(trackingNumber)
}

// Process moves an order into fulfilment and opens its shipment. Calling it
// again for the same order returns the existing tracking number.
func (s *Service) Process(ctx context.Context, orderID string) (*ProcessResult, error) {
	existing, err := s.shipments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrShipmentCreation, err)
	}
	if existing != nil {
		s.logger.Info("order already processed", "order_id", orderID, "tracking_number", existing.TrackingNumber)
		return &ProcessResult{TrackingNumber: existing.TrackingNumber, AlreadyProcessed: true}, nil
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusProcessing)
	switch {
	case errors.Is(err, domain.ErrInvalidTransition) && order != nil && order.Status == domain.OrderStatusProcessing:
		// moved to processing by hand or by a concurrent call; still needs a shipment
	case errors.Is(err, domain.ErrInvalidTransition):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderUpdate, err)
	case order == nil:
		return nil, domain.ErrOrderNotFound
	}

	now := s.now()
	var shipment *domain.Shipment
	for attempt := 1; ; attempt++ {
		number, err := s.newTrackingNumber()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrShipmentCreation, err)
		}

		shipment = &domain.Shipment{
			OrderID:        orderID,
			TrackingNumber: number,
			Status:         domain.ShipmentStatusCreated,
			Events:         []domain.TrackingEvent{domain.SeedTrackingEvent(now)},
			CreatedAt:      now,
		}

		created, err := s.shipments.Create(ctx, shipment)
		if errors.Is(err, ErrTrackingNumberTaken) && attempt < trackingNumberAttempts {
			s.logger.Warn("tracking number collision, retrying", "order_id", orderID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrShipmentCreation, err)
		}

		if !created {
			winner, err := s.shipments.GetByOrderID(ctx, orderID)
			if err != nil || winner == nil {
				return nil, fmt.Errorf("%w: shipment for order %s vanished after conflict", domain.ErrShipmentCreation, orderID)
			}
			return &ProcessResult{TrackingNumber: winner.TrackingNumber, AlreadyProcessed: true}, nil
		}
		break
	}

	s.created.Add(ctx, 1)
	s.logger.Info("shipment created", "order_id", orderID, "tracking_number", shipment.TrackingNumber)
	s.invalidateAccount(ctx, order.CustomerID)

	intent := domain.NotificationIntent{
		Kind:           domain.NotificationShipmentCreated,
		Recipient:      order.CustomerEmail,
		OrderID:        orderID,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		TrackingNumber: shipment.TrackingNumber,
		TrackingURL:    s.TrackingURL(shipment.TrackingNumber),
	}
	if err := s.publisher.Publish(ctx, intent); err != nil {
		s.logger.Error("failed to publish shipment created notification", "error", err, "order_id", orderID)
	}

	return &ProcessResult{TrackingNumber: shipment.TrackingNumber}, nil
}

// AppendEvent records a tracking update. The returned shipment reflects the
// new event as its status and first entry.
func (s *Service) AppendEvent(ctx context.Context, trackingNumber string, in EventInput) (*domain.Shipment, error) {
	if !domain.ValidTrackingNumber(trackingNumber) {
		return nil, fmt.Errorf("%w: malformed tracking number", domain.ErrValidation)
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown shipment status %q", domain.ErrValidation, in.Status)
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return nil, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}

	event := domain.TrackingEvent{
		Status:      in.Status,
		Location:    location,
		Description: strings.TrimSpace(in.Description),
		Timestamp:   s.now(),
	}

	shipment, err := s.shipments.AppendEvent(ctx, trackingNumber, event)
	if err != nil {
		return nil, fmt.Errorf("append tracking event: %w", err)
	}
	if shipment == nil {
		return nil, domain.ErrShipmentNotFound
	}

	s.appended.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(event.Status))))
	s.logger.Info("tracking event appended", "tracking_number", trackingNumber, "status", event.Status)

	order := s.syncOrderStatus(ctx, shipment.OrderID, event.Status)
	if order == nil {
		order, err = s.orders.GetByID(ctx, shipment.OrderID)
		if err != nil || order == nil {
			s.logger.Error("failed to load order for tracking notification", "error", err, "order_id", shipment.OrderID)
			return shipment, nil
		}
	}

	intent := domain.NotificationIntent{
		Kind:           domain.NotificationTrackingUpdated,
		Recipient:      order.CustomerEmail,
		OrderID:        order.ID,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		TrackingNumber: trackingNumber,
		TrackingURL:    s.TrackingURL(trackingNumber),
		Event:          &event,
	}
	if err := s.publisher.Publish(ctx, intent); err != nil {
		s.logger.Error("failed to publish tracking notification", "error", err, "tracking_number", trackingNumber)
	}

	return shipment, nil
}

// syncOrderStatus advances the order when a shipment milestone implies a
// later order status. It returns the order when it was loaded.
func (s *Service) syncOrderStatus(ctx context.Context, orderID string, status domain.ShipmentStatus) *domain.Order {
	next, ok := status.OrderStatus()
	if !ok {
		return nil
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, next)
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		s.logger.Debug("order status left unchanged", "order_id", orderID, "shipment_status", status, "error", err)
	case err != nil:
		s.logger.Warn("failed to sync order status", "error", err, "order_id", orderID)
		return nil
	case order != nil:
		s.logger.Info("order status synced from shipment", "order_id", orderID, "status", order.Status)
		s.invalidateAccount(ctx, order.CustomerID)
	}
	return order
}

func (s *Service) invalidateAccount(ctx context.Context, customerID string) {
	if err := s.accounts.Invalidate(ctx, customerID); err != nil {
		s.logger.Warn("failed to invalidate account view", "error", err, "customer_id", customerID)
	}
}

func (s *Service) GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	if !domain.ValidTrackingNumber(trackingNumber) {
		return nil, fmt.Errorf("%w: malformed tracking number", domain.ErrValidation)
	}

	info, err := s.shipments.GetTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, domain.ErrShipmentNotFound
	}
	return info, nil
}
