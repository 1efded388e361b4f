package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"delivery-marketplace/internal/checkout"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/models"
)

// Storage is the persistence surface the order service needs.
type Storage interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetByIdempotencyKey(ctx context.Context, key string) (models.PlaceOrderResponse, error)
	GetStatus(ctx context.Context, orderNumber string) (models.OrderStatus, error)
	UpdateStatus(ctx context.Context, orderNumber string, status models.OrderStatus, changedBy string, notes *string) error
	GetRestaurantCity(ctx context.Context, restaurantID int) (string, error)
	CountOrdersToday(ctx context.Context) (int, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}

// PriceResolver resolves authoritative menu prices for draft lines.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, lines []checkout.DraftLine) ([]models.OrderItem, error)
}

// Publisher publishes dispatch and notification messages.
type Publisher interface {
	PublishDispatch(ctx context.Context, dispatchMsg interface{}, routingKey string, priority uint8) error
	PublishNotification(ctx context.Context, notificationMsg interface{}) error
}

// Service persists submitted drafts as orders and advances their status.
// It implements checkout.OrderPlacer.
type Service struct {
	storage   Storage
	resolver  PriceResolver
	publisher Publisher
	pricing   config.PricingConfig
	logger    *logger.Logger

	mu            sync.Mutex
	orderCounter  int
	lastOrderDate string
}

// NewService creates an order service.
func NewService(storage Storage, resolver PriceResolver, publisher Publisher, pricing config.PricingConfig, log *logger.Logger) *Service {
	return &Service{
		storage:   storage,
		resolver:  resolver,
		publisher: publisher,
		pricing:   pricing,
		logger:    log,
	}
}

// PlaceOrder creates an order from an assembled draft. Prices are
// re-resolved from the menu: the draft's client-computed totals are
// informational only. The order, its items and the initial status row
// are written atomically; a retry carrying an idempotency key that was
// already persisted returns the original order instead of a duplicate.
func (s *Service) PlaceOrder(ctx context.Context, userID string, draft checkout.Draft, idempotencyKey string) (checkout.Receipt, error) {
	requestID := logger.GenerateRequestID()

	items, err := s.resolver.ResolvePrices(ctx, draft.Lines)
	if err != nil {
		return checkout.Receipt{}, fmt.Errorf("failed to resolve prices: %w", err)
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	total := subtotal + s.pricing.DeliveryFee + subtotal*s.pricing.TaxRate

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return checkout.Receipt{}, fmt.Errorf("failed to generate order number: %w", err)
	}

	o := &models.Order{
		Number:         number,
		UserID:         userID,
		RestaurantID:   draft.RestaurantID,
		IdempotencyKey: idempotencyKey,
		Items:          items,
		TotalAmount:    checkout.Round2(total),
		Priority:       models.CalculatePriority(total),
		Status:         models.StatusPending,
	}

	if err := s.storage.InsertOrder(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			existing, lookupErr := s.storage.GetByIdempotencyKey(ctx, idempotencyKey)
			if lookupErr != nil {
				return checkout.Receipt{}, fmt.Errorf("failed to look up duplicate submission: %w", lookupErr)
			}
			s.logger.Info("order_deduplicated", "Returning previously created order", requestID, map[string]interface{}{
				"order_number": existing.OrderNumber,
			})
			return checkout.Receipt{OrderNumber: existing.OrderNumber, Status: existing.Status, Total: existing.TotalAmount}, nil
		}
		return checkout.Receipt{}, fmt.Errorf("failed to persist order: %w", err)
	}

	s.dispatch(ctx, o, requestID)

	s.logger.Info("order_placed", fmt.Sprintf("Order %s placed", o.Number), requestID, map[string]interface{}{
		"order_number": o.Number,
		"user_id":      userID,
		"total_amount": o.TotalAmount,
		"priority":     o.Priority,
	})

	return checkout.Receipt{OrderNumber: o.Number, Status: string(o.Status), Total: o.TotalAmount}, nil
}

// dispatch publishes the order to the courier dispatch exchange. A
// publish failure does not fail the placement: the order is already
// persisted and can be re-dispatched.
func (s *Service) dispatch(ctx context.Context, o *models.Order, requestID string) {
	city, err := s.storage.GetRestaurantCity(ctx, o.RestaurantID)
	if err != nil {
		s.logger.Error("dispatch_failed", "Failed to resolve restaurant city", requestID, err, map[string]interface{}{
			"order_number": o.Number,
		})
		return
	}

	msg := &models.OrderDispatchMessage{
		OrderNumber:  o.Number,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		City:         city,
		Items:        o.Items,
		TotalAmount:  o.TotalAmount,
		Priority:     o.Priority,
	}

	routingKey := models.DispatchRoutingKey(city, o.Priority)
	if err := s.publisher.PublishDispatch(ctx, msg, routingKey, uint8(o.Priority)); err != nil {
		s.logger.Error("dispatch_failed", "Failed to publish dispatch message", requestID, err, map[string]interface{}{
			"order_number": o.Number,
			"routing_key":  routingKey,
		})
	}
}

// UpdateStatus advances an order through its lifecycle, validating the
// transition, logging it and fanning out a notification.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, req *models.UpdateStatusRequest) error {
	current, err := s.storage.GetStatus(ctx, orderNumber)
	if err != nil {
		return err
	}

	next := models.OrderStatus(req.Status)
	if !models.ValidTransition(current, next) {
		return fmt.Errorf("invalid status transition from %s to %s", current, next)
	}

	if err := s.storage.UpdateStatus(ctx, orderNumber, next, req.ChangedBy, req.Notes); err != nil {
		return err
	}

	var estimated *time.Time
	if next == models.StatusEnRoute {
		eta := time.Now().UTC().Add(models.StageDuration(models.StatusEnRoute))
		estimated = &eta
	}

	notification := models.NewStatusUpdateMessage(orderNumber, current, next, req.ChangedBy, estimated)
	if err := s.publisher.PublishNotification(ctx, notification); err != nil {
		s.logger.Error("notification_publish_failed", "Failed to publish status notification", "", err, map[string]interface{}{
			"order_number": orderNumber,
			"new_status":   req.Status,
		})
		// The status change itself succeeded
	}

	return nil
}

// ListByUser returns the user's order history.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.storage.ListByUser(ctx, userID)
}

// nextOrderNumber returns the next ORD_YYYYMMDD_NNN number, seeding the
// daily counter from the database after a restart.
func (s *Service) nextOrderNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := time.Now().UTC().Format("20060102")
	if s.lastOrderDate != today {
		count, err := s.storage.CountOrdersToday(ctx)
		if err != nil {
			return "", err
		}
		s.orderCounter = count
		s.lastOrderDate = today
	}

	s.orderCounter++
	return models.GenerateOrderNumber(time.Now().UTC(), s.orderCounter), nil
}
