package notification

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/messaging"
	"delivery-marketplace/internal/models"
)

// Subscriber consumes status update notifications off the fanout queue
// and renders them for the customer.
type Subscriber struct {
	consumer *messaging.Consumer
	logger   *logger.Logger

	shutdown chan os.Signal
	done     chan bool
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(consumer *messaging.Consumer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		shutdown: make(chan os.Signal, 1),
		done:     make(chan bool, 1),
	}
}

// Start starts the notification subscriber
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)

	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	go func() {
		if err := s.consumer.StartConsuming(ctx, s.handleNotification); err != nil {
			s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		}
		s.done <- true
	}()

	select {
	case <-s.shutdown:
		s.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		return s.gracefulShutdown(ctx, requestID)
	case <-s.done:
		return nil
	}
}

// handleNotification processes incoming status update notifications
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var statusUpdate models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &statusUpdate); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return fmt.Errorf("failed to parse notification: %w", err)
	}

	s.logger.Debug("notification_received", "Received status update notification", requestID, map[string]interface{}{
		"order_number": statusUpdate.OrderNumber,
		"new_status":   statusUpdate.NewStatus,
		"changed_by":   statusUpdate.ChangedBy,
	})

	s.displayNotification(&statusUpdate)
	return nil
}

// displayNotification displays a human-readable notification to console
func (s *Subscriber) displayNotification(statusUpdate *models.StatusUpdateMessage) {
	fmt.Println(s.formatNotification(statusUpdate))

	s.logger.Info("notification_displayed", "Notification displayed to user", "", map[string]interface{}{
		"order_number": statusUpdate.OrderNumber,
		"old_status":   statusUpdate.OldStatus,
		"new_status":   statusUpdate.NewStatus,
		"changed_by":   statusUpdate.ChangedBy,
		"timestamp":    statusUpdate.Timestamp.Format("2006-01-02 15:04:05"),
	})
}

// formatNotification creates a human-readable notification message
func (s *Subscriber) formatNotification(statusUpdate *models.StatusUpdateMessage) string {
	timestamp := statusUpdate.Timestamp.Format("2006-01-02 15:04:05")

	switch statusUpdate.NewStatus {
	case string(models.StatusConfirmed):
		return fmt.Sprintf(
			"📦 [%s] Order %s has been confirmed. Courier %s is on it.",
			timestamp, statusUpdate.OrderNumber, statusUpdate.ChangedBy,
		)
	case string(models.StatusPreparing):
		return fmt.Sprintf(
			"🍳 [%s] Order %s is being prepared by the restaurant.",
			timestamp, statusUpdate.OrderNumber,
		)
	case string(models.StatusEnRoute):
		if statusUpdate.EstimatedDelivery != nil {
			return fmt.Sprintf(
				"🛵 [%s] Order %s is on the way with %s. Estimated arrival: %s",
				timestamp, statusUpdate.OrderNumber, statusUpdate.ChangedBy,
				statusUpdate.EstimatedDelivery.Format("15:04:05"),
			)
		}
		return fmt.Sprintf(
			"🛵 [%s] Order %s is on the way with %s.",
			timestamp, statusUpdate.OrderNumber, statusUpdate.ChangedBy,
		)
	case string(models.StatusDelivered):
		return fmt.Sprintf(
			"🎉 [%s] Order %s has been delivered! Enjoy your meal.",
			timestamp, statusUpdate.OrderNumber,
		)
	case string(models.StatusCancelled):
		return fmt.Sprintf(
			"❌ [%s] Order %s has been cancelled.",
			timestamp, statusUpdate.OrderNumber,
		)
	default:
		return fmt.Sprintf(
			"📋 [%s] Order %s status changed from '%s' to '%s' by %s.",
			timestamp, statusUpdate.OrderNumber,
			statusUpdate.OldStatus, statusUpdate.NewStatus, statusUpdate.ChangedBy,
		)
	}
}

// gracefulShutdown handles graceful shutdown of the subscriber
func (s *Subscriber) gracefulShutdown(ctx context.Context, requestID string) error {
	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)

	if s.consumer != nil {
		s.consumer.Close()
	}

	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}
