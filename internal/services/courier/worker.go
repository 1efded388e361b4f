package courier

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-marketplace/internal/database"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/messaging"
	"delivery-marketplace/internal/models"
)

// Worker is a courier that picks dispatched orders off the queue and
// walks them through the delivery lifecycle.
type Worker struct {
	name              string
	city              string
	heartbeatInterval time.Duration
	prefetch          int

	db        *database.DB
	consumer  *messaging.Consumer
	publisher *messaging.Publisher
	logger    *logger.Logger

	shutdown chan os.Signal
	done     chan bool
}

// NewWorker creates a new courier worker
func NewWorker(name, city string, heartbeatInterval time.Duration, prefetch int,
	db *database.DB, consumer *messaging.Consumer, publisher *messaging.Publisher, log *logger.Logger) *Worker {

	return &Worker{
		name:              name,
		city:              city,
		heartbeatInterval: heartbeatInterval,
		prefetch:          prefetch,
		db:                db,
		consumer:          consumer,
		publisher:         publisher,
		logger:            log,
		shutdown:          make(chan os.Signal, 1),
		done:              make(chan bool, 1),
	}
}

// Start registers the courier and begins consuming dispatch messages.
func (w *Worker) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	if err := w.register(ctx, requestID); err != nil {
		return fmt.Errorf("failed to register courier: %w", err)
	}

	signal.Notify(w.shutdown, syscall.SIGINT, syscall.SIGTERM)

	go w.heartbeatLoop(ctx)

	go func() {
		if err := w.consumer.StartConsuming(ctx, w.handleMessage); err != nil {
			w.logger.Error("consumer_failed", "Message consumer failed", requestID, err, nil)
		}
		w.done <- true
	}()

	w.logger.Info("courier_started", fmt.Sprintf("Courier %s started", w.name), requestID, map[string]interface{}{
		"courier_name":       w.name,
		"city":               w.city,
		"heartbeat_interval": w.heartbeatInterval.Seconds(),
		"prefetch":           w.prefetch,
	})

	select {
	case <-w.shutdown:
		w.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		return w.gracefulShutdown(ctx, requestID)
	case <-w.done:
		return nil
	}
}

// register writes the courier row, refusing a name that is already online.
func (w *Worker) register(ctx context.Context, requestID string) error {
	var count int
	if err := w.db.QueryRow(ctx, database.CheckCourierOnlineSQL, w.name).Scan(&count); err != nil {
		return fmt.Errorf("failed to check courier status: %w", err)
	}
	if count > 0 {
		w.logger.Error("courier_registration_failed", "Courier with same name is already online", requestID, nil, map[string]interface{}{
			"courier_name": w.name,
		})
		return fmt.Errorf("courier %s is already online", w.name)
	}

	var courierID int
	if err := w.db.QueryRow(ctx, database.InsertCourierSQL, w.name, w.city).Scan(&courierID); err != nil {
		return fmt.Errorf("failed to register courier: %w", err)
	}

	w.logger.Info("courier_registered", fmt.Sprintf("Courier %s registered successfully", w.name), requestID, map[string]interface{}{
		"courier_id":   courierID,
		"courier_name": w.name,
		"city":         w.city,
	})
	return nil
}

// handleMessage processes one dispatched order.
func (w *Worker) handleMessage(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var dispatchMsg models.OrderDispatchMessage
	if err := messaging.ParseMessage(body, &dispatchMsg); err != nil {
		w.logger.Error("message_parsing_failed", "Failed to parse dispatch message", requestID, err, nil)
		return fmt.Errorf("failed to parse message: %w", err)
	}

	w.logger.Debug("delivery_started", fmt.Sprintf("Processing order %s", dispatchMsg.OrderNumber), requestID, map[string]interface{}{
		"order_number": dispatchMsg.OrderNumber,
		"city":         dispatchMsg.City,
		"total_amount": dispatchMsg.TotalAmount,
		"priority":     dispatchMsg.Priority,
	})

	// A courier only serves its own city. Nack requeues the message for
	// a courier bound to the right one.
	if w.city != "" && dispatchMsg.City != w.city {
		w.logger.Debug("delivery_rejected", fmt.Sprintf("Courier %s does not serve %s", w.name, dispatchMsg.City), requestID, map[string]interface{}{
			"order_number": dispatchMsg.OrderNumber,
			"courier_city": w.city,
		})
		return fmt.Errorf("courier does not serve city %s", dispatchMsg.City)
	}

	return w.deliverOrder(ctx, &dispatchMsg, requestID)
}

// deliverOrder advances the order pending -> confirmed -> preparing ->
// en_route -> delivered, sleeping the stage duration between steps.
func (w *Worker) deliverOrder(ctx context.Context, dispatchMsg *models.OrderDispatchMessage, requestID string) error {
	stages := []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusPreparing,
		models.StatusEnRoute,
		models.StatusDelivered,
	}

	current := models.StatusPending
	for _, next := range stages {
		if err := w.advanceOrder(ctx, dispatchMsg.OrderNumber, next, requestID); err != nil {
			return fmt.Errorf("failed to advance order to %s: %w", next, err)
		}

		var estimatedDelivery *time.Time
		if next == models.StatusEnRoute {
			eta := time.Now().UTC().Add(models.StageDuration(models.StatusEnRoute))
			estimatedDelivery = &eta
		}

		statusUpdate := models.NewStatusUpdateMessage(dispatchMsg.OrderNumber, current, next, w.name, estimatedDelivery)
		if err := w.publisher.PublishNotification(ctx, statusUpdate); err != nil {
			w.logger.Error("notification_publish_failed", "Failed to publish status notification", requestID, err, map[string]interface{}{
				"order_number": dispatchMsg.OrderNumber,
				"new_status":   string(next),
			})
			// The delivery itself continues
		}

		current = next
		if next != models.StatusDelivered {
			time.Sleep(models.StageDuration(next))
		}
	}

	w.logger.Debug("delivery_completed", fmt.Sprintf("Successfully delivered order %s", dispatchMsg.OrderNumber), requestID, map[string]interface{}{
		"order_number": dispatchMsg.OrderNumber,
		"delivered_by": w.name,
	})
	return nil
}

// advanceOrder updates the order row and appends the status log entry in
// one transaction. Delivery also stamps delivered_at and bumps the
// courier's delivered count.
func (w *Worker) advanceOrder(ctx context.Context, orderNumber string, status models.OrderStatus, requestID string) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if status == models.StatusDelivered {
		if _, err := tx.Exec(ctx, database.UpdateOrderDeliveredSQL, status, orderNumber); err != nil {
			return fmt.Errorf("failed to update order to delivered: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, database.UpdateOrderStatusSQL, status, w.name, orderNumber); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
	}

	var orderID int
	if err := tx.QueryRow(ctx, "SELECT id FROM orders WHERE number = $1", orderNumber).Scan(&orderID); err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}

	notes := fmt.Sprintf("Order status changed to %s by %s", status, w.name)
	if _, err := tx.Exec(ctx, database.InsertOrderStatusLogSQL, orderID, status, w.name, notes); err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	if status == models.StatusDelivered {
		if _, err := tx.Exec(ctx, database.UpdateCourierHeartbeatSQL, 1, w.name); err != nil {
			return fmt.Errorf("failed to update courier delivered count: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// heartbeatLoop periodically refreshes the courier's last_seen.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sendHeartbeat(ctx); err != nil {
				w.logger.Error("heartbeat_failed", "Failed to send heartbeat", "", err, nil)
			} else {
				w.logger.Debug("heartbeat_sent", "Heartbeat sent successfully", "", nil)
			}
		}
	}
}

func (w *Worker) sendHeartbeat(ctx context.Context) error {
	return w.db.Exec(ctx, database.UpdateCourierStatusSQL, models.CourierOnline, w.name)
}

// gracefulShutdown flips the courier offline and closes the consumer.
func (w *Worker) gracefulShutdown(ctx context.Context, requestID string) error {
	w.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)

	if err := w.db.Exec(ctx, database.UpdateCourierStatusSQL, models.CourierOffline, w.name); err != nil {
		w.logger.Error("shutdown_failed", "Failed to update courier status to offline", requestID, err, nil)
	}

	if w.consumer != nil {
		w.consumer.Close()
	}

	w.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}
