package models

import (
	"fmt"
	"time"
)

// OrderDispatchMessage represents a message sent to courier workers
type OrderDispatchMessage struct {
	OrderNumber  string      `json:"order_number"`
	UserID       string      `json:"user_id"`
	RestaurantID int         `json:"restaurant_id"`
	City         string      `json:"city"`
	Items        []OrderItem `json:"items"`
	TotalAmount  float64     `json:"total_amount"`
	Priority     int         `json:"priority"`
}

// StatusUpdateMessage represents a status change notification
type StatusUpdateMessage struct {
	OrderNumber       string     `json:"order_number"`
	OldStatus         string     `json:"old_status"`
	NewStatus         string     `json:"new_status"`
	ChangedBy         string     `json:"changed_by"`
	Timestamp         time.Time  `json:"timestamp"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// NewStatusUpdateMessage creates a StatusUpdateMessage for an order status change
func NewStatusUpdateMessage(orderNumber string, oldStatus, newStatus OrderStatus, changedBy string, estimatedDelivery *time.Time) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderNumber:       orderNumber,
		OldStatus:         string(oldStatus),
		NewStatus:         string(newStatus),
		ChangedBy:         changedBy,
		Timestamp:         time.Now().UTC(),
		EstimatedDelivery: estimatedDelivery,
	}
}

// StageDuration returns the simulated duration an order spends in a stage
// before a courier advances it.
func StageDuration(status OrderStatus) time.Duration {
	switch status {
	case StatusConfirmed:
		return 4 * time.Second
	case StatusPreparing:
		return 10 * time.Second
	case StatusEnRoute:
		return 12 * time.Second
	default:
		return 5 * time.Second
	}
}

// DispatchRoutingKey generates the routing key for order dispatch messages
func DispatchRoutingKey(city string, priority int) string {
	return fmt.Sprintf("dispatch.%s.%d", city, priority)
}
