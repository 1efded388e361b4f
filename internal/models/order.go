package models

import (
	"fmt"
	"time"
)

// OrderStatus represents the delivery lifecycle state of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusEnRoute   OrderStatus = "en_route"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderItem represents a line of an order
type OrderItem struct {
	ID         int     `json:"id,omitempty" db:"id"`
	OrderID    int     `json:"order_id,omitempty" db:"order_id"`
	MenuItemID int     `json:"menu_item_id" db:"menu_item_id"`
	Name       string  `json:"name" db:"name"`
	Quantity   int     `json:"quantity" db:"quantity"`
	Price      float64 `json:"price" db:"price"`
}

// Order represents a persisted customer order
type Order struct {
	ID             int         `json:"id,omitempty" db:"id"`
	CreatedAt      time.Time   `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at,omitempty" db:"updated_at"`
	Number         string      `json:"order_number" db:"number"`
	UserID         string      `json:"user_id" db:"user_id"`
	RestaurantID   int         `json:"restaurant_id" db:"restaurant_id"`
	IdempotencyKey string      `json:"-" db:"idempotency_key"`
	Items          []OrderItem `json:"items"`
	TotalAmount    float64     `json:"total_amount" db:"total_amount"`
	Priority       int         `json:"priority" db:"priority"`
	Status         OrderStatus `json:"status" db:"status"`
	CourierName    *string     `json:"courier_name,omitempty" db:"courier_name"`
	DeliveredAt    *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
}

// MenuItem represents a menu entry owned by a restaurant
type MenuItem struct {
	ID           int     `json:"id" db:"id"`
	RestaurantID int     `json:"restaurant_id" db:"restaurant_id"`
	Name         string  `json:"name" db:"name"`
	Price        float64 `json:"price" db:"price"`
	Category     string  `json:"category" db:"category"`
	Available    bool    `json:"available" db:"available"`
}

// Courier represents a registered delivery courier
type Courier struct {
	ID              int       `json:"id,omitempty" db:"id"`
	Name            string    `json:"name" db:"name"`
	City            string    `json:"city" db:"city"`
	Status          string    `json:"status" db:"status"`
	OrdersDelivered int       `json:"orders_delivered" db:"orders_delivered"`
	LastSeen        time.Time `json:"last_seen" db:"last_seen"`
}

const (
	CourierOnline  = "online"
	CourierOffline = "offline"
)

// AddCartItemRequest represents the request to add a menu item to the cart
type AddCartItemRequest struct {
	MenuItemID int `json:"menu_item_id"`
	Quantity   int `json:"quantity"`
}

// UpdateStatusRequest represents a request to advance an order's status
type UpdateStatusRequest struct {
	Status    string  `json:"status"`
	ChangedBy string  `json:"changed_by"`
	Notes     *string `json:"notes,omitempty"`
}

// PlaceOrderResponse represents the response after placing an order
type PlaceOrderResponse struct {
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	Status    OrderStatus `json:"status" db:"status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time   `json:"timestamp" db:"changed_at"`
	Notes     *string     `json:"notes,omitempty" db:"notes"`
}

// OrderTrackingResponse represents the response for order tracking
type OrderTrackingResponse struct {
	OrderNumber       string     `json:"order_number"`
	CurrentStatus     string     `json:"current_status"`
	UpdatedAt         time.Time  `json:"updated_at"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	CourierName       *string    `json:"courier_name,omitempty"`
}

// CourierStatusResponse represents one courier in the fleet status view
type CourierStatusResponse struct {
	Name            string    `json:"name"`
	City            string    `json:"city"`
	Status          string    `json:"status"`
	OrdersDelivered int       `json:"orders_delivered"`
	LastSeen        time.Time `json:"last_seen"`
}

// statusTransitions lists every legal next status. Cancellation is legal
// from any non-terminal state; delivered and cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s names a known order status
func ValidStatus(s string) bool {
	_, ok := statusTransitions[OrderStatus(s)]
	return ok
}

// ValidTransition reports whether an order may move from one status to another
func ValidTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidationError reports which request field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the cart-add request fields
func (r *AddCartItemRequest) Validate() error {
	if r.MenuItemID <= 0 {
		return ValidationError{
			Field:   "menu_item_id",
			Message: "menu item id is required",
		}
	}
	if r.Quantity < 1 || r.Quantity > 10 {
		return ValidationError{
			Field:   "quantity",
			Message: "quantity must be between 1 and 10",
		}
	}
	return nil
}

// Validate checks the status-update request fields
func (r *UpdateStatusRequest) Validate() error {
	if r.Status == "" {
		return ValidationError{
			Field:   "status",
			Message: "status is required",
		}
	}
	if !ValidStatus(r.Status) {
		return ValidationError{
			Field:   "status",
			Message: "status must be one of: pending, confirmed, preparing, en_route, delivered, cancelled",
		}
	}
	if r.ChangedBy == "" {
		return ValidationError{
			Field:   "changed_by",
			Message: "changed_by is required",
		}
	}
	return nil
}

// CalculatePriority derives dispatch priority from the order total
func CalculatePriority(total float64) int {
	if total > 100.0 {
		return 10
	}
	if total >= 50.0 {
		return 5
	}
	return 1
}

// GenerateOrderNumber generates an order number in format ORD_YYYYMMDD_NNN
func GenerateOrderNumber(date time.Time, sequence int) string {
	return fmt.Sprintf("ORD_%s_%03d", date.Format("20060102"), sequence)
}
