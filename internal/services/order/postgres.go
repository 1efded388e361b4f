package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"delivery-marketplace/internal/database"
	"delivery-marketplace/internal/models"
)

// ErrDuplicateSubmission indicates an order with the same idempotency key
// was already created.
var ErrDuplicateSubmission = errors.New("duplicate submission")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Repository persists orders in PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates an order repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// InsertOrder writes the order, its items and the initial status-log row
// in one transaction. A conflict on the idempotency key fails the whole
// transaction with ErrDuplicateSubmission.
func (r *Repository) InsertOrder(ctx context.Context, o *models.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		o.Number, o.UserID, o.RestaurantID, o.IdempotencyKey, o.TotalAmount, o.Priority,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_idempotency_key_key" {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err := tx.Exec(ctx, database.InsertOrderItemSQL,
			o.ID, item.MenuItemID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL,
		o.ID, models.StatusPending, "order-service", "order placed")
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByIdempotencyKey returns the order previously created under the key.
func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (models.PlaceOrderResponse, error) {
	var resp models.PlaceOrderResponse
	err := r.db.QueryRow(ctx, database.GetOrderByIdempotencyKeySQL, key).Scan(
		&resp.OrderNumber, &resp.Status, &resp.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PlaceOrderResponse{}, ErrOrderNotFound
		}
		return models.PlaceOrderResponse{}, fmt.Errorf("failed to query order by idempotency key: %w", err)
	}
	return resp, nil
}

// GetStatus returns the current status of an order.
func (r *Repository) GetStatus(ctx context.Context, orderNumber string) (models.OrderStatus, error) {
	var status models.OrderStatus
	err := r.db.QueryRow(ctx, database.GetOrderStatusSQL, orderNumber).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("failed to query order status: %w", err)
	}
	return status, nil
}

// UpdateStatus moves the order to a new status and appends a status-log
// row in one transaction.
func (r *Repository) UpdateStatus(ctx context.Context, orderNumber string, status models.OrderStatus, changedBy string, notes *string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if status == models.StatusDelivered {
		_, err = tx.Exec(ctx, database.UpdateOrderDeliveredSQL, status, orderNumber)
	} else {
		_, err = tx.Exec(ctx, database.UpdateOrderStatusSQL, status, changedBy, orderNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	var orderID int
	err = tx.QueryRow(ctx, "SELECT id FROM orders WHERE number = $1", orderNumber).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to get order id: %w", err)
	}

	_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL, orderID, status, changedBy, notes)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	return tx.Commit(ctx)
}

// GetRestaurantCity returns the city a restaurant delivers from.
func (r *Repository) GetRestaurantCity(ctx context.Context, restaurantID int) (string, error) {
	var city string
	err := r.db.QueryRow(ctx, database.GetRestaurantCitySQL, restaurantID).Scan(&city)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("restaurant %d not found", restaurantID)
		}
		return "", fmt.Errorf("failed to query restaurant: %w", err)
	}
	return city, nil
}

// CountOrdersToday returns how many orders were created today, used to
// seed the daily order-number sequence.
func (r *Repository) CountOrdersToday(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, database.CountOrdersTodaySQL).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's orders: %w", err)
	}
	return count, nil
}

// ListByUser returns a user's order history, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, database.GetOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.Number, &o.RestaurantID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}
