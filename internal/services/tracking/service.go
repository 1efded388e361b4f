package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"delivery-marketplace/internal/database"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/models"
)

// ErrOrderNotFound indicates the tracked order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Service provides read-only tracking views over orders and the
// courier fleet.
type Service struct {
	db                 *database.DB
	logger             *logger.Logger
	heartbeatThreshold time.Duration
}

// NewService creates a tracking service. heartbeatInterval is the
// interval couriers were started with; a courier is reported offline
// after missing two of them.
func NewService(db *database.DB, log *logger.Logger, heartbeatInterval time.Duration) *Service {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Service{
		db:                 db,
		logger:             log,
		heartbeatThreshold: 2 * heartbeatInterval,
	}
}

// GetOrderStatus retrieves the current status of an order
func (s *Service) GetOrderStatus(ctx context.Context, orderNumber, requestID string) (*models.OrderTrackingResponse, error) {
	var order models.Order
	var deliveredAt *time.Time

	err := s.db.QueryRow(ctx, database.GetOrderByNumberSQL, orderNumber).Scan(
		&order.ID,
		&order.Number,
		&order.UserID,
		&order.RestaurantID,
		&order.TotalAmount,
		&order.Priority,
		&order.Status,
		&order.CourierName,
		&order.CreatedAt,
		&order.UpdatedAt,
		&deliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("db_query_failed", "Failed to query order", requestID, err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Estimate arrival while the courier is on the road.
	var estimatedDelivery *time.Time
	if order.Status == models.StatusEnRoute {
		estimated := order.UpdatedAt.Add(models.StageDuration(models.StatusEnRoute))
		estimatedDelivery = &estimated
	}

	return &models.OrderTrackingResponse{
		OrderNumber:       order.Number,
		CurrentStatus:     string(order.Status),
		UpdatedAt:         order.UpdatedAt,
		EstimatedDelivery: estimatedDelivery,
		CourierName:       order.CourierName,
	}, nil
}

// GetOrderHistory retrieves the complete status history of an order
func (s *Service) GetOrderHistory(ctx context.Context, orderNumber, requestID string) ([]models.OrderStatusHistory, error) {
	var orderExists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE number = $1)", orderNumber).Scan(&orderExists)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to check order existence", requestID, err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !orderExists {
		return nil, ErrOrderNotFound
	}

	rows, err := s.db.Query(ctx, database.GetOrderStatusHistorySQL, orderNumber)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query order history", requestID, err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var history []models.OrderStatusHistory
	for rows.Next() {
		var entry models.OrderStatusHistory
		if err := rows.Scan(&entry.Status, &entry.ChangedBy, &entry.ChangedAt, &entry.Notes); err != nil {
			s.logger.Error("db_scan_failed", "Failed to scan order history row", requestID, err, nil)
			return nil, fmt.Errorf("database error: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("db_rows_failed", "Error iterating order history rows", requestID, err, nil)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return history, nil
}

// GetCourierStatus retrieves the status of the courier fleet
func (s *Service) GetCourierStatus(ctx context.Context, requestID string) ([]models.CourierStatusResponse, error) {
	rows, err := s.db.Query(ctx, database.GetAllCouriersSQL)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query courier status", requestID, err, nil)
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var couriers []models.CourierStatusResponse

	for rows.Next() {
		var courier models.Courier
		var createdAt time.Time

		err := rows.Scan(
			&courier.Name,
			&courier.City,
			&courier.Status,
			&courier.OrdersDelivered,
			&courier.LastSeen,
			&createdAt,
		)
		if err != nil {
			s.logger.Error("db_scan_failed", "Failed to scan courier row", requestID, err, nil)
			return nil, fmt.Errorf("database error: %w", err)
		}

		// A courier that stopped heartbeating is reported offline even
		// if shutdown never flipped the row.
		actualStatus := courier.Status
		if courier.Status == models.CourierOnline && time.Since(courier.LastSeen) > s.heartbeatThreshold {
			actualStatus = models.CourierOffline
		}

		couriers = append(couriers, models.CourierStatusResponse{
			Name:            courier.Name,
			City:            courier.City,
			Status:          actualStatus,
			OrdersDelivered: courier.OrdersDelivered,
			LastSeen:        courier.LastSeen,
		})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("db_rows_failed", "Error iterating courier rows", requestID, err, nil)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return couriers, nil
}

// HealthCheck checks the health of dependencies
func (s *Service) HealthCheck(ctx context.Context) bool {
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health_check_failed", "Database ping failed", "", err, nil)
		return false
	}
	return true
}
