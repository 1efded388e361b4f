package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"delivery-marketplace/internal/database"
	"delivery-marketplace/internal/models"
)

// ErrItemNotFound indicates the requested menu item does not exist.
var ErrItemNotFound = errors.New("menu item not found")

// Repository reads menu data from PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a menu repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// ListByRestaurant returns the available menu items of a restaurant.
func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID int) ([]models.MenuItem, error) {
	rows, err := r.db.Query(ctx, database.GetMenuByRestaurantSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu: %w", err)
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.RestaurantID, &item.Name, &item.Price, &item.Category, &item.Available); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetItem returns a single menu item by id.
func (r *Repository) GetItem(ctx context.Context, menuItemID int) (models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.QueryRow(ctx, database.GetMenuItemSQL, menuItemID).Scan(
		&item.ID, &item.RestaurantID, &item.Name, &item.Price, &item.Category, &item.Available,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MenuItem{}, ErrItemNotFound
		}
		return models.MenuItem{}, fmt.Errorf("failed to query menu item: %w", err)
	}
	return item, nil
}
