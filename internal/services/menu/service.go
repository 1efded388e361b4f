package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"delivery-marketplace/internal/checkout"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/models"
)

// ErrItemUnavailable indicates a menu item exists but cannot be ordered.
var ErrItemUnavailable = errors.New("menu item is not available")

// ItemReader is the repository surface the service needs.
type ItemReader interface {
	ListByRestaurant(ctx context.Context, restaurantID int) ([]models.MenuItem, error)
	GetItem(ctx context.Context, menuItemID int) (models.MenuItem, error)
}

// Service exposes menu reads with a Redis read-through cache and resolves
// authoritative prices for order placement.
type Service struct {
	repo          ItemReader
	cache         *redis.Client
	cacheTTL      time.Duration
	maxConcurrent int
	logger        *logger.Logger
}

// NewService creates a menu service. cache may be nil to disable caching.
func NewService(repo ItemReader, cache *redis.Client, cacheTTL time.Duration, maxConcurrent int, log *logger.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		repo:          repo,
		cache:         cache,
		cacheTTL:      cacheTTL,
		maxConcurrent: maxConcurrent,
		logger:        log,
	}
}

// ListMenu returns a restaurant's menu, served from cache when fresh.
func (s *Service) ListMenu(ctx context.Context, restaurantID int) ([]models.MenuItem, error) {
	cacheKey := fmt.Sprintf("menu:%d", restaurantID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var items []models.MenuItem
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := s.repo.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, cacheKey, encoded, s.cacheTTL).Err(); err != nil {
				s.logger.Debug("menu_cache_write_failed", "Failed to cache menu", "", map[string]interface{}{
					"restaurant_id": restaurantID,
				})
			}
		}
	}

	return items, nil
}

// Item returns a single menu item, rejecting ones that cannot be ordered.
func (s *Service) Item(ctx context.Context, menuItemID int) (models.MenuItem, error) {
	item, err := s.repo.GetItem(ctx, menuItemID)
	if err != nil {
		return models.MenuItem{}, err
	}
	if !item.Available {
		return models.MenuItem{}, fmt.Errorf("menu item %d: %w", menuItemID, ErrItemUnavailable)
	}
	return item, nil
}

// ResolvePrices looks up the authoritative menu entry for every draft line
// and returns fully-priced order items. The client-held prices are never
// trusted here. Unknown or unavailable items fail the whole resolution.
func (s *Service) ResolvePrices(ctx context.Context, lines []checkout.DraftLine) ([]models.OrderItem, error) {
	resolved := make([]models.OrderItem, len(lines))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range lines {
		idx := idx
		g.Go(func() error {
			line := lines[idx]
			item, err := s.repo.GetItem(ctx, line.MenuItemID)
			if err != nil {
				return fmt.Errorf("failed to resolve menu item %d: %w", line.MenuItemID, err)
			}
			if !item.Available {
				return fmt.Errorf("menu item %d: %w", line.MenuItemID, ErrItemUnavailable)
			}
			resolved[idx] = models.OrderItem{
				MenuItemID: item.ID,
				Name:       item.Name,
				Quantity:   line.Quantity,
				Price:      item.Price,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return resolved, nil
}
