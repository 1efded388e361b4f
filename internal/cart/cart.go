// Package cart holds the session-owned shopping cart for the ordering flow.
// A cart is bound to a single restaurant: the first item added establishes
// the vendor, and items from any other vendor are rejected until the cart
// is cleared.
package cart

import (
	"errors"
	"sync"
)

// MaxLines caps the number of distinct line items an order may carry.
const MaxLines = 20

var (
	// ErrVendorConflict is returned when an item from a second restaurant
	// is added to a non-empty cart. The cart is left unchanged.
	ErrVendorConflict = errors.New("cart is bound to a different restaurant")

	// ErrInvalidQuantity is returned for a non-positive add quantity.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrInvalidPrice is returned for a negative unit price.
	ErrInvalidPrice = errors.New("unit price must not be negative")

	// ErrTooManyLines is returned when adding a new entry would exceed
	// MaxLines. Quantity merges into existing entries still succeed.
	ErrTooManyLines = errors.New("cart holds the maximum number of line items")
)

// LineItem is one menu entry plus a quantity within a cart.
// Name and UnitPrice are snapshots taken at add time; the authoritative
// price is re-resolved server-side when the order is placed.
type LineItem struct {
	MenuItemID   int     `json:"menu_item_id"`
	RestaurantID int     `json:"restaurant_id"`
	Name         string  `json:"name"`
	UnitPrice    float64 `json:"unit_price"`
	Quantity     int     `json:"quantity"`
}

// Cart is the authoritative pre-submission state for one session.
// Items keep insertion order for display; totals are always recomputed
// from the items rather than stored.
type Cart struct {
	mu    sync.Mutex
	items []LineItem
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddItem adds a line item to the cart. When an item with the same menu
// item id is already present its quantity is incremented; otherwise the
// item is appended. Adding from a second restaurant into a non-empty cart
// fails with ErrVendorConflict and leaves the cart untouched.
func (c *Cart) AddItem(item LineItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.UnitPrice < 0 {
		return ErrInvalidPrice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) > 0 && c.items[0].RestaurantID != item.RestaurantID {
		return ErrVendorConflict
	}

	for i := range c.items {
		if c.items[i].MenuItemID == item.MenuItemID {
			c.items[i].Quantity += item.Quantity
			return nil
		}
	}

	if len(c.items) >= MaxLines {
		return ErrTooManyLines
	}

	c.items = append(c.items, item)
	return nil
}

// RemoveItem removes the whole entry for the given menu item id.
// Removing an absent id is a no-op.
func (c *Cart) RemoveItem(menuItemID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].MenuItemID == menuItemID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart. Safe to call on an already empty cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Total recomputes the sum of unit price times quantity over all items.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, item := range c.items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// ItemCount recomputes the sum of quantities over all items.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// RestaurantID returns the vendor the cart is bound to, or 0 when empty.
func (c *Cart) RestaurantID() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return 0
	}
	return c.items[0].RestaurantID
}
