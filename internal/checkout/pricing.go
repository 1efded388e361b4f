// Package checkout turns a session cart into a placed order: it assembles
// a priced draft under the marketplace pricing policy and performs the
// one-shot submission handoff to the order persistence layer.
package checkout

import (
	"errors"
	"math"
	"time"

	"delivery-marketplace/internal/cart"
)

var (
	// ErrEmptyCart is returned when assembly is attempted on a cart
	// with no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrIncompleteLineItem is returned when a cart line is missing its
	// menu item identity. Nothing is submitted.
	ErrIncompleteLineItem = errors.New("line item is missing menu item id")
)

// Policy holds the fixed pricing applied at checkout. The flat delivery
// fee and tax rate come from configuration.
type Policy struct {
	DeliveryFee float64
	TaxRate     float64
}

// DraftLine is the projection of a cart line sent to the server. Price
// and name are stripped: the authoritative price is re-resolved from the
// menu at placement time.
type DraftLine struct {
	MenuItemID int `json:"menu_item_id"`
	Quantity   int `json:"quantity"`
}

// Draft is the fully-priced, submission-ready projection of a cart.
// All amounts are kept in full floating precision; rounding to currency
// precision happens only at presentation.
type Draft struct {
	RestaurantID int         `json:"restaurant_id"`
	Date         time.Time   `json:"date"`
	Subtotal     float64     `json:"subtotal"`
	DeliveryFee  float64     `json:"delivery_fee"`
	Tax          float64     `json:"tax"`
	GrandTotal   float64     `json:"grand_total"`
	Lines        []DraftLine `json:"items"`
}

// Assemble builds a submission draft from the cart's current state under
// the given policy. The cart is not modified.
func Assemble(c *cart.Cart, policy Policy) (Draft, error) {
	items := c.Items()
	if len(items) == 0 {
		return Draft{}, ErrEmptyCart
	}

	var subtotal float64
	lines := make([]DraftLine, 0, len(items))
	for _, item := range items {
		if item.MenuItemID <= 0 {
			return Draft{}, ErrIncompleteLineItem
		}
		subtotal += item.UnitPrice * float64(item.Quantity)
		lines = append(lines, DraftLine{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}

	tax := subtotal * policy.TaxRate
	return Draft{
		RestaurantID: items[0].RestaurantID,
		Date:         time.Now().UTC(),
		Subtotal:     subtotal,
		DeliveryFee:  policy.DeliveryFee,
		Tax:          tax,
		GrandTotal:   subtotal + policy.DeliveryFee + tax,
		Lines:        lines,
	}, nil
}

// Round2 rounds an amount to two decimal places for presentation.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
