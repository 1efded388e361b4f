package cart

import (
	"errors"
	"testing"
)

func TestAddItem_SingleVendorInvariant(t *testing.T) {
	c := New()

	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, Name: "Tacos", UnitPrice: 50, Quantity: 2}); err != nil {
		t.Fatalf("add first item: %v", err)
	}
	if err := c.AddItem(LineItem{MenuItemID: 2, RestaurantID: 1, Name: "Agua", UnitPrice: 30, Quantity: 1}); err != nil {
		t.Fatalf("add second item: %v", err)
	}

	err := c.AddItem(LineItem{MenuItemID: 3, RestaurantID: 2, Name: "Sushi", UnitPrice: 10, Quantity: 1})
	if !errors.Is(err, ErrVendorConflict) {
		t.Fatalf("expected ErrVendorConflict, got %v", err)
	}

	// Rejected add must leave the cart untouched
	if got := c.ItemCount(); got != 3 {
		t.Errorf("expected item count 3 after rejected add, got %d", got)
	}
	if got := c.Total(); got != 130 {
		t.Errorf("expected total 130 after rejected add, got %v", got)
	}
	for _, item := range c.Items() {
		if item.RestaurantID != 1 {
			t.Errorf("item %d has foreign restaurant id %d", item.MenuItemID, item.RestaurantID)
		}
	}
}

func TestAddItem_MergesQuantities(t *testing.T) {
	c := New()

	if err := c.AddItem(LineItem{MenuItemID: 5, RestaurantID: 1, Name: "Burger", UnitPrice: 25, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := c.AddItem(LineItem{MenuItemID: 5, RestaurantID: 1, Name: "Burger", UnitPrice: 25, Quantity: 3}); err != nil {
		t.Fatalf("second add: %v", err)
	}

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected a single merged entry, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Errorf("expected merged quantity 5, got %d", items[0].Quantity)
	}
	if got := c.Total(); got != 125 {
		t.Errorf("expected total 125, got %v", got)
	}
}

func TestDerivedTotals(t *testing.T) {
	c := New()

	adds := []LineItem{
		{MenuItemID: 1, RestaurantID: 9, Name: "A", UnitPrice: 12.5, Quantity: 2},
		{MenuItemID: 2, RestaurantID: 9, Name: "B", UnitPrice: 7.25, Quantity: 4},
		{MenuItemID: 1, RestaurantID: 9, Name: "A", UnitPrice: 12.5, Quantity: 1},
		{MenuItemID: 3, RestaurantID: 9, Name: "C", UnitPrice: 3, Quantity: 1},
	}
	for _, a := range adds {
		if err := c.AddItem(a); err != nil {
			t.Fatalf("add %d: %v", a.MenuItemID, err)
		}
	}
	c.RemoveItem(2)

	// total and count must always equal the recomputation over items
	var wantTotal float64
	var wantCount int
	for _, item := range c.Items() {
		wantTotal += item.UnitPrice * float64(item.Quantity)
		wantCount += item.Quantity
	}
	if got := c.Total(); got != wantTotal {
		t.Errorf("Total() = %v, want %v", got, wantTotal)
	}
	if got := c.ItemCount(); got != wantCount {
		t.Errorf("ItemCount() = %d, want %d", got, wantCount)
	}
}

func TestRemoveItem(t *testing.T) {
	c := New()
	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, Name: "A", UnitPrice: 10, Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddItem(LineItem{MenuItemID: 2, RestaurantID: 1, Name: "B", UnitPrice: 5, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	c.RemoveItem(1)

	for _, item := range c.Items() {
		if item.MenuItemID == 1 {
			t.Error("removed item still present")
		}
	}
	if got := c.Total(); got != 5 {
		t.Errorf("expected total 5 after removal, got %v", got)
	}
	if got := c.ItemCount(); got != 1 {
		t.Errorf("expected count 1 after removal, got %d", got)
	}

	// Removing an absent id is a no-op
	c.RemoveItem(99)
	if got := c.ItemCount(); got != 1 {
		t.Errorf("no-op removal changed count to %d", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	c := New()
	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, Name: "A", UnitPrice: 10, Quantity: 2}); err != nil {
		t.Fatal(err)
	}

	c.Clear()
	c.Clear()

	if got := c.ItemCount(); got != 0 {
		t.Errorf("expected empty cart, count %d", got)
	}
	if got := c.Total(); got != 0 {
		t.Errorf("expected zero total, got %v", got)
	}
	if got := len(c.Items()); got != 0 {
		t.Errorf("expected no items, got %d", got)
	}
}

func TestAddItem_RejectsBadInput(t *testing.T) {
	c := New()
	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, Quantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, UnitPrice: -1, Quantity: 1}); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if got := c.ItemCount(); got != 0 {
		t.Errorf("rejected adds must not mutate the cart, count %d", got)
	}
}

func TestAddItem_LineCap(t *testing.T) {
	c := New()
	for i := 1; i <= MaxLines; i++ {
		if err := c.AddItem(LineItem{MenuItemID: i, RestaurantID: 1, UnitPrice: 5, Quantity: 1}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	err := c.AddItem(LineItem{MenuItemID: MaxLines + 1, RestaurantID: 1, UnitPrice: 5, Quantity: 1})
	if !errors.Is(err, ErrTooManyLines) {
		t.Fatalf("expected ErrTooManyLines, got %v", err)
	}
	if got := len(c.Items()); got != MaxLines {
		t.Errorf("rejected add mutated the cart, %d lines", got)
	}

	// Merging into an existing entry is still allowed at the cap.
	if err := c.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, UnitPrice: 5, Quantity: 2}); err != nil {
		t.Fatalf("merge at cap: %v", err)
	}
	if got := c.Items()[0].Quantity; got != 3 {
		t.Errorf("merged quantity = %d, want 3", got)
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	s := NewStore()

	a := s.Get("session-a")
	b := s.Get("session-b")
	if a == b {
		t.Fatal("distinct sessions must get distinct carts")
	}
	if err := a.AddItem(LineItem{MenuItemID: 1, RestaurantID: 1, UnitPrice: 10, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if got := b.ItemCount(); got != 0 {
		t.Errorf("session-b cart affected by session-a add, count %d", got)
	}

	if again := s.Get("session-a"); again != a {
		t.Error("same session must get the same cart back")
	}

	s.Delete("session-a")
	if fresh := s.Get("session-a"); fresh == a {
		t.Error("deleted session must get a fresh cart")
	}
}
