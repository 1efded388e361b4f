package checkout

import (
	"context"
	"errors"
	"testing"

	"delivery-marketplace/internal/cart"
)

var testPolicy = Policy{DeliveryFee: 10, TaxRate: 0.12}

type stubPlacer struct {
	receipt Receipt
	err     error

	calls  int
	lastID string
	keys   []string
}

func (p *stubPlacer) PlaceOrder(ctx context.Context, userID string, draft Draft, idempotencyKey string) (Receipt, error) {
	p.calls++
	p.lastID = userID
	p.keys = append(p.keys, idempotencyKey)
	if p.err != nil {
		return Receipt{}, p.err
	}
	return p.receipt, nil
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	if err := c.AddItem(cart.LineItem{MenuItemID: 1, RestaurantID: 4, Name: "Tacos", UnitPrice: 50, Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAssemble_EmptyCart(t *testing.T) {
	_, err := Assemble(cart.New(), testPolicy)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestAssemble_GrandTotalArithmetic(t *testing.T) {
	c := cart.New()
	if err := c.AddItem(cart.LineItem{MenuItemID: 1, RestaurantID: 4, Name: "Combo", UnitPrice: 100, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	draft, err := Assemble(c, testPolicy)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if draft.Subtotal != 100 {
		t.Errorf("subtotal = %v, want 100", draft.Subtotal)
	}
	if draft.DeliveryFee != 10 {
		t.Errorf("delivery fee = %v, want 10", draft.DeliveryFee)
	}
	if Round2(draft.Tax) != 12.00 {
		t.Errorf("tax = %v, want 12.00", draft.Tax)
	}
	if Round2(draft.GrandTotal) != 122.00 {
		t.Errorf("grand total = %v, want 122.00", draft.GrandTotal)
	}
}

func TestAssemble_ProjectsLinesWithoutPrices(t *testing.T) {
	c := filledCart(t)
	if err := c.AddItem(cart.LineItem{MenuItemID: 2, RestaurantID: 4, Name: "Agua", UnitPrice: 30, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	draft, err := Assemble(c, testPolicy)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if draft.RestaurantID != 4 {
		t.Errorf("restaurant id = %d, want 4", draft.RestaurantID)
	}
	if len(draft.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(draft.Lines))
	}
	if draft.Lines[0].MenuItemID != 1 || draft.Lines[0].Quantity != 2 {
		t.Errorf("unexpected first line: %+v", draft.Lines[0])
	}
	if draft.Lines[1].MenuItemID != 2 || draft.Lines[1].Quantity != 1 {
		t.Errorf("unexpected second line: %+v", draft.Lines[1])
	}
}

func TestSubmit_SuccessClearsCart(t *testing.T) {
	placer := &stubPlacer{receipt: Receipt{OrderNumber: "ORD_20250314_001", Status: "pending", Total: 122}}
	svc := NewService(placer, testPolicy)
	c := filledCart(t)

	receipt, err := svc.Submit(context.Background(), "user-1", c)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.OrderNumber != "ORD_20250314_001" {
		t.Errorf("unexpected order number: %s", receipt.OrderNumber)
	}
	if placer.lastID != "user-1" {
		t.Errorf("placer saw user %q", placer.lastID)
	}
	if got := c.ItemCount(); got != 0 {
		t.Errorf("cart not cleared after success, count %d", got)
	}
}

func TestSubmit_FailurePreservesCart(t *testing.T) {
	placer := &stubPlacer{err: errors.New("connection refused")}
	svc := NewService(placer, testPolicy)
	c := filledCart(t)
	before := c.ItemCount()

	_, err := svc.Submit(context.Background(), "user-1", c)
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	if got := c.ItemCount(); got != before {
		t.Errorf("cart mutated by failed submission: count %d, want %d", got, before)
	}
}

func TestSubmit_MissingUser(t *testing.T) {
	placer := &stubPlacer{}
	svc := NewService(placer, testPolicy)

	_, err := svc.Submit(context.Background(), "", filledCart(t))
	if !errors.Is(err, ErrMissingContext) {
		t.Fatalf("expected ErrMissingContext, got %v", err)
	}
	if placer.calls != 0 {
		t.Errorf("placer called %d times before context check", placer.calls)
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	placer := &stubPlacer{}
	svc := NewService(placer, testPolicy)

	_, err := svc.Submit(context.Background(), "user-1", cart.New())
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if placer.calls != 0 {
		t.Errorf("placer called for empty cart")
	}
}

func TestSubmit_RetryReusesIdempotencyKey(t *testing.T) {
	placer := &stubPlacer{err: errors.New("timeout")}
	svc := NewService(placer, testPolicy)
	c := filledCart(t)

	svc.Submit(context.Background(), "user-1", c)
	placer.err = nil
	placer.receipt = Receipt{OrderNumber: "ORD_20250314_002", Status: "pending"}
	if _, err := svc.Submit(context.Background(), "user-1", c); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if len(placer.keys) != 2 {
		t.Fatalf("expected 2 submission attempts, got %d", len(placer.keys))
	}
	if placer.keys[0] == "" || placer.keys[0] != placer.keys[1] {
		t.Errorf("retry must reuse the outstanding key: %v", placer.keys)
	}
}

func TestSubmit_FreshKeyAfterSuccess(t *testing.T) {
	placer := &stubPlacer{receipt: Receipt{OrderNumber: "ORD_20250314_003", Status: "pending"}}
	svc := NewService(placer, testPolicy)
	c := filledCart(t)

	if _, err := svc.Submit(context.Background(), "user-1", c); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := c.AddItem(cart.LineItem{MenuItemID: 1, RestaurantID: 4, Name: "Tacos", UnitPrice: 50, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(context.Background(), "user-1", c); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if len(placer.keys) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(placer.keys))
	}
	if placer.keys[0] == placer.keys[1] {
		t.Error("a new submission after success must mint a new key")
	}
}

// dedupPlacer persists the order but reports a timeout on the first
// attempt, the false-negative case.
type dedupPlacer struct {
	orders   map[string]Receipt
	failNext bool
}

func (p *dedupPlacer) PlaceOrder(ctx context.Context, userID string, draft Draft, idempotencyKey string) (Receipt, error) {
	if existing, ok := p.orders[idempotencyKey]; ok {
		return existing, nil
	}
	receipt := Receipt{OrderNumber: "ORD_20250314_010", Status: "pending"}
	p.orders[idempotencyKey] = receipt
	if p.failNext {
		p.failNext = false
		return Receipt{}, errors.New("timeout")
	}
	return receipt, nil
}

func TestSubmit_FalseNegativeRetryDoesNotDuplicate(t *testing.T) {
	placer := &dedupPlacer{orders: make(map[string]Receipt), failNext: true}
	svc := NewService(placer, testPolicy)
	c := filledCart(t)

	if _, err := svc.Submit(context.Background(), "user-1", c); !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}

	receipt, err := svc.Submit(context.Background(), "user-1", c)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if receipt.OrderNumber != "ORD_20250314_010" {
		t.Errorf("retry returned %s, want the original order", receipt.OrderNumber)
	}
	if len(placer.orders) != 1 {
		t.Errorf("%d orders persisted for one cart, want 1", len(placer.orders))
	}
	if got := c.ItemCount(); got != 0 {
		t.Errorf("cart not cleared after successful retry, count %d", got)
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(122.00499); got != 122.00 {
		t.Errorf("Round2 = %v, want 122.00", got)
	}
	if got := Round2(0.125); got != 0.13 {
		t.Errorf("Round2 = %v, want 0.13", got)
	}
}
