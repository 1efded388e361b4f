package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"delivery-marketplace/internal/checkout"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/models"
)

type fakeStorage struct {
	orders      map[string]*models.Order
	byKey       map[string]*models.Order
	insertErr   error
	city        string
	todaysCount int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		orders: make(map[string]*models.Order),
		byKey:  make(map[string]*models.Order),
		city:   "almaty",
	}
}

func (f *fakeStorage) InsertOrder(ctx context.Context, o *models.Order) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.byKey[o.IdempotencyKey]; ok {
		return ErrDuplicateSubmission
	}
	stored := *o
	f.orders[o.Number] = &stored
	f.byKey[o.IdempotencyKey] = &stored
	return nil
}

func (f *fakeStorage) GetByIdempotencyKey(ctx context.Context, key string) (models.PlaceOrderResponse, error) {
	o, ok := f.byKey[key]
	if !ok {
		return models.PlaceOrderResponse{}, ErrOrderNotFound
	}
	return models.PlaceOrderResponse{OrderNumber: o.Number, Status: string(o.Status), TotalAmount: o.TotalAmount}, nil
}

func (f *fakeStorage) GetStatus(ctx context.Context, orderNumber string) (models.OrderStatus, error) {
	o, ok := f.orders[orderNumber]
	if !ok {
		return "", ErrOrderNotFound
	}
	return o.Status, nil
}

func (f *fakeStorage) UpdateStatus(ctx context.Context, orderNumber string, status models.OrderStatus, changedBy string, notes *string) error {
	o, ok := f.orders[orderNumber]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeStorage) GetRestaurantCity(ctx context.Context, restaurantID int) (string, error) {
	return f.city, nil
}

func (f *fakeStorage) CountOrdersToday(ctx context.Context) (int, error) {
	return f.todaysCount, nil
}

func (f *fakeStorage) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeResolver struct {
	prices map[int]float64
	err    error
}

func (f *fakeResolver) ResolvePrices(ctx context.Context, lines []checkout.DraftLine) ([]models.OrderItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = models.OrderItem{
			MenuItemID: line.MenuItemID,
			Name:       "item",
			Quantity:   line.Quantity,
			Price:      f.prices[line.MenuItemID],
		}
	}
	return items, nil
}

type fakePublisher struct {
	dispatched    []string
	notifications []interface{}
	dispatchErr   error
}

func (f *fakePublisher) PublishDispatch(ctx context.Context, msg interface{}, routingKey string, priority uint8) error {
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	f.dispatched = append(f.dispatched, routingKey)
	return nil
}

func (f *fakePublisher) PublishNotification(ctx context.Context, msg interface{}) error {
	f.notifications = append(f.notifications, msg)
	return nil
}

func newTestService(storage *fakeStorage, resolver *fakeResolver, publisher *fakePublisher) *Service {
	pricing := config.PricingConfig{DeliveryFee: 10.0, TaxRate: 0.12}
	return NewService(storage, resolver, publisher, pricing, logger.New("order-service-test"))
}

func testDraft() checkout.Draft {
	return checkout.Draft{
		RestaurantID: 7,
		Lines: []checkout.DraftLine{
			{MenuItemID: 1, Quantity: 2},
			{MenuItemID: 2, Quantity: 1},
		},
	}
}

func TestPlaceOrderRecomputesTotalFromMenuPrices(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{prices: map[int]float64{1: 25.0, 2: 50.0}}
	publisher := &fakePublisher{}
	svc := newTestService(storage, resolver, publisher)

	receipt, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	// subtotal 100, fee 10, tax 12 -> 122
	if receipt.Total != 122.0 {
		t.Errorf("expected total 122.00, got %.2f", receipt.Total)
	}
	if receipt.Status != string(models.StatusPending) {
		t.Errorf("expected pending status, got %s", receipt.Status)
	}
	if !strings.HasPrefix(receipt.OrderNumber, "ORD_") {
		t.Errorf("unexpected order number %s", receipt.OrderNumber)
	}

	stored, ok := storage.orders[receipt.OrderNumber]
	if !ok {
		t.Fatal("order was not persisted")
	}
	if stored.Priority != models.CalculatePriority(122.0) {
		t.Errorf("expected priority %d, got %d", models.CalculatePriority(122.0), stored.Priority)
	}
}

func TestPlaceOrderPublishesDispatch(t *testing.T) {
	storage := newFakeStorage()
	storage.city = "astana"
	resolver := &fakeResolver{prices: map[int]float64{1: 10.0, 2: 10.0}}
	publisher := &fakePublisher{}
	svc := newTestService(storage, resolver, publisher)

	_, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if len(publisher.dispatched) != 1 {
		t.Fatalf("expected 1 dispatch message, got %d", len(publisher.dispatched))
	}
	if publisher.dispatched[0] != "dispatch.astana.1" {
		t.Errorf("unexpected routing key %s", publisher.dispatched[0])
	}
}

func TestPlaceOrderDispatchFailureDoesNotFailPlacement(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{prices: map[int]float64{1: 10.0, 2: 10.0}}
	publisher := &fakePublisher{dispatchErr: errors.New("broker down")}
	svc := newTestService(storage, resolver, publisher)

	receipt, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if _, ok := storage.orders[receipt.OrderNumber]; !ok {
		t.Error("order should be persisted despite dispatch failure")
	}
}

func TestPlaceOrderDeduplicatesByIdempotencyKey(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{prices: map[int]float64{1: 25.0, 2: 50.0}}
	publisher := &fakePublisher{}
	svc := newTestService(storage, resolver, publisher)

	first, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("first PlaceOrder failed: %v", err)
	}

	second, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("retried PlaceOrder failed: %v", err)
	}

	if second.OrderNumber != first.OrderNumber {
		t.Errorf("retry created a new order: %s vs %s", second.OrderNumber, first.OrderNumber)
	}
	if len(storage.orders) != 1 {
		t.Errorf("expected 1 persisted order, got %d", len(storage.orders))
	}
}

func TestPlaceOrderResolverFailure(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{err: errors.New("item gone")}
	svc := newTestService(storage, resolver, &fakePublisher{})

	_, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err == nil {
		t.Fatal("expected error when price resolution fails")
	}
	if len(storage.orders) != 0 {
		t.Error("no order should be persisted when resolution fails")
	}
}

func TestUpdateStatusValidTransition(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{prices: map[int]float64{1: 10.0, 2: 10.0}}
	publisher := &fakePublisher{}
	svc := newTestService(storage, resolver, publisher)

	receipt, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	req := &models.UpdateStatusRequest{Status: string(models.StatusConfirmed), ChangedBy: "courier_1"}
	if err := svc.UpdateStatus(context.Background(), receipt.OrderNumber, req); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if storage.orders[receipt.OrderNumber].Status != models.StatusConfirmed {
		t.Errorf("status not updated, got %s", storage.orders[receipt.OrderNumber].Status)
	}
	if len(publisher.notifications) != 1 {
		t.Errorf("expected 1 notification, got %d", len(publisher.notifications))
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	storage := newFakeStorage()
	resolver := &fakeResolver{prices: map[int]float64{1: 10.0, 2: 10.0}}
	svc := newTestService(storage, resolver, &fakePublisher{})

	receipt, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	req := &models.UpdateStatusRequest{Status: string(models.StatusDelivered), ChangedBy: "courier_1"}
	err = svc.UpdateStatus(context.Background(), receipt.OrderNumber, req)
	if err == nil {
		t.Fatal("expected error for pending -> delivered")
	}
	if storage.orders[receipt.OrderNumber].Status != models.StatusPending {
		t.Error("status should be unchanged after rejected transition")
	}
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc := newTestService(newFakeStorage(), &fakeResolver{}, &fakePublisher{})

	req := &models.UpdateStatusRequest{Status: string(models.StatusConfirmed), ChangedBy: "courier_1"}
	err := svc.UpdateStatus(context.Background(), "ORD_20260101_001", req)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderNumberSequence(t *testing.T) {
	storage := newFakeStorage()
	storage.todaysCount = 41
	resolver := &fakeResolver{prices: map[int]float64{1: 10.0, 2: 10.0}}
	svc := newTestService(storage, resolver, &fakePublisher{})

	first, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-1")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	second, err := svc.PlaceOrder(context.Background(), "user_1", testDraft(), "key-2")
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if !strings.HasSuffix(first.OrderNumber, "_042") {
		t.Errorf("expected counter seeded past existing orders, got %s", first.OrderNumber)
	}
	if !strings.HasSuffix(second.OrderNumber, "_043") {
		t.Errorf("expected sequential number, got %s", second.OrderNumber)
	}
}
