package models

import (
	"errors"
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"confirmed to preparing", StatusConfirmed, StatusPreparing, true},
		{"preparing to en_route", StatusPreparing, StatusEnRoute, true},
		{"en_route to delivered", StatusEnRoute, StatusDelivered, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"en_route to cancelled", StatusEnRoute, StatusCancelled, true},
		{"pending to delivered skips stages", StatusPending, StatusDelivered, false},
		{"delivered is terminal", StatusDelivered, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"no backwards move", StatusPreparing, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAddCartItemRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     AddCartItemRequest
		wantErr bool
	}{
		{"valid", AddCartItemRequest{MenuItemID: 7, Quantity: 2}, false},
		{"missing menu item id", AddCartItemRequest{Quantity: 1}, true},
		{"zero quantity", AddCartItemRequest{MenuItemID: 7, Quantity: 0}, true},
		{"negative quantity", AddCartItemRequest{MenuItemID: 7, Quantity: -1}, true},
		{"excessive quantity", AddCartItemRequest{MenuItemID: 7, Quantity: 11}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsFailingField(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
	}{
		{"cart add missing id", (&AddCartItemRequest{Quantity: 1}).Validate(), "menu_item_id"},
		{"cart add bad quantity", (&AddCartItemRequest{MenuItemID: 7, Quantity: 11}).Validate(), "quantity"},
		{"status update missing status", (&UpdateStatusRequest{ChangedBy: "admin"}).Validate(), "status"},
		{"status update missing actor", (&UpdateStatusRequest{Status: "confirmed"}).Validate(), "changed_by"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr ValidationError
			if !errors.As(tt.err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", tt.err, tt.err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("failing field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestUpdateStatusRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     UpdateStatusRequest
		wantErr bool
	}{
		{"valid", UpdateStatusRequest{Status: "confirmed", ChangedBy: "admin"}, false},
		{"missing status", UpdateStatusRequest{ChangedBy: "admin"}, true},
		{"unknown status", UpdateStatusRequest{Status: "teleported", ChangedBy: "admin"}, true},
		{"missing changed_by", UpdateStatusRequest{Status: "confirmed"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalculatePriority(t *testing.T) {
	if got := CalculatePriority(150); got != 10 {
		t.Errorf("expected priority 10 for large order, got %d", got)
	}
	if got := CalculatePriority(50); got != 5 {
		t.Errorf("expected priority 5 for medium order, got %d", got)
	}
	if got := CalculatePriority(12.50); got != 1 {
		t.Errorf("expected priority 1 for small order, got %d", got)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	date := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	if got := GenerateOrderNumber(date, 7); got != "ORD_20250314_007" {
		t.Errorf("unexpected order number: %s", got)
	}
}

func TestDispatchRoutingKey(t *testing.T) {
	if got := DispatchRoutingKey("central", 10); got != "dispatch.central.10" {
		t.Errorf("unexpected routing key: %s", got)
	}
}
