package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"delivery-marketplace/internal/cart"
	"delivery-marketplace/internal/checkout"
	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/models"
	"delivery-marketplace/internal/services/menu"
	"delivery-marketplace/internal/session"
	"delivery-marketplace/internal/tracing"
)

type ctxKey string

const (
	userIDKey    ctxKey = "user_id"
	sessionIDKey ctxKey = "session_id"
)

// Handler exposes the ordering API over HTTP.
type Handler struct {
	sessions *session.Store
	carts    *cart.Store
	checkout *checkout.Service
	orders   *Service
	menu     *menu.Service
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewHandler creates the ordering API handler.
func NewHandler(sessions *session.Store, carts *cart.Store, co *checkout.Service, orders *Service, menuSvc *menu.Service, log *logger.Logger, tracer trace.Tracer) *Handler {
	return &Handler{
		sessions: sessions,
		carts:    carts,
		checkout: co,
		orders:   orders,
		menu:     menuSvc,
		logger:   log,
		tracer:   tracer,
	}
}

// SetupRoutes builds the router for the ordering API.
func (h *Handler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing.Middleware(h.tracer))

	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/restaurants/{id}/menu", h.GetMenu).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := r.NewRoute().Subrouter()
	api.Use(h.authMiddleware)
	api.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.AddCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{menuItemId}", h.RemoveCartItem).Methods(http.MethodDelete)
	api.HandleFunc("/orders", h.PlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{number}/status", h.UpdateOrderStatus).Methods(http.MethodPatch)

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and opens a session.
// @Summary Login
// @Description Authenticates user and sets session cookie
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		h.writeError(w, http.StatusBadRequest, "invalid credentials", requestID)
		return
	}

	sid, err := h.sessions.Create(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("session_create_failed", "Failed to create session", requestID, err, nil)
		h.writeError(w, http.StatusInternalServerError, "session error", requestID)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(time.Hour),
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
}

// Logout closes the session and drops its cart.
// @Summary Logout
// @Success 204
// @Router /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	sid := r.Context().Value(sessionIDKey).(string)

	if err := h.sessions.Delete(r.Context(), sid); err != nil {
		h.logger.Error("session_delete_failed", "Failed to delete session", requestID, err, nil)
	}
	h.carts.Delete(sid)
	w.WriteHeader(http.StatusNoContent)
}

// GetMenu returns a restaurant's menu.
// @Summary Restaurant menu
// @Produce json
// @Param id path int true "Restaurant ID"
// @Success 200 {array} models.MenuItem
// @Router /restaurants/{id}/menu [get]
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	restaurantID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid restaurant id", requestID)
		return
	}

	items, err := h.menu.ListMenu(r.Context(), restaurantID)
	if err != nil {
		h.logger.Error("menu_query_failed", "Failed to load menu", requestID, err, map[string]interface{}{
			"restaurant_id": restaurantID,
		})
		h.writeError(w, http.StatusInternalServerError, "internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// AddCartItem adds a menu item to the session cart.
// @Summary Add cart item
// @Accept json
// @Produce json
// @Param item body models.AddCartItemRequest true "Item"
// @Success 200
// @Failure 409 {string} string "cart bound to another restaurant"
// @Router /cart/items [post]
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	var req models.AddCartItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON format", requestID)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	item, err := h.menu.Item(r.Context(), req.MenuItemID)
	if err != nil {
		if errors.Is(err, menu.ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, "menu item not found", requestID)
			return
		}
		if errors.Is(err, menu.ErrItemUnavailable) {
			h.writeError(w, http.StatusConflict, "menu item is not available", requestID)
			return
		}
		h.logger.Error("menu_query_failed", "Failed to load menu item", requestID, err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal server error", requestID)
		return
	}

	c := h.sessionCart(r)
	err = c.AddItem(cart.LineItem{
		MenuItemID:   item.ID,
		RestaurantID: item.RestaurantID,
		Name:         item.Name,
		UnitPrice:    item.Price,
		Quantity:     req.Quantity,
	})
	if err != nil {
		if errors.Is(err, cart.ErrVendorConflict) {
			h.writeError(w, http.StatusConflict, "you can only order from one restaurant at a time", requestID)
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	h.writeCart(w, c)
}

// RemoveCartItem removes a line from the session cart.
// @Summary Remove cart item
// @Param menuItemId path int true "Menu item ID"
// @Success 200
// @Router /cart/items/{menuItemId} [delete]
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	menuItemID, err := strconv.Atoi(mux.Vars(r)["menuItemId"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid menu item id", requestID)
		return
	}

	c := h.sessionCart(r)
	c.RemoveItem(menuItemID)
	h.writeCart(w, c)
}

// GetCart returns the session cart with its priced quote.
// @Summary Cart contents
// @Produce json
// @Success 200
// @Router /cart [get]
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, h.sessionCart(r))
}

// ClearCart empties the session cart.
// @Summary Clear cart
// @Success 200
// @Router /cart [delete]
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := h.sessionCart(r)
	c.Clear()
	h.writeCart(w, c)
}

// PlaceOrder submits the session cart as an order.
// @Summary Place order
// @Produce json
// @Success 201 {object} checkout.Receipt
// @Failure 400 {string} string "empty cart or missing context"
// @Failure 502 {string} string "submission failed, cart preserved"
// @Router /orders [post]
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	userID := r.Context().Value(userIDKey).(string)
	c := h.sessionCart(r)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	receipt, err := h.checkout.Submit(ctx, userID, c)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "cart is empty", requestID)
		case errors.Is(err, checkout.ErrIncompleteLineItem), errors.Is(err, checkout.ErrMissingContext):
			h.writeError(w, http.StatusBadRequest, err.Error(), requestID)
		case errors.Is(err, checkout.ErrSubmissionInFlight):
			h.writeError(w, http.StatusConflict, "a submission is already in progress", requestID)
		default:
			h.logger.Error("order_submission_failed", "Order submission failed", requestID, err, map[string]interface{}{
				"user_id": userID,
			})
			h.writeError(w, http.StatusBadGateway, "order submission failed, please retry", requestID)
		}
		return
	}

	h.logger.Info("order_submitted", "Order submitted successfully", requestID, map[string]interface{}{
		"order_number": receipt.OrderNumber,
		"user_id":      userID,
	})
	h.writeJSON(w, http.StatusCreated, receipt)
}

// ListOrders returns the authenticated user's order history.
// @Summary Order history
// @Produce json
// @Success 200 {array} models.Order
// @Router /orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	userID := r.Context().Value(userIDKey).(string)

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("db_query_failed", "Failed to list orders", requestID, err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus advances an order's delivery status.
// @Summary Update order status
// @Accept json
// @Param number path string true "Order number"
// @Param update body models.UpdateStatusRequest true "Status update"
// @Success 200
// @Failure 409 {string} string "illegal status transition"
// @Router /orders/{number}/status [patch]
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	orderNumber := mux.Vars(r)["number"]

	var req models.UpdateStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON format", requestID)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), orderNumber, &req); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found", requestID)
			return
		}
		h.logger.Error("status_update_failed", "Failed to update order status", requestID, err, map[string]interface{}{
			"order_number": orderNumber,
			"new_status":   req.Status,
		})
		h.writeError(w, http.StatusConflict, err.Error(), requestID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HealthCheck reports service liveness.
// @Summary Health check
// @Produce json
// @Success 200
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
	})
}

// authMiddleware resolves the session cookie to a user id.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := logger.GenerateRequestID()

		cookie, err := r.Cookie("session_id")
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", requestID)
			return
		}

		userID, err := h.sessions.Lookup(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				h.logger.Error("session_lookup_failed", "Failed to look up session", requestID, err, nil)
			}
			h.writeError(w, http.StatusUnauthorized, "unauthorized", requestID)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, sessionIDKey, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionCart returns the cart bound to the request's session.
func (h *Handler) sessionCart(r *http.Request) *cart.Cart {
	sid := r.Context().Value(sessionIDKey).(string)
	return h.carts.Get(sid)
}

// writeCart renders the cart with its derived totals and, when the cart
// is non-empty, the priced quote. Amounts are rounded here only.
func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	body := map[string]interface{}{
		"items":      c.Items(),
		"item_count": c.ItemCount(),
		"total":      checkout.Round2(c.Total()),
	}

	if draft, err := h.checkout.Quote(c); err == nil {
		body["quote"] = map[string]interface{}{
			"subtotal":     checkout.Round2(draft.Subtotal),
			"delivery_fee": checkout.Round2(draft.DeliveryFee),
			"tax":          checkout.Round2(draft.Tax),
			"grand_total":  checkout.Round2(draft.GrandTotal),
		}
	}

	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}
