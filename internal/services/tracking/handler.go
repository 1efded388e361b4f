package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"delivery-marketplace/internal/logger"
	"delivery-marketplace/internal/tracing"
)

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger, tracer trace.Tracer) *Handler {
	return &Handler{
		service: service,
		logger:  log,
		tracer:  tracer,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing.Middleware(h.tracer))
	r.Use(h.withLogging)

	r.HandleFunc("/orders/{number}/status", h.GetOrderStatus).Methods(http.MethodGet)
	r.HandleFunc("/orders/{number}/history", h.GetOrderHistory).Methods(http.MethodGet)
	r.HandleFunc("/couriers/status", h.GetCourierStatus).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

// GetOrderStatus handles GET /orders/{number}/status requests
// @Summary Order status
// @Produce json
// @Param number path string true "Order number"
// @Success 200 {object} models.OrderTrackingResponse
// @Router /orders/{number}/status [get]
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	orderNumber := mux.Vars(r)["number"]
	if !validOrderNumber(orderNumber) {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid order number", requestID)
		return
	}

	status, err := h.service.GetOrderStatus(r.Context(), orderNumber, requestID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "Order not found", requestID)
		} else {
			h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// GetOrderHistory handles GET /orders/{number}/history requests
// @Summary Order status history
// @Produce json
// @Param number path string true "Order number"
// @Success 200 {array} models.OrderStatusHistory
// @Router /orders/{number}/history [get]
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	orderNumber := mux.Vars(r)["number"]
	if !validOrderNumber(orderNumber) {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid order number", requestID)
		return
	}

	history, err := h.service.GetOrderHistory(r.Context(), orderNumber, requestID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "Order not found", requestID)
		} else {
			h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// GetCourierStatus handles GET /couriers/status requests
// @Summary Courier fleet status
// @Produce json
// @Success 200 {array} models.CourierStatusResponse
// @Router /couriers/status [get]
func (h *Handler) GetCourierStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	couriers, err := h.service.GetCourierStatus(r.Context(), requestID)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, couriers)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy := h.service.HealthCheck(r.Context())

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "tracking-service",
		"healthy":   healthy,
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, code, response)
}

// validOrderNumber checks the ORD_YYYYMMDD_NNN shape.
func validOrderNumber(orderNumber string) bool {
	return len(orderNumber) >= 15 && strings.HasPrefix(orderNumber, "ORD_")
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": duration.Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
