package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Checkout handles POST /api/orders: the caller's cart becomes an order,
// with an optional coupon. The body may be empty.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	owner := middleware.Owner(r.Context())
	if owner == "" {
		writeServiceError(w, model.ErrMissingIdentity, "", h.logger)
		return
	}

	var req model.CheckoutRequest
	if r.ContentLength != 0 && !decode(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.Checkout(r.Context(), owner, middleware.UserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, err, "failed to place order", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMalformedRequest, "invalid order ID format", h.logger)
		return
	}

	order, err := h.service.GetByID(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err, "failed to retrieve order", h.logger)
		return
	}

	if userID := middleware.UserID(r.Context()); order.UserID != nil && *order.UserID != userID {
		writeServiceError(w, model.ErrOrderNotFound, "", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
