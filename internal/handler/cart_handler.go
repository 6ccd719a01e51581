package handler

import (
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CartHandler handles cart HTTP requests. The cart belongs to the caller's
// identity: the authenticated user, or the guest session.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

func (h *CartHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := middleware.Owner(r.Context())
	if owner == "" {
		writeServiceError(w, model.ErrMissingIdentity, "", h.logger)
		return "", false
	}
	return owner, true
}

func (h *CartHandler) respond(w http.ResponseWriter, status int, c *cart.Cart, err error) {
	if err != nil {
		writeServiceError(w, err, "failed to update cart", h.logger)
		return
	}
	writeJSON(w, status, model.NewCartResponse(c))
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), owner)
	h.respond(w, http.StatusOK, c, err)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req model.AddCartItemRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	c, err := h.service.Add(r.Context(), owner, req.ProductID, req.Quantity, req.Options)
	h.respond(w, http.StatusCreated, c, err)
}

// UpdateItem handles PATCH /api/cart/items/{id}. A quantity of zero removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req model.UpdateCartItemRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	c, err := h.service.ChangeQuantity(r.Context(), owner, chi.URLParam(r, "id"), *req.Quantity)
	h.respond(w, http.StatusOK, c, err)
}

// IncreaseItem handles POST /api/cart/items/{id}/increase.
func (h *CartHandler) IncreaseItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.service.Increase(r.Context(), owner, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

// DecreaseItem handles POST /api/cart/items/{id}/decrease.
func (h *CartHandler) DecreaseItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.service.Decrease(r.Context(), owner, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

// RemoveItem handles DELETE /api/cart/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	c, err := h.service.Remove(r.Context(), owner, chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, c, err)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	if err := h.service.Clear(r.Context(), owner); err != nil {
		writeServiceError(w, err, "failed to clear cart", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Totals handles GET /api/cart/totals.
func (h *CartHandler) Totals(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	totals, err := h.service.Totals(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err, "failed to read cart totals", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
