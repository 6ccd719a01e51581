package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/coupon"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CouponHandler handles coupon HTTP requests.
type CouponHandler struct {
	coupons service.CouponService
	carts   service.CartService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler. carts backs the
// available-coupons lookup when the caller does not describe an order.
func NewCouponHandler(coupons service.CouponService, carts service.CartService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		coupons: coupons,
		carts:   carts,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

func queryFromRequest(r *http.Request, req *model.ValidateCouponRequest) service.CouponQuery {
	lines := make([]coupon.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, coupon.OrderLine{
			ProductID:   l.ProductID,
			CategoryIDs: l.CategoryIDs,
			Amount:      l.Amount,
			Discounted:  l.Discounted,
		})
	}
	return service.CouponQuery{
		Code:        req.Code,
		OrderAmount: req.OrderAmount,
		CategoryIDs: req.CategoryIDs,
		ProductIDs:  req.ProductIDs,
		Lines:       lines,
		UserID:      middleware.UserID(r.Context()),
		FirstOrder:  req.FirstOrder,
	}
}

// Validate handles POST /api/coupons/validate.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateCouponRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	c, err := h.coupons.Validate(r.Context(), queryFromRequest(r, &req))
	if err != nil {
		writeServiceError(w, err, "failed to validate coupon", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.ValidateCouponResponse{Valid: true, Coupon: c})
}

// Apply handles POST /api/coupons/apply. The discount is computed but no
// usage is recorded.
func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateCouponRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	c, d, err := h.coupons.Apply(r.Context(), queryFromRequest(r, &req))
	if err != nil {
		writeServiceError(w, err, "failed to apply coupon", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.ApplyCouponResponse{CouponID: c.ID, Code: c.Code, Discount: d})
}

// CommitUsage handles POST /api/coupons/{id}/usages. The body is optional.
func (h *CouponHandler) CommitUsage(w http.ResponseWriter, r *http.Request) {
	var req model.CommitUsageRequest
	if r.ContentLength != 0 && !decode(w, r, &req, h.logger) {
		return
	}

	rec, err := h.coupons.CommitUsage(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req.OrderID)
	if err != nil {
		writeServiceError(w, err, "failed to record coupon usage", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, usageResponse(*rec))
}

// Usages handles GET /api/coupons/{id}/usages.
func (h *CouponHandler) Usages(w http.ResponseWriter, r *http.Request) {
	records, err := h.coupons.Usages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to list coupon usages", h.logger)
		return
	}

	out := make([]model.CouponUsageResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, usageResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// Available handles GET /api/coupons/available.
//
// With an amount query parameter the order is described by the query
// (amount, categoryIds, productIds, firstOrder). Without one, the caller's
// cart is used.
func (h *CouponHandler) Available(w http.ResponseWriter, r *http.Request) {
	q := service.CouponQuery{UserID: middleware.UserID(r.Context())}
	params := r.URL.Query()

	if first := params.Get("firstOrder"); first != "" {
		v, err := strconv.ParseBool(first)
		if err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeMalformedRequest, "invalid firstOrder parameter", h.logger)
			return
		}
		q.FirstOrder = v
	}

	if raw := params.Get("amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount < 0 {
			writeError(w, http.StatusBadRequest, model.ErrCodeMalformedRequest, "invalid amount parameter", h.logger)
			return
		}
		q.OrderAmount = amount
		q.CategoryIDs = splitList(params.Get("categoryIds"))
		q.ProductIDs = splitList(params.Get("productIds"))
	} else {
		owner := middleware.Owner(r.Context())
		if owner == "" {
			writeServiceError(w, model.ErrMissingIdentity, "", h.logger)
			return
		}
		c, err := h.carts.Get(r.Context(), owner)
		if err != nil {
			writeServiceError(w, err, "failed to load cart", h.logger)
			return
		}
		q.OrderAmount = c.TotalPrice
		q.Lines = service.CartLines(c)
	}

	available, err := h.coupons.Available(r.Context(), q)
	if err != nil {
		writeServiceError(w, err, "failed to list available coupons", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, available)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func usageResponse(rec coupon.UsageRecord) model.CouponUsageResponse {
	return model.CouponUsageResponse{
		ID:       rec.ID,
		CouponID: rec.CouponID,
		UserID:   rec.UserID,
		OrderID:  rec.OrderID,
		UsedAt:   rec.UsedAt,
	}
}
