package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Products *handler.ProductHandler
	Carts    *handler.CartHandler
	Coupons  *handler.CouponHandler
	Orders   *handler.OrderHandler
}

// Options configures request authentication.
type Options struct {
	APIKey    string
	JWTSecret string
}

// New creates a new HTTP router with all routes and middleware configured.
//
// Middleware order: RequestID -> Recovery -> Logging -> CORS -> APIKeyAuth -> Identity.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
	r.Use(middleware.Identity(opts.JWTSecret, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.GetAll)
			r.Get("/{id}", h.Products.GetByID)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Carts.Get)
			r.Delete("/", h.Carts.Clear)
			r.Get("/totals", h.Carts.Totals)
			r.Post("/items", h.Carts.AddItem)
			r.Patch("/items/{id}", h.Carts.UpdateItem)
			r.Delete("/items/{id}", h.Carts.RemoveItem)
			r.Post("/items/{id}/increase", h.Carts.IncreaseItem)
			r.Post("/items/{id}/decrease", h.Carts.DecreaseItem)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/validate", h.Coupons.Validate)
			r.Post("/apply", h.Coupons.Apply)
			r.Get("/available", h.Coupons.Available)
			r.Post("/{id}/usages", h.Coupons.CommitUsage)
			r.Get("/{id}/usages", h.Coupons.Usages)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Checkout)
			r.Get("/{id}", h.Orders.GetByID)
		})
	})

	return r
}
