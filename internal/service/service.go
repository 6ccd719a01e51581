package service

import (
	"context"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/model"

	"github.com/google/uuid"
)

// ProductService defines operations for product management.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// CartService manages the persisted cart of an owner. An owner is a user ID
// or a guest session ID. Every mutation returns the updated cart.
type CartService interface {
	Get(ctx context.Context, owner string) (*cart.Cart, error)
	Add(ctx context.Context, owner, productID string, quantity int, selections []cart.OptionSelection) (*cart.Cart, error)
	ChangeQuantity(ctx context.Context, owner, lineItemID string, quantity int) (*cart.Cart, error)
	Increase(ctx context.Context, owner, lineItemID string) (*cart.Cart, error)
	Decrease(ctx context.Context, owner, lineItemID string) (*cart.Cart, error)
	Remove(ctx context.Context, owner, lineItemID string) (*cart.Cart, error)
	Clear(ctx context.Context, owner string) error
	Totals(ctx context.Context, owner string) (cart.Totals, error)
}

// CouponQuery describes an order a coupon is checked against.
type CouponQuery struct {
	Code        string
	OrderAmount int64
	CategoryIDs []string
	ProductIDs  []string
	Lines       []coupon.OrderLine
	UserID      string
	FirstOrder  bool
}

// CouponService validates, prices and records coupon usage.
type CouponService interface {
	// Validate returns the coupon when it applies to the order, or a *coupon.Rejection.
	Validate(ctx context.Context, q CouponQuery) (*coupon.Coupon, error)

	// Apply validates and prices the coupon. Nothing is recorded.
	Apply(ctx context.Context, q CouponQuery) (*coupon.Coupon, coupon.Discount, error)

	// CommitUsage records one use of a coupon and publishes a usage event.
	CommitUsage(ctx context.Context, couponID, userID string, orderID *string) (*coupon.UsageRecord, error)

	// Usages returns the usage history of a coupon.
	Usages(ctx context.Context, couponID string) ([]coupon.UsageRecord, error)

	// Available lists every coupon that applies to the order, with its discount.
	Available(ctx context.Context, q CouponQuery) ([]model.AvailableCoupon, error)
}

// OrderService defines operations for order management.
type OrderService interface {
	// Checkout prices the owner's cart, applies an optional coupon and places the order.
	Checkout(ctx context.Context, owner, userID string, req *model.CheckoutRequest) (*model.OrderResponse, error)

	// GetByID retrieves an order by its ID with all items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)
}
