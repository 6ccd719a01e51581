package model

import (
	"time"

	"storefront/internal/coupon"
)

// CouponLine describes one order line for targeted discounts.
type CouponLine struct {
	ProductID   string   `json:"productId" validate:"required"`
	CategoryIDs []string `json:"categoryIds"`
	Amount      int64    `json:"amount" validate:"gte=0"`
	Discounted  bool     `json:"discounted"`
}

// ValidateCouponRequest asks whether a coupon applies to an order.
type ValidateCouponRequest struct {
	Code        string       `json:"code" validate:"required,max=64"`
	OrderAmount int64        `json:"orderAmount" validate:"gte=0"`
	CategoryIDs []string     `json:"categoryIds"`
	ProductIDs  []string     `json:"productIds"`
	Lines       []CouponLine `json:"lines" validate:"omitempty,dive"`
	FirstOrder  bool         `json:"firstOrder"`
}

// ValidateCouponResponse is returned when a coupon applies.
type ValidateCouponResponse struct {
	Valid  bool           `json:"valid"`
	Coupon *coupon.Coupon `json:"coupon"`
}

// ApplyCouponResponse is the priced outcome of a coupon on an order.
type ApplyCouponResponse struct {
	CouponID string `json:"couponId"`
	Code     string `json:"code"`
	coupon.Discount
}

// CommitUsageRequest records one use of a coupon.
type CommitUsageRequest struct {
	OrderID *string `json:"orderId,omitempty" validate:"omitempty,uuid"`
}

// CouponUsageResponse is a committed usage record.
type CouponUsageResponse struct {
	ID       string    `json:"id"`
	CouponID string    `json:"couponId"`
	UserID   string    `json:"userId,omitempty"`
	OrderID  *string   `json:"orderId,omitempty"`
	UsedAt   time.Time `json:"usedAt"`
}

// AvailableCoupon is an applicable coupon with the discount it would give.
type AvailableCoupon struct {
	Coupon   *coupon.Coupon  `json:"coupon"`
	Discount coupon.Discount `json:"discount"`
}
