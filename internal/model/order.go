package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus tracks an order through checkout.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a customer order with its priced totals.
// Amounts are minor currency units.
type Order struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	UserID         *string     `json:"userId,omitempty" db:"user_id"`
	CouponCode     *string     `json:"couponCode,omitempty" db:"coupon_code"`
	CouponID       *string     `json:"couponId,omitempty" db:"coupon_id"`
	Subtotal       int64       `json:"subtotal" db:"subtotal"`
	DiscountAmount int64       `json:"discountAmount" db:"discount_amount"`
	FinalAmount    int64       `json:"finalAmount" db:"final_amount"`
	FreeShipping   bool        `json:"freeShipping" db:"free_shipping"`
	Status         OrderStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderItem represents a line item in an order.
type OrderItem struct {
	ID          uuid.UUID `json:"-" db:"id"`
	OrderID     uuid.UUID `json:"-" db:"order_id"`
	ProductID   string    `json:"productId" db:"product_id"`
	ProductName string    `json:"productName" db:"product_name"`
	VariantKey  string    `json:"variantKey" db:"variant_key"`
	UnitPrice   int64     `json:"unitPrice" db:"unit_price"`
	Quantity    int       `json:"quantity" db:"quantity"`
}

// LineTotal returns the unit price times the quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CheckoutRequest represents the request payload for placing an order
// from the caller's cart.
type CheckoutRequest struct {
	CouponCode *string `json:"couponCode,omitempty" validate:"omitempty,min=1,max=64"`
	FirstOrder bool    `json:"firstOrder"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Items []OrderItem `json:"items"`
}
