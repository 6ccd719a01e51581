package model

import "storefront/internal/cart"

// AddCartItemRequest adds a product, with option selections, to the cart.
type AddCartItemRequest struct {
	ProductID string                 `json:"productId" validate:"required"`
	Quantity  int                    `json:"quantity" validate:"gte=1,lte=999"`
	Options   []cart.OptionSelection `json:"options" validate:"omitempty,dive"`
}

// UpdateCartItemRequest sets the quantity of a line item. Zero removes it.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

// CartResponse is the cart as returned to clients.
type CartResponse struct {
	Items      []cart.LineItem `json:"items"`
	TotalCount int             `json:"totalCount"`
	TotalPrice int64           `json:"totalPrice"`
}

// NewCartResponse builds the response view of c.
func NewCartResponse(c *cart.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return CartResponse{
		Items:      items,
		TotalCount: c.TotalCount,
		TotalPrice: c.TotalPrice,
	}
}
