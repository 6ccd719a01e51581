package cart

import (
	"time"

	"github.com/google/uuid"
)

// Product is the subset of catalogue data the ledger needs to price a line.
type Product struct {
	ID          string
	Name        string
	BasePrice   int64
	CategoryIDs []string
	Discounted  bool
}

// LineItem is one row of a cart: a product, one option combination and a quantity.
type LineItem struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"productId"`
	ProductName     string            `json:"productName,omitempty"`
	UnitBasePrice   int64             `json:"unitBasePrice"`
	Quantity        int               `json:"quantity"`
	SelectedOptions []OptionSelection `json:"selectedOptions"`
	VariantKey      string            `json:"variantKey"`
	UnitFinalPrice  int64             `json:"unitFinalPrice"`
	CategoryIDs     []string          `json:"categoryIds,omitempty"`
	Discounted      bool              `json:"discounted,omitempty"`
}

// Key returns the line's variant key, resolving and caching it on first use.
func (li *LineItem) Key() string {
	if li.VariantKey == "" {
		li.VariantKey = Resolve(li.SelectedOptions)
	}
	return li.VariantKey
}

// Subtotal returns UnitFinalPrice * Quantity.
func (li *LineItem) Subtotal() int64 {
	return li.UnitFinalPrice * int64(li.Quantity)
}

// Totals are the derived aggregates of a cart.
type Totals struct {
	LineCount  int   `json:"lineCount"`
	TotalCount int   `json:"totalCount"`
	TotalPrice int64 `json:"totalPrice"`
}

// Cart owns its line items. TotalCount and TotalPrice are derived and
// rewritten by every mutating operation; they are never set directly.
//
// Every operation is total over a well-formed cart: unknown line ids and
// non-positive quantities are no-ops.
type Cart struct {
	Items      []LineItem `json:"items"`
	TotalCount int        `json:"totalCount"`
	TotalPrice int64      `json:"totalPrice"`
	UpdatedAt  time.Time  `json:"updatedAt"`

	now func() time.Time
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{Items: []LineItem{}, now: time.Now}
}

// Add adds quantity units of product with the given selections. Repeated
// selections are priced once. A line with the same product and variant key
// absorbs the quantity; otherwise a new line is appended. It returns the affected line, or nil when quantity < 1.
func (c *Cart) Add(product Product, quantity int, selections []OptionSelection) *LineItem {
	if quantity < 1 {
		return nil
	}

	selections = distinctSelections(selections)
	key := Resolve(selections)
	if i := c.find(product.ID, key); i >= 0 {
		c.Items[i].Quantity += quantity
		c.recompute()
		return &c.Items[i]
	}

	unitFinal := product.BasePrice
	for _, s := range selections {
		unitFinal += s.AdditionalPrice
	}

	c.Items = append(c.Items, LineItem{
		ID:              uuid.NewString(),
		ProductID:       product.ID,
		ProductName:     product.Name,
		UnitBasePrice:   product.BasePrice,
		Quantity:        quantity,
		SelectedOptions: selections,
		VariantKey:      key,
		UnitFinalPrice:  unitFinal,
		CategoryIDs:     append([]string(nil), product.CategoryIDs...),
		Discounted:      product.Discounted,
	})
	c.recompute()
	return &c.Items[len(c.Items)-1]
}

// ChangeQuantity sets a line's quantity. A quantity <= 0 removes the line.
func (c *Cart) ChangeQuantity(lineItemID string, quantity int) {
	if quantity <= 0 {
		c.Remove(lineItemID)
		return
	}
	i := c.indexOf(lineItemID)
	if i < 0 {
		return
	}
	c.Items[i].Quantity = quantity
	c.recompute()
}

// Increase adds one unit to a line.
func (c *Cart) Increase(lineItemID string) {
	i := c.indexOf(lineItemID)
	if i < 0 {
		return
	}
	c.ChangeQuantity(lineItemID, c.Items[i].Quantity+1)
}

// Decrease removes one unit from a line; a line at quantity 1 is removed.
func (c *Cart) Decrease(lineItemID string) {
	i := c.indexOf(lineItemID)
	if i < 0 {
		return
	}
	c.ChangeQuantity(lineItemID, c.Items[i].Quantity-1)
}

// Remove deletes a line.
func (c *Cart) Remove(lineItemID string) {
	i := c.indexOf(lineItemID)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.recompute()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.recompute()
}

// Totals returns the cart's derived aggregates.
func (c *Cart) Totals() Totals {
	return Totals{
		LineCount:  len(c.Items),
		TotalCount: c.TotalCount,
		TotalPrice: c.TotalPrice,
	}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) recompute() {
	c.sum()
	if c.now == nil {
		c.now = time.Now
	}
	c.UpdatedAt = c.now().UTC()
}

func (c *Cart) sum() {
	count := 0
	var price int64
	for i := range c.Items {
		count += c.Items[i].Quantity
		price += c.Items[i].Subtotal()
	}
	c.TotalCount = count
	c.TotalPrice = price
}

func (c *Cart) find(productID, key string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOf(lineItemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == lineItemID {
			return i
		}
	}
	return -1
}
