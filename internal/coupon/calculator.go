package coupon

// OrderLine is one priced line of an order as seen by the calculator.
// Amount is the line total (unit price x quantity).
type OrderLine struct {
	ProductID   string
	CategoryIDs []string
	Amount      int64
	Discounted  bool
}

// Discount is the outcome of applying a validated coupon.
type Discount struct {
	Base           int64 `json:"base"`
	DiscountAmount int64 `json:"discountAmount"`
	FinalAmount    int64 `json:"finalAmount"`
	FreeShipping   bool  `json:"freeShipping"`
}

// EligibleBase returns the part of orderAmount the coupon's discount is
// computed on. Without lines the whole order is eligible. Lines are kept when
// they match the target categories or products (if any are set) and, with
// ExcludeDiscountedItems, are not already promotionally priced.
func EligibleBase(c *Coupon, orderAmount int64, lines []OrderLine) int64 {
	if orderAmount < 0 {
		orderAmount = 0
	}
	if len(lines) == 0 {
		return orderAmount
	}

	categories := toSet(c.Target.Categories)
	products := toSet(c.Target.Products)
	targeted := len(categories) > 0 || len(products) > 0

	var base int64
	for _, l := range lines {
		if c.Target.ExcludeDiscountedItems && l.Discounted {
			continue
		}
		if targeted && !matchesTarget(l, categories, products) {
			continue
		}
		base += l.Amount
	}

	if base < 0 {
		return 0
	}
	if base > orderAmount {
		return orderAmount
	}
	return base
}

// Calculate computes the discount of a validated coupon on an order. All
// arithmetic is in integer minor units; percentage discounts round up, in the
// customer's favour. The discount never exceeds orderAmount.
func Calculate(c *Coupon, orderAmount int64, lines []OrderLine) Discount {
	if orderAmount < 0 {
		orderAmount = 0
	}
	base := EligibleBase(c, orderAmount, lines)

	var amount int64
	freeShipping := false
	switch c.Type {
	case TypePercentage:
		amount = ceilDiv(base*c.DiscountValue, 100)
		if c.MaxDiscountAmount > 0 && amount > c.MaxDiscountAmount {
			amount = c.MaxDiscountAmount
		}
	case TypeFixedAmount:
		amount = c.DiscountValue
		if amount > base {
			amount = base
		}
	case TypeFreeShipping:
		freeShipping = true
	}

	if amount < 0 {
		amount = 0
	}
	if amount > orderAmount {
		amount = orderAmount
	}

	return Discount{
		Base:           base,
		DiscountAmount: amount,
		FinalAmount:    orderAmount - amount,
		FreeShipping:   freeShipping,
	}
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func matchesTarget(l OrderLine, categories, products map[string]struct{}) bool {
	if _, ok := products[l.ProductID]; ok {
		return true
	}
	for _, id := range l.CategoryIDs {
		if _, ok := categories[id]; ok {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
