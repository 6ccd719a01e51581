package coupon

import (
	"encoding/json"
	"fmt"
)

// ConditionKind tags a Condition variant.
type ConditionKind string

const (
	KindMinOrderAmount ConditionKind = "min_order_amount"
	KindCategory       ConditionKind = "category"
	KindProduct        ConditionKind = "product"
	KindFirstOrder     ConditionKind = "first_order"
)

// Condition is a predicate an order must satisfy for a coupon to apply.
// The set of variants is closed: only the types in this file implement it.
type Condition interface {
	Kind() ConditionKind
	condition()
}

// MinOrderAmountCondition requires the order amount to be at least Value.
type MinOrderAmountCondition struct {
	Value int64
}

// CategoryCondition requires the order to contain a product of one of IDs.
type CategoryCondition struct {
	IDs []string
}

// ProductCondition requires the order to contain one of the products IDs.
type ProductCondition struct {
	IDs []string
}

// FirstOrderCondition requires the order to be the customer's first.
type FirstOrderCondition struct{}

func (MinOrderAmountCondition) Kind() ConditionKind { return KindMinOrderAmount }
func (CategoryCondition) Kind() ConditionKind       { return KindCategory }
func (ProductCondition) Kind() ConditionKind        { return KindProduct }
func (FirstOrderCondition) Kind() ConditionKind     { return KindFirstOrder }

func (MinOrderAmountCondition) condition() {}
func (CategoryCondition) condition()       {}
func (ProductCondition) condition()        {}
func (FirstOrderCondition) condition()     {}

// Conditions is a list of conditions that must all hold.
type Conditions []Condition

type conditionEnvelope struct {
	Type  ConditionKind `json:"type"`
	Value *int64        `json:"value,omitempty"`
	IDs   []string      `json:"ids,omitempty"`
}

// MarshalJSON encodes each condition as {"type": ..., "value"|"ids": ...}.
func (cs Conditions) MarshalJSON() ([]byte, error) {
	out := make([]conditionEnvelope, 0, len(cs))
	for _, c := range cs {
		switch c := c.(type) {
		case MinOrderAmountCondition:
			v := c.Value
			out = append(out, conditionEnvelope{Type: KindMinOrderAmount, Value: &v})
		case CategoryCondition:
			out = append(out, conditionEnvelope{Type: KindCategory, IDs: c.IDs})
		case ProductCondition:
			out = append(out, conditionEnvelope{Type: KindProduct, IDs: c.IDs})
		case FirstOrderCondition:
			out = append(out, conditionEnvelope{Type: KindFirstOrder})
		default:
			return nil, fmt.Errorf("%w: unsupported condition %T", ErrMalformedCoupon, c)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes tagged conditions and rejects unknown tags.
func (cs *Conditions) UnmarshalJSON(data []byte) error {
	var raw []conditionEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Conditions, 0, len(raw))
	for i, r := range raw {
		switch r.Type {
		case KindMinOrderAmount:
			if r.Value == nil {
				return fmt.Errorf("%w: condition %d (%s) needs a value", ErrMalformedCoupon, i, r.Type)
			}
			out = append(out, MinOrderAmountCondition{Value: *r.Value})
		case KindCategory:
			out = append(out, CategoryCondition{IDs: r.IDs})
		case KindProduct:
			out = append(out, ProductCondition{IDs: r.IDs})
		case KindFirstOrder:
			out = append(out, FirstOrderCondition{})
		default:
			return fmt.Errorf("%w: condition %d has unknown type %q", ErrMalformedCoupon, i, r.Type)
		}
	}
	*cs = out
	return nil
}
