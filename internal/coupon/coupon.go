package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type is the discount mechanism of a coupon.
type Type string

const (
	TypePercentage   Type = "percentage"
	TypeFixedAmount  Type = "fixed_amount"
	TypeFreeShipping Type = "free_shipping"
)

// Status is the lifecycle state of a coupon. Expired and Exhausted are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusExhausted
}

// Usage holds the caps of a coupon and its current use count.
// A zero Limit or LimitPerUser means unlimited.
type Usage struct {
	Limit        int `json:"limit"`
	LimitPerUser int `json:"limitPerUser"`
	Used         int `json:"used"`
}

// Validity is the window in which a coupon may be applied.
type Validity struct {
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	IsAlwaysValid bool      `json:"isAlwaysValid"`
}

// Target restricts which order lines a discount is computed on.
type Target struct {
	Categories             []string `json:"categories,omitempty"`
	Products               []string `json:"products,omitempty"`
	ExcludeDiscountedItems bool     `json:"excludeDiscountedItems"`
}

// Coupon is a named discount rule. Amounts are minor currency units;
// DiscountValue is a percentage for TypePercentage.
type Coupon struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name,omitempty"`
	Type              Type       `json:"type"`
	DiscountValue     int64      `json:"discountValue"`
	MaxDiscountAmount int64      `json:"maxDiscountAmount"`
	MinOrderAmount    int64      `json:"minOrderAmount"`
	Usage             Usage      `json:"usage"`
	Validity          Validity   `json:"validity"`
	Conditions        Conditions `json:"conditions,omitempty"`
	Target            Target     `json:"target"`
	Status            Status     `json:"status"`
}

// NormalizeCode returns the canonical, case-insensitive form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check reports malformed rule data.
func (c *Coupon) Check() error {
	if NormalizeCode(c.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrMalformedCoupon)
	}
	switch c.Type {
	case TypePercentage:
		if c.DiscountValue > 100 {
			return fmt.Errorf("%w: %s percentage %d exceeds 100", ErrMalformedCoupon, c.Code, c.DiscountValue)
		}
	case TypeFixedAmount, TypeFreeShipping:
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrMalformedCoupon, c.Code, c.Type)
	}
	switch c.Status {
	case StatusActive, StatusInactive, StatusExpired, StatusExhausted:
	default:
		return fmt.Errorf("%w: %s has unknown status %q", ErrMalformedCoupon, c.Code, c.Status)
	}
	if c.DiscountValue < 0 || c.MaxDiscountAmount < 0 || c.MinOrderAmount < 0 {
		return fmt.Errorf("%w: %s has a negative amount", ErrMalformedCoupon, c.Code)
	}
	if c.Usage.Limit < 0 || c.Usage.LimitPerUser < 0 || c.Usage.Used < 0 {
		return fmt.Errorf("%w: %s has a negative usage value", ErrMalformedCoupon, c.Code)
	}
	v := c.Validity
	if !v.IsAlwaysValid && !v.StartDate.IsZero() && !v.EndDate.IsZero() && v.EndDate.Before(v.StartDate) {
		return fmt.Errorf("%w: %s ends before it starts", ErrMalformedCoupon, c.Code)
	}
	for _, cond := range c.Conditions {
		if cond == nil {
			return fmt.Errorf("%w: %s has an empty condition", ErrMalformedCoupon, c.Code)
		}
	}
	return nil
}

// EffectiveStatus returns the status the coupon has at now, applying the
// one-way Active -> Expired and Active -> Exhausted transitions lazily.
func (c *Coupon) EffectiveStatus(now time.Time) Status {
	if c.Status != StatusActive {
		return c.Status
	}
	if c.expiredAt(now) {
		return StatusExpired
	}
	if c.Usage.Limit > 0 && c.Usage.Used >= c.Usage.Limit {
		return StatusExhausted
	}
	return StatusActive
}

func (c *Coupon) expiredAt(now time.Time) bool {
	return !c.Validity.IsAlwaysValid && !c.Validity.EndDate.IsZero() && now.After(c.Validity.EndDate)
}

func (c *Coupon) startedAt(now time.Time) bool {
	return c.Validity.IsAlwaysValid || c.Validity.StartDate.IsZero() || !now.Before(c.Validity.StartDate)
}

// Clone returns a deep copy.
func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	out := *c
	out.Conditions = append(Conditions(nil), c.Conditions...)
	out.Target.Categories = append([]string(nil), c.Target.Categories...)
	out.Target.Products = append([]string(nil), c.Target.Products...)
	return &out
}

// UsageRecord is one successful application of a coupon.
type UsageRecord struct {
	ID       string    `json:"id"`
	CouponID string    `json:"couponId"`
	UserID   string    `json:"userId,omitempty"`
	OrderID  *string   `json:"orderId,omitempty"`
	UsedAt   time.Time `json:"usedAt"`
}

// Store holds coupon definitions. Lookups return (nil, nil) when absent.
type Store interface {
	// GetByCode finds a coupon by its case-insensitive code.
	GetByCode(ctx context.Context, code string) (*Coupon, error)

	// GetByID finds a coupon by ID.
	GetByID(ctx context.Context, id string) (*Coupon, error)

	// List returns every coupon.
	List(ctx context.Context) ([]Coupon, error)

	// Put creates or replaces a coupon definition.
	Put(ctx context.Context, c *Coupon) error

	// UpdateStatus moves a coupon from one status to another. It returns
	// ErrStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// UsageCounter answers how often a coupon has been used.
type UsageCounter interface {
	// Used returns the total number of usages of a coupon.
	Used(ctx context.Context, couponID string) (int, error)

	// CountByUser returns the number of usages of a coupon by one user.
	CountByUser(ctx context.Context, couponID, userID string) (int, error)
}

// Claim asks the ledger for one usage slot of a coupon.
type Claim struct {
	CouponID     string
	UserID       string
	OrderID      *string
	Limit        int
	LimitPerUser int
}

// ClaimFor builds a Claim carrying the coupon's current caps.
func ClaimFor(c *Coupon, userID string, orderID *string) Claim {
	return Claim{
		CouponID:     c.ID,
		UserID:       userID,
		OrderID:      orderID,
		Limit:        c.Usage.Limit,
		LimitPerUser: c.Usage.LimitPerUser,
	}
}

// UsageLedger records coupon usages and enforces caps atomically.
type UsageLedger interface {
	UsageCounter

	// Commit appends a usage record if both caps still allow it, re-checking
	// them at commit time. It makes a single attempt and returns ErrRaceLost
	// when a cap has been reached.
	Commit(ctx context.Context, claim Claim) (*UsageRecord, error)

	// Records returns the usage history of a coupon, oldest first.
	Records(ctx context.Context, couponID string) ([]UsageRecord, error)
}

// Loader reads coupon definitions from a source.
type Loader interface {
	// Load reads a gzipped JSON-lines coupon file.
	Load(ctx context.Context, path string) ([]Coupon, error)
}
