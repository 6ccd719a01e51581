package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// OrderSnapshot is what the validator knows about an order.
type OrderSnapshot struct {
	Amount      int64
	CategoryIDs []string
	ProductIDs  []string

	// FirstOrder is supplied by the caller; the engine has no order history.
	FirstOrder bool
}

// Validator decides whether a coupon applies to an order. It never mutates
// state, so it is safe to call speculatively.
type Validator struct {
	counter UsageCounter
	now     func() time.Time
	logger  zerolog.Logger
}

// NewValidator creates a new coupon validator. counter answers per-user
// usage questions.
func NewValidator(counter UsageCounter, logger zerolog.Logger) *Validator {
	return &Validator{
		counter: counter,
		now:     time.Now,
		logger:  logger.With().Str("component", "coupon-validator").Logger(),
	}
}

// Validate runs the applicability checks in order and returns the first
// failure as a *Rejection:
//   - the coupon exists, is active and inside its validity window
//   - the order reaches MinOrderAmount
//   - every condition holds
//   - the global usage cap is not reached
//   - the per-user cap is not reached (only with a userID)
//
// Malformed coupon data and counter failures are returned as plain errors.
// On success a copy of the coupon is returned.
func (v *Validator) Validate(ctx context.Context, c *Coupon, order OrderSnapshot, userID string) (*Coupon, error) {
	if c == nil {
		return nil, ErrInvalidOrExpired
	}
	if err := c.Check(); err != nil {
		v.logger.Error().Err(err).Str("coupon_id", c.ID).Msg("coupon data is malformed")
		return nil, err
	}

	now := v.now()
	if c.Status != StatusActive || c.expiredAt(now) || !c.startedAt(now) {
		v.logger.Debug().
			Str("code", c.Code).
			Str("status", string(c.EffectiveStatus(now))).
			Msg("coupon not active")
		return nil, ErrInvalidOrExpired
	}

	if order.Amount < c.MinOrderAmount {
		v.logger.Debug().
			Str("code", c.Code).
			Int64("order_amount", order.Amount).
			Int64("min_order_amount", c.MinOrderAmount).
			Msg("order below coupon minimum")
		return nil, ErrBelowMinimum
	}

	for _, cond := range c.Conditions {
		ok, err := holds(cond, order)
		if err != nil {
			return nil, fmt.Errorf("coupon %s: %w", c.Code, err)
		}
		if !ok {
			v.logger.Debug().
				Str("code", c.Code).
				Str("condition", string(cond.Kind())).
				Msg("coupon condition not met")
			return nil, &Rejection{Reason: ReasonConditionNotMet, Condition: cond.Kind()}
		}
	}

	if c.Usage.Limit > 0 && c.Usage.Used >= c.Usage.Limit {
		v.logger.Debug().
			Str("code", c.Code).
			Int("used", c.Usage.Used).
			Int("limit", c.Usage.Limit).
			Msg("coupon usage limit reached")
		return nil, ErrUsageLimitExceeded
	}

	if userID != "" && c.Usage.LimitPerUser > 0 {
		count, err := v.counter.CountByUser(ctx, c.ID, userID)
		if err != nil {
			v.logger.Error().Err(err).Str("coupon_id", c.ID).Msg("failed to count user usages")
			return nil, fmt.Errorf("failed to count coupon usages: %w", err)
		}
		if count >= c.Usage.LimitPerUser {
			v.logger.Debug().
				Str("code", c.Code).
				Str("user_id", userID).
				Int("count", count).
				Msg("per-user coupon limit reached")
			return nil, ErrPerUserLimitExceeded
		}
	}

	return c.Clone(), nil
}

func holds(cond Condition, order OrderSnapshot) (bool, error) {
	switch c := cond.(type) {
	case MinOrderAmountCondition:
		return order.Amount >= c.Value, nil
	case CategoryCondition:
		return intersects(order.CategoryIDs, c.IDs), nil
	case ProductCondition:
		return intersects(order.ProductIDs, c.IDs), nil
	case FirstOrderCondition:
		return order.FirstOrder, nil
	default:
		return false, fmt.Errorf("%w: unsupported condition %T", ErrMalformedCoupon, cond)
	}
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
