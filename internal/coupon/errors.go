package coupon

import (
	"errors"
	"fmt"
)

// Reason identifies why a coupon does not apply to an order.
type Reason string

const (
	ReasonInvalidOrExpired     Reason = "INVALID_OR_EXPIRED_COUPON"
	ReasonBelowMinimum         Reason = "BELOW_MINIMUM_ORDER_AMOUNT"
	ReasonConditionNotMet      Reason = "CONDITION_NOT_MET"
	ReasonUsageLimitExceeded   Reason = "USAGE_LIMIT_EXCEEDED"
	ReasonPerUserLimitExceeded Reason = "PER_USER_LIMIT_EXCEEDED"
)

var reasonMessages = map[Reason]string{
	ReasonInvalidOrExpired:     "Coupon is invalid or has expired",
	ReasonBelowMinimum:         "Order amount is below the coupon's minimum",
	ReasonConditionNotMet:      "Order does not meet the coupon's conditions",
	ReasonUsageLimitExceeded:   "Coupon usage limit has been reached",
	ReasonPerUserLimitExceeded: "You have already used this coupon the maximum number of times",
}

// Rejection is an expected business-rule outcome, not a failure.
type Rejection struct {
	Reason    Reason
	Condition ConditionKind
}

func (r *Rejection) Error() string {
	if r.Condition != "" {
		return fmt.Sprintf("%s (%s)", r.Message(), r.Condition)
	}
	return r.Message()
}

// Message returns the user-facing text for the rejection.
func (r *Rejection) Message() string {
	if m, ok := reasonMessages[r.Reason]; ok {
		return m
	}
	return string(r.Reason)
}

// Is matches rejections by reason so errors.Is(err, ErrConditionNotMet)
// holds whichever condition failed.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// Sentinel rejections for errors.Is.
var (
	ErrInvalidOrExpired     = &Rejection{Reason: ReasonInvalidOrExpired}
	ErrBelowMinimum         = &Rejection{Reason: ReasonBelowMinimum}
	ErrConditionNotMet      = &Rejection{Reason: ReasonConditionNotMet}
	ErrUsageLimitExceeded   = &Rejection{Reason: ReasonUsageLimitExceeded}
	ErrPerUserLimitExceeded = &Rejection{Reason: ReasonPerUserLimitExceeded}
)

var (
	// ErrRaceLost means a cap was reached between validation and commit.
	// Callers should validate again to learn the user-facing reason.
	ErrRaceLost = errors.New("coupon usage cap reached before commit")

	// ErrMalformedCoupon marks coupon rule data that cannot be evaluated.
	ErrMalformedCoupon = errors.New("malformed coupon")

	// ErrStatusConflict is returned when a status update finds an unexpected current status.
	ErrStatusConflict = errors.New("coupon status changed concurrently")

	// ErrDuplicateCode is returned when two coupons share a code.
	ErrDuplicateCode = errors.New("duplicate coupon code")
)

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
