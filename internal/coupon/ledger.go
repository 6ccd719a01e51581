package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MemoryLedger is an in-process UsageLedger. A single mutex serialises
// commits, so the cap check and the increment happen as one step.
type MemoryLedger struct {
	mu      sync.Mutex
	used    map[string]int
	perUser map[string]map[string]int
	records map[string][]UsageRecord
	now     func() time.Time
	logger  zerolog.Logger
}

// NewMemoryLedger creates an empty in-process usage ledger.
func NewMemoryLedger(logger zerolog.Logger) *MemoryLedger {
	return &MemoryLedger{
		used:    make(map[string]int),
		perUser: make(map[string]map[string]int),
		records: make(map[string][]UsageRecord),
		now:     time.Now,
		logger:  logger.With().Str("component", "usage-ledger").Logger(),
	}
}

// Commit appends a usage record if the caps in claim still allow it.
func (l *MemoryLedger) Commit(_ context.Context, claim Claim) (*UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.used[claim.CouponID]
	if claim.Limit > 0 && used >= claim.Limit {
		l.logger.Debug().
			Str("coupon_id", claim.CouponID).
			Int("used", used).
			Int("limit", claim.Limit).
			Msg("commit lost: global cap reached")
		return nil, ErrRaceLost
	}
	if claim.UserID != "" && claim.LimitPerUser > 0 && l.perUser[claim.CouponID][claim.UserID] >= claim.LimitPerUser {
		l.logger.Debug().
			Str("coupon_id", claim.CouponID).
			Str("user_id", claim.UserID).
			Msg("commit lost: per-user cap reached")
		return nil, ErrRaceLost
	}

	rec := UsageRecord{
		ID:       uuid.NewString(),
		CouponID: claim.CouponID,
		UserID:   claim.UserID,
		OrderID:  claim.OrderID,
		UsedAt:   l.now().UTC(),
	}
	l.used[claim.CouponID] = used + 1
	if claim.UserID != "" {
		if l.perUser[claim.CouponID] == nil {
			l.perUser[claim.CouponID] = make(map[string]int)
		}
		l.perUser[claim.CouponID][claim.UserID]++
	}
	l.records[claim.CouponID] = append(l.records[claim.CouponID], rec)

	return &rec, nil
}

// Used returns the total number of usages of a coupon.
func (l *MemoryLedger) Used(_ context.Context, couponID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used[couponID], nil
}

// CountByUser returns the number of usages of a coupon by one user.
func (l *MemoryLedger) CountByUser(_ context.Context, couponID, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perUser[couponID][userID], nil
}

// Records returns the usage history of a coupon in commit order.
func (l *MemoryLedger) Records(_ context.Context, couponID string) ([]UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]UsageRecord(nil), l.records[couponID]...), nil
}
