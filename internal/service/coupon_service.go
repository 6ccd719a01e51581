package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"storefront/internal/coupon"
	"storefront/internal/events"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// OrderHistory answers whether a user has ordered before.
type OrderHistory interface {
	CountPlacedByUser(ctx context.Context, userID string) (int, error)
}

// couponService implements CouponService.
type couponService struct {
	store     coupon.Store
	ledger    coupon.UsageLedger
	validator *coupon.Validator
	history   OrderHistory
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewCouponService creates a new coupon service. history may be nil, in
// which case the caller's first-order flag is trusted for every request.
func NewCouponService(
	store coupon.Store,
	ledger coupon.UsageLedger,
	history OrderHistory,
	publisher events.Publisher,
	logger zerolog.Logger,
) CouponService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &couponService{
		store:     store,
		ledger:    ledger,
		validator: coupon.NewValidator(ledger, logger),
		history:   history,
		publisher: publisher,
		logger:    logger.With().Str("service", "coupon").Logger(),
	}
}

// lookup finds a coupon by code and overlays the ledger's usage count.
func (s *couponService) lookup(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		s.logger.Error().Err(err).Str("code", code).Msg("failed to look up coupon")
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	if err := s.refreshUsed(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *couponService) refreshUsed(ctx context.Context, c *coupon.Coupon) error {
	used, err := s.ledger.Used(ctx, c.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("coupon_id", c.ID).Msg("failed to read coupon usage")
		return fmt.Errorf("failed to read coupon usage: %w", err)
	}
	c.Usage.Used = used
	return nil
}

// firstOrder decides the first-order condition. A known user is judged by
// their order history; a guest by the flag on the request.
func (s *couponService) firstOrder(ctx context.Context, q CouponQuery) (bool, error) {
	if q.UserID == "" || s.history == nil {
		return q.FirstOrder, nil
	}
	count, err := s.history.CountPlacedByUser(ctx, q.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to read order history: %w", err)
	}
	return count == 0, nil
}

func (s *couponService) snapshot(ctx context.Context, q CouponQuery) (coupon.OrderSnapshot, error) {
	first, err := s.firstOrder(ctx, q)
	if err != nil {
		return coupon.OrderSnapshot{}, err
	}
	categories := append([]string(nil), q.CategoryIDs...)
	products := append([]string(nil), q.ProductIDs...)
	for _, l := range q.Lines {
		categories = append(categories, l.CategoryIDs...)
		products = append(products, l.ProductID)
	}
	return coupon.OrderSnapshot{
		Amount:      q.OrderAmount,
		CategoryIDs: categories,
		ProductIDs:  products,
		FirstOrder:  first,
	}, nil
}

// Validate returns the coupon when it applies to the order.
func (s *couponService) Validate(ctx context.Context, q CouponQuery) (*coupon.Coupon, error) {
	c, err := s.lookup(ctx, q.Code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		s.logger.Debug().Str("code", q.Code).Msg("coupon not found")
		return nil, coupon.ErrInvalidOrExpired
	}

	order, err := s.snapshot(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, c, order, q.UserID)
}

// Apply validates and prices the coupon without recording a usage.
func (s *couponService) Apply(ctx context.Context, q CouponQuery) (*coupon.Coupon, coupon.Discount, error) {
	c, err := s.Validate(ctx, q)
	if err != nil {
		return nil, coupon.Discount{}, err
	}
	d := coupon.Calculate(c, q.OrderAmount, q.Lines)

	s.logger.Debug().
		Str("code", c.Code).
		Int64("order_amount", q.OrderAmount).
		Int64("discount", d.DiscountAmount).
		Bool("free_shipping", d.FreeShipping).
		Msg("coupon applied")

	return c, d, nil
}

// CommitUsage records one use of a coupon. The caps are those of the
// stored coupon; the ledger re-checks them at commit time.
func (s *couponService) CommitUsage(ctx context.Context, couponID, userID string, orderID *string) (*coupon.UsageRecord, error) {
	c, err := s.store.GetByID(ctx, couponID)
	if err != nil {
		s.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to look up coupon")
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	if c == nil {
		return nil, model.ErrCouponNotFound
	}
	return s.commit(ctx, c, userID, orderID)
}

func (s *couponService) commit(ctx context.Context, c *coupon.Coupon, userID string, orderID *string) (*coupon.UsageRecord, error) {
	rec, err := s.ledger.Commit(ctx, coupon.ClaimFor(c, userID, orderID))
	if err != nil {
		if errors.Is(err, coupon.ErrRaceLost) {
			s.logger.Info().Str("coupon_id", c.ID).Str("user_id", userID).Msg("coupon usage cap reached at commit")
		}
		return nil, err
	}
	publishUsage(ctx, s.publisher, s.logger, c.Code, rec)
	return rec, nil
}

// publishUsage sends a usage event. Delivery failures are logged; the usage
// itself is already durable.
func publishUsage(ctx context.Context, p events.Publisher, logger zerolog.Logger, code string, rec *coupon.UsageRecord) {
	event := events.UsageEvent{
		Type:     events.EventCouponUsed,
		UsageID:  rec.ID,
		CouponID: rec.CouponID,
		Code:     code,
		UserID:   rec.UserID,
		UsedAt:   rec.UsedAt,
	}
	if rec.OrderID != nil {
		event.OrderID = *rec.OrderID
	}
	if err := p.PublishUsage(ctx, event); err != nil {
		logger.Error().Err(err).Str("usage_id", rec.ID).Msg("failed to publish usage event")
	}
}

// Usages returns the usage history of a coupon.
func (s *couponService) Usages(ctx context.Context, couponID string) ([]coupon.UsageRecord, error) {
	c, err := s.store.GetByID(ctx, couponID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	if c == nil {
		return nil, model.ErrCouponNotFound
	}
	records, err := s.ledger.Records(ctx, couponID)
	if err != nil {
		s.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to list coupon usages")
		return nil, fmt.Errorf("failed to list coupon usages: %w", err)
	}
	return records, nil
}

// Available evaluates every catalogue coupon against the order and returns
// those that apply, largest discount first. Rejected coupons are skipped;
// malformed ones are logged and skipped.
func (s *couponService) Available(ctx context.Context, q CouponQuery) ([]model.AvailableCoupon, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list coupons")
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	order, err := s.snapshot(ctx, q)
	if err != nil {
		return nil, err
	}

	out := []model.AvailableCoupon{}
	for i := range all {
		c := &all[i]
		if c.Status != coupon.StatusActive {
			continue
		}
		if err := s.refreshUsed(ctx, c); err != nil {
			return nil, err
		}
		valid, err := s.validator.Validate(ctx, c, order, q.UserID)
		if err != nil {
			if _, ok := coupon.AsRejection(err); ok {
				continue
			}
			if errors.Is(err, coupon.ErrMalformedCoupon) {
				continue
			}
			return nil, err
		}
		out = append(out, model.AvailableCoupon{
			Coupon:   valid,
			Discount: coupon.Calculate(valid, q.OrderAmount, q.Lines),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Discount.DiscountAmount > out[j].Discount.DiscountAmount
	})
	return out, nil
}
