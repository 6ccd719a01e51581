package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper persists the lazy Expired and Exhausted transitions.
type Sweeper struct {
	store   Store
	counter UsageCounter
	now     func() time.Time
	logger  zerolog.Logger
}

// NewSweeper creates a status sweeper over store, reading use counts from counter.
func NewSweeper(store Store, counter UsageCounter, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		counter: counter,
		now:     time.Now,
		logger:  logger.With().Str("component", "coupon-sweeper").Logger(),
	}
}

// Sweep moves every active coupon whose effective status differs to that
// status and returns how many were transitioned. Coupons updated
// concurrently by someone else are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	coupons, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list coupons: %w", err)
	}

	now := s.now()
	moved := 0
	for i := range coupons {
		c := &coupons[i]
		if c.Status != StatusActive {
			continue
		}

		used, err := s.counter.Used(ctx, c.ID)
		if err != nil {
			return moved, fmt.Errorf("failed to read usage of coupon %s: %w", c.ID, err)
		}
		c.Usage.Used = used

		next := c.EffectiveStatus(now)
		if next == c.Status {
			continue
		}

		if err := s.store.UpdateStatus(ctx, c.ID, c.Status, next); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				s.logger.Debug().Str("coupon_id", c.ID).Msg("status changed concurrently, skipping")
				continue
			}
			return moved, fmt.Errorf("failed to update status of coupon %s: %w", c.ID, err)
		}

		s.logger.Info().
			Str("coupon_id", c.ID).
			Str("code", c.Code).
			Str("from", string(c.Status)).
			Str("to", string(next)).
			Msg("coupon status transitioned")
		moved++
	}

	return moved, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("coupon status sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("coupon status sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("coupon status sweep failed")
			}
		}
	}
}
