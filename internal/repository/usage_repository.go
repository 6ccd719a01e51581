package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/coupon"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// usageRepository implements UsageRepository using PostgreSQL. The counter
// row of a coupon is locked for the duration of a commit, which serialises
// commits on the same coupon.
type usageRepository struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	logger zerolog.Logger
}

// NewUsageRepository creates a new PostgreSQL-backed usage ledger.
func NewUsageRepository(pool *pgxpool.Pool, logger zerolog.Logger) UsageRepository {
	return &usageRepository{
		pool:   pool,
		now:    time.Now,
		logger: logger.With().Str("repository", "coupon_usage").Logger(),
	}
}

// Commit appends a usage record in its own transaction.
func (r *usageRepository) Commit(ctx context.Context, claim coupon.Claim) (*coupon.UsageRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := r.CommitTx(ctx, tx, claim)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to commit coupon usage")
		return nil, fmt.Errorf("failed to commit coupon usage: %w", err)
	}
	return rec, nil
}

// CommitTx re-checks both caps under the counter row lock and records the usage.
func (r *usageRepository) CommitTx(ctx context.Context, tx pgx.Tx, claim coupon.Claim) (*coupon.UsageRecord, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO coupon_usage_counters (coupon_id, used) VALUES ($1, 0) ON CONFLICT (coupon_id) DO NOTHING`,
		claim.CouponID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to create usage counter")
		return nil, fmt.Errorf("failed to create usage counter: %w", err)
	}

	var used int
	err = tx.QueryRow(ctx,
		`SELECT used FROM coupon_usage_counters WHERE coupon_id = $1 FOR UPDATE`,
		claim.CouponID,
	).Scan(&used)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to lock usage counter")
		return nil, fmt.Errorf("failed to lock usage counter: %w", err)
	}

	if claim.Limit > 0 && used >= claim.Limit {
		r.logger.Debug().
			Str("coupon_id", claim.CouponID).
			Int("used", used).
			Int("limit", claim.Limit).
			Msg("commit lost: global cap reached")
		return nil, coupon.ErrRaceLost
	}

	if claim.UserID != "" && claim.LimitPerUser > 0 {
		var count int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
			claim.CouponID, claim.UserID,
		).Scan(&count)
		if err != nil {
			r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to count user usages")
			return nil, fmt.Errorf("failed to count user usages: %w", err)
		}
		if count >= claim.LimitPerUser {
			r.logger.Debug().
				Str("coupon_id", claim.CouponID).
				Str("user_id", claim.UserID).
				Msg("commit lost: per-user cap reached")
			return nil, coupon.ErrRaceLost
		}
	}

	rec := &coupon.UsageRecord{
		ID:       uuid.NewString(),
		CouponID: claim.CouponID,
		UserID:   claim.UserID,
		OrderID:  claim.OrderID,
		UsedAt:   r.now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		`UPDATE coupon_usage_counters SET used = used + 1 WHERE coupon_id = $1`,
		claim.CouponID,
	); err != nil {
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to increment usage counter")
		return nil, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, used_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.CouponID, nullString(rec.UserID), rec.OrderID, rec.UsedAt,
	); err != nil {
		r.logger.Error().Err(err).Str("coupon_id", claim.CouponID).Msg("failed to insert usage record")
		return nil, fmt.Errorf("failed to insert usage record: %w", err)
	}

	r.logger.Debug().
		Str("coupon_id", claim.CouponID).
		Str("usage_id", rec.ID).
		Int("used", used+1).
		Msg("coupon usage recorded")

	return rec, nil
}

// Used returns the total number of usages of a coupon.
func (r *usageRepository) Used(ctx context.Context, couponID string) (int, error) {
	var used int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT used FROM coupon_usage_counters WHERE coupon_id = $1), 0)`,
		couponID,
	).Scan(&used)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to read usage counter")
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return used, nil
}

// CountByUser returns the number of usages of a coupon by one user.
func (r *usageRepository) CountByUser(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID,
	).Scan(&count)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to count user usages")
		return 0, fmt.Errorf("failed to count user usages: %w", err)
	}
	return count, nil
}

// Records returns the usage history of a coupon, oldest first.
func (r *usageRepository) Records(ctx context.Context, couponID string) ([]coupon.UsageRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, coupon_id, COALESCE(user_id, ''), order_id, used_at
		FROM coupon_usages WHERE coupon_id = $1 ORDER BY used_at, id`,
		couponID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", couponID).Msg("failed to query usage records")
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var out []coupon.UsageRecord
	for rows.Next() {
		var (
			rec     coupon.UsageRecord
			id      uuid.UUID
			orderID *uuid.UUID
		)
		if err := rows.Scan(&id, &rec.CouponID, &rec.UserID, &orderID, &rec.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.ID = id.String()
		if orderID != nil {
			s := orderID.String()
			rec.OrderID = &s
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}
	return out, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
