package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/coupon"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const couponColumns = `id, code, name, type, discount_value, max_discount_amount, min_order_amount,
	usage_limit, usage_limit_per_user, start_date, end_date, always_valid, conditions, target, status`

const uniqueViolation = "23505"

// couponRepository implements coupon.Store using PostgreSQL.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon catalog.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) coupon.Store {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// GetByCode finds a coupon by its case-insensitive code.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	code = coupon.NormalizeCode(code)
	c, err := r.queryOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon by code")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return c, nil
}

// GetByID finds a coupon by ID.
func (r *couponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := r.queryOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", id).Msg("failed to query coupon by id")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return c, nil
}

// List returns every coupon ordered by code.
func (r *couponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY code`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list coupons")
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan coupon row")
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating coupon rows")
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return out, nil
}

// Put creates or replaces a coupon. A missing ID is generated and written
// back to c. A stored expired or exhausted status is kept.
func (r *couponRepository) Put(ctx context.Context, c *coupon.Coupon) error {
	if err := c.Check(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = coupon.NormalizeCode(c.Code)

	conditions, err := json.Marshal(c.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode coupon conditions: %w", err)
	}
	target, err := json.Marshal(c.Target)
	if err != nil {
		return fmt.Errorf("failed to encode coupon target: %w", err)
	}

	query := `
		INSERT INTO coupons (` + couponColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			discount_value = EXCLUDED.discount_value,
			max_discount_amount = EXCLUDED.max_discount_amount,
			min_order_amount = EXCLUDED.min_order_amount,
			usage_limit = EXCLUDED.usage_limit,
			usage_limit_per_user = EXCLUDED.usage_limit_per_user,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			always_valid = EXCLUDED.always_valid,
			conditions = EXCLUDED.conditions,
			target = EXCLUDED.target,
			status = CASE WHEN coupons.status IN ('expired', 'exhausted')
				THEN coupons.status ELSE EXCLUDED.status END,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Code,
		c.Name,
		string(c.Type),
		c.DiscountValue,
		c.MaxDiscountAmount,
		c.MinOrderAmount,
		c.Usage.Limit,
		c.Usage.LimitPerUser,
		nullTime(c.Validity.StartDate),
		nullTime(c.Validity.EndDate),
		c.Validity.IsAlwaysValid,
		string(conditions),
		string(target),
		string(c.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", coupon.ErrDuplicateCode, c.Code)
		}
		r.logger.Error().Err(err).Str("code", c.Code).Msg("failed to store coupon")
		return fmt.Errorf("failed to store coupon: %w", err)
	}

	r.logger.Debug().Str("coupon_id", c.ID).Str("code", c.Code).Msg("coupon stored")
	return nil
}

// UpdateStatus moves a coupon from one status to another.
func (r *couponRepository) UpdateStatus(ctx context.Context, id string, from, to coupon.Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s cannot leave %s", coupon.ErrStatusConflict, id, from)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", id).Msg("failed to update coupon status")
		return fmt.Errorf("failed to update coupon status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s is no longer %s", coupon.ErrStatusConflict, id, from)
	}
	return nil
}

func (r *couponRepository) queryOne(ctx context.Context, query string, arg any) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanCoupon(rows)
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var (
		c                  coupon.Coupon
		typ, status        string
		start, end         *time.Time
		conditions, target []byte
	)
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&typ,
		&c.DiscountValue,
		&c.MaxDiscountAmount,
		&c.MinOrderAmount,
		&c.Usage.Limit,
		&c.Usage.LimitPerUser,
		&start,
		&end,
		&c.Validity.IsAlwaysValid,
		&conditions,
		&target,
		&status,
	)
	if err != nil {
		return nil, err
	}

	c.Type = coupon.Type(typ)
	c.Status = coupon.Status(status)
	if start != nil {
		c.Validity.StartDate = start.UTC()
	}
	if end != nil {
		c.Validity.EndDate = end.UTC()
	}
	if err := json.Unmarshal(conditions, &c.Conditions); err != nil {
		return nil, fmt.Errorf("coupon %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(target, &c.Target); err != nil {
		return nil, fmt.Errorf("coupon %s: %w", c.ID, err)
	}
	return &c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
