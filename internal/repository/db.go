package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the storefront's Postgres schema. Statements are idempotent.
// Coupon use counts live in coupon_usage_counters, owned by the usage
// ledger, so coupons carries no used column.
const schema = `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_price BIGINT NOT NULL CHECK (base_price >= 0),
		category_ids TEXT[] NOT NULL DEFAULT '{}',
		discounted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC);

	CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		discount_value BIGINT NOT NULL DEFAULT 0,
		max_discount_amount BIGINT NOT NULL DEFAULT 0,
		min_order_amount BIGINT NOT NULL DEFAULT 0,
		usage_limit INTEGER NOT NULL DEFAULT 0,
		usage_limit_per_user INTEGER NOT NULL DEFAULT 0,
		start_date TIMESTAMPTZ,
		end_date TIMESTAMPTZ,
		always_valid BOOLEAN NOT NULL DEFAULT FALSE,
		conditions JSONB NOT NULL DEFAULT '[]',
		target JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS coupon_usage_counters (
		coupon_id TEXT PRIMARY KEY,
		used INTEGER NOT NULL DEFAULT 0 CHECK (used >= 0)
	);

	CREATE TABLE IF NOT EXISTS coupon_usages (
		id UUID PRIMARY KEY,
		coupon_id TEXT NOT NULL,
		user_id TEXT,
		order_id UUID,
		used_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_coupon_usages_coupon_user ON coupon_usages(coupon_id, user_id);

	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id TEXT,
		coupon_code TEXT,
		coupon_id TEXT,
		subtotal BIGINT NOT NULL CHECK (subtotal >= 0),
		discount_amount BIGINT NOT NULL DEFAULT 0 CHECK (discount_amount >= 0),
		final_amount BIGINT NOT NULL CHECK (final_amount >= 0),
		free_shipping BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status);

	CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id),
		product_name TEXT NOT NULL DEFAULT '',
		variant_key TEXT NOT NULL,
		unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
		quantity INTEGER NOT NULL CHECK (quantity > 0)
	);
`

// EnsureSchema creates the storefront tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
