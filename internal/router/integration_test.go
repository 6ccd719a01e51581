package router

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/handler"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testJWTSecret = "integration-secret"

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, repository.EnsureSchema(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	_, err = pool.Exec(ctx, `
		INSERT INTO products (id, name, base_price, category_ids, discounted, created_at)
		VALUES ('P001', 'Runner', 20000, ARRAY['shoes'], false, now()),
		       ('P002', 'Tote', 8000, ARRAY['bags'], true, now())
	`)
	require.NoError(t, err)

	return pool
}

// newPostgresRouter wires the API the way the server does with the Postgres
// catalog and usage ledger.
func newPostgresRouter(t *testing.T, pool *pgxpool.Pool) http.Handler {
	t.Helper()
	logger := zerolog.Nop()

	catalog := repository.NewCouponRepository(pool, logger)
	require.NoError(t, catalog.Put(context.Background(), &coupon.Coupon{
		ID:             "c-once",
		Code:           "ONCE5000",
		Type:           coupon.TypeFixedAmount,
		DiscountValue:  5000,
		MinOrderAmount: 50000,
		Usage:          coupon.Usage{Limit: 1},
		Validity:       coupon.Validity{IsAlwaysValid: true},
		Status:         coupon.StatusActive,
	}))

	orderRepo := repository.NewOrderRepository(pool, logger)
	ledger := repository.NewUsageRepository(pool, logger)

	products := service.NewProductService(repository.NewProductRepository(pool, logger), logger)
	carts := service.NewCartService(products, cart.NewMemoryStore(), logger)
	coupons := service.NewCouponService(catalog, ledger, orderRepo, nil, logger)
	orders := service.NewOrderService(orderRepo, carts, coupons, ledger, nil, logger)

	return New(Handlers{
		Products: handler.NewProductHandler(products, logger),
		Carts:    handler.NewCartHandler(carts, logger),
		Coupons:  handler.NewCouponHandler(coupons, carts, logger),
		Orders:   handler.NewOrderHandler(orders, logger),
	}, Options{APIKey: testAPIKey, JWTSecret: testJWTSecret}, logger)
}

func bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestCheckout_Integration(t *testing.T) {
	pool := setupPostgres(t)
	r := newPostgresRouter(t, pool)

	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	for _, user := range []map[string]string{alice, bob} {
		w := do(t, r, http.MethodPost, "/api/cart/items", `{"productId":"P001","quantity":3}`, user)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, r, http.MethodPost, "/api/orders", `{"couponCode":"once5000"}`, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var placed model.OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))
	assert.Equal(t, model.OrderStatusPlaced, placed.Status)
	assert.Equal(t, int64(60000), placed.Subtotal)
	assert.Equal(t, int64(5000), placed.DiscountAmount)
	assert.Equal(t, int64(55000), placed.FinalAmount)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, cart.EmptyVariantKey, placed.Items[0].VariantKey)

	t.Run("Order is readable by its owner", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/orders/"+placed.ID.String(), "", alice)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.OrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, model.OrderStatusPlaced, got.Status)
		assert.Len(t, got.Items, 1)

		w = do(t, r, http.MethodGet, "/api/orders/"+placed.ID.String(), "", bob)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Cart is cleared", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/cart/totals", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"lineCount":0,"totalCount":0,"totalPrice":0}`, w.Body.String())
	})

	t.Run("Exhausted coupon is rejected and the cart kept", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/orders", `{"couponCode":"ONCE5000"}`, bob)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

		var resp model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(coupon.ReasonUsageLimitExceeded), resp.Error)

		w = do(t, r, http.MethodGet, "/api/cart/totals", "", bob)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"lineCount":1,"totalCount":3,"totalPrice":60000}`, w.Body.String())
	})

	t.Run("Usage is recorded once", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/coupons/c-once/usages", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var usages []model.CouponUsageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usages))
		require.Len(t, usages, 1)
		assert.Equal(t, "alice", usages[0].UserID)
		require.NotNil(t, usages[0].OrderID)
		assert.Equal(t, placed.ID.String(), *usages[0].OrderID)
	})

	t.Run("Checkout without coupon", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/orders", "", bob)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var order model.OrderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
		assert.Equal(t, model.OrderStatusPlaced, order.Status)
		assert.Equal(t, int64(60000), order.FinalAmount)
		assert.Nil(t, order.CouponCode)
	})
}
