package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID *string, status model.OrderStatus) *model.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Subtotal:       60000,
		DiscountAmount: 5000,
		FinalAmount:    55000,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewOrderRepository(pool, logger)
	seedProducts(t, pool, testProducts(time.Now()))

	ctx := context.Background()
	userID := "user-1"
	code := "SAVE5000"
	couponID := "c-save5000"

	order := newTestOrder(&userID, model.OrderStatusPending)
	order.CouponCode = &code
	order.CouponID = &couponID

	items := []model.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: "P001", ProductName: "Product A", VariantKey: "color:red", UnitPrice: 10000, Quantity: 2},
		{ID: uuid.New(), OrderID: order.ID, ProductID: "P001", ProductName: "Product A", VariantKey: "color:blue", UnitPrice: 10000, Quantity: 1},
		{ID: uuid.New(), OrderID: order.ID, ProductID: "P002", ProductName: "Product B", VariantKey: "-", UnitPrice: 30000, Quantity: 1},
	}

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, repo.CreateOrderItems(ctx, tx, items))
	require.NoError(t, repo.CreateOrderItems(ctx, tx, nil))
	require.NoError(t, tx.Commit(ctx))

	got, gotItems, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, &userID, got.UserID)
	assert.Equal(t, &code, got.CouponCode)
	assert.Equal(t, &couponID, got.CouponID)
	assert.Equal(t, int64(60000), got.Subtotal)
	assert.Equal(t, int64(5000), got.DiscountAmount)
	assert.Equal(t, int64(55000), got.FinalAmount)
	assert.Equal(t, model.OrderStatusPending, got.Status)

	require.Len(t, gotItems, 3)
	byVariant := make(map[string]model.OrderItem)
	for _, it := range gotItems {
		byVariant[it.ProductID+"/"+it.VariantKey] = it
	}
	assert.Equal(t, 2, byVariant["P001/color:red"].Quantity)
	assert.Equal(t, int64(30000), byVariant["P002/-"].UnitPrice)

	missing, missingItems, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Nil(t, missingItems)
}

func TestOrderRepository_TransactionRollback(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	order := newTestOrder(nil, model.OrderStatusPending)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, tx.Rollback(ctx))

	got, _, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrderRepository_CreateOrderItems_UnknownProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	order := newTestOrder(nil, model.OrderStatusPending)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))

	err = repo.CreateOrderItems(ctx, tx, []model.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: "NOPE", VariantKey: "-", UnitPrice: 100, Quantity: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create order item")
}

func TestOrderRepository_UpdateStatusAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()
	userID := "user-1"

	placed := newTestOrder(&userID, model.OrderStatusPending)
	cancelled := newTestOrder(&userID, model.OrderStatusPending)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, placed))
	require.NoError(t, repo.CreateOrder(ctx, tx, cancelled))
	require.NoError(t, tx.Commit(ctx))

	count, err := repo.CountPlacedByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.UpdateStatus(ctx, placed.ID, model.OrderStatusPlaced))
	require.NoError(t, repo.UpdateStatus(ctx, cancelled.ID, model.OrderStatusCancelled))

	count, err = repo.CountPlacedByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, _, err := repo.GetByID(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), model.OrderStatusPlaced)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestOrderRepository_UpdateStatusTx(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	order := newTestOrder(nil, model.OrderStatusPending)
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(ctx, tx, order.ID, model.OrderStatusPlaced))
	require.NoError(t, tx.Rollback(ctx))

	got, _, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(ctx, tx, order.ID, model.OrderStatusPlaced))
	require.NoError(t, tx.Commit(ctx))

	got, _, err = repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPlaced, got.Status)
}

func TestOrderRepository_ErrorPaths(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	pool.Close()

	t.Run("BeginTx with closed pool", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)

		require.Error(t, err)
		assert.Nil(t, tx)
	})

	t.Run("GetByID with closed pool", func(t *testing.T) {
		order, items, err := repo.GetByID(ctx, uuid.New())

		require.Error(t, err)
		assert.Nil(t, order)
		assert.Nil(t, items)
	})

	t.Run("CountPlacedByUser with closed pool", func(t *testing.T) {
		_, err := repo.CountPlacedByUser(ctx, "user-1")
		assert.Error(t, err)
	})
}
