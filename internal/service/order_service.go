package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// txUsageLedger is a usage ledger that can record a usage inside an order
// transaction.
type txUsageLedger interface {
	CommitTx(ctx context.Context, tx pgx.Tx, claim coupon.Claim) (*coupon.UsageRecord, error)
}

const placeAttempts = 3

var placeRetryDelay = 50 * time.Millisecond

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	carts     CartService
	coupons   CouponService
	ledger    coupon.UsageLedger
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewOrderService creates a new order service. When ledger can join a
// transaction, the coupon usage and the order placement commit together.
func NewOrderService(
	orderRepo repository.OrderRepository,
	carts CartService,
	coupons CouponService,
	ledger coupon.UsageLedger,
	publisher events.Publisher,
	logger zerolog.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orderRepo: orderRepo,
		carts:     carts,
		coupons:   coupons,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// Checkout turns the owner's cart into an order.
//
// The order and its items are written in one transaction. Without a coupon
// the order is placed immediately. With one, it is written as pending and
// placed once the usage commit succeeds; a commit that loses the race for
// the last slot cancels the order and reports why the coupon no longer
// applies. Any other failure after the order is written cancels it too.
// The cart is cleared after a successful placement.
func (s *orderService) Checkout(ctx context.Context, owner, userID string, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	if req == nil {
		req = &model.CheckoutRequest{}
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, model.ErrEmptyCart
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:          uuid.New(),
		Subtotal:    c.TotalPrice,
		FinalAmount: c.TotalPrice,
		Status:      model.OrderStatusPlaced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if userID != "" {
		order.UserID = &userID
	}
	items := orderItems(order.ID, c)

	var (
		applied *coupon.Coupon
		query   CouponQuery
	)
	if req.CouponCode != nil && *req.CouponCode != "" {
		query = CouponQuery{
			Code:        *req.CouponCode,
			OrderAmount: c.TotalPrice,
			Lines:       CartLines(c),
			UserID:      userID,
			FirstOrder:  req.FirstOrder,
		}
		cp, discount, err := s.coupons.Apply(ctx, query)
		if err != nil {
			s.logger.Info().Err(err).Str("coupon_code", *req.CouponCode).Msg("coupon rejected at checkout")
			return nil, err
		}
		applied = cp
		order.CouponCode = &cp.Code
		order.CouponID = &cp.ID
		order.DiscountAmount = discount.DiscountAmount
		order.FinalAmount = discount.FinalAmount
		order.FreeShipping = discount.FreeShipping
		order.Status = model.OrderStatusPending
	}

	if err := s.persist(ctx, order, items); err != nil {
		return nil, err
	}

	if applied != nil {
		if err := s.place(ctx, order, applied, userID, query); err != nil {
			return nil, err
		}
	}

	if err := s.carts.Clear(ctx, owner); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to clear cart after checkout")
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Int("item_count", len(items)).
		Int64("subtotal", order.Subtotal).
		Int64("discount", order.DiscountAmount).
		Int64("final_amount", order.FinalAmount).
		Msg("order placed")

	return &model.OrderResponse{Order: *order, Items: items}, nil
}

func (s *orderService) persist(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if err := s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		return fmt.Errorf("failed to create order items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// place commits the coupon usage of a pending order and moves the order to
// placed, or to cancelled when the usage cap was reached in the meantime.
func (s *orderService) place(ctx context.Context, order *model.Order, applied *coupon.Coupon, userID string, q CouponQuery) error {
	orderID := order.ID.String()
	claim := coupon.ClaimFor(applied, userID, &orderID)

	var (
		rec *coupon.UsageRecord
		err error
	)
	if txLedger, ok := s.ledger.(txUsageLedger); ok {
		rec, err = s.commitInTx(ctx, txLedger, order.ID, claim)
		if err == nil {
			publishUsage(ctx, s.publisher, s.logger, applied.Code, rec)
		}
	} else {
		rec, err = s.coupons.CommitUsage(ctx, applied.ID, userID, &orderID)
		if err == nil {
			s.markPlaced(ctx, order.ID, rec.ID)
		}
	}

	if errors.Is(err, coupon.ErrRaceLost) {
		return s.cancel(ctx, order, q)
	}
	if err != nil {
		s.abandon(ctx, order, err)
		return err
	}

	order.Status = model.OrderStatusPlaced
	s.logger.Debug().Str("order_id", orderID).Str("usage_id", rec.ID).Msg("coupon usage committed")
	return nil
}

func (s *orderService) commitInTx(ctx context.Context, ledger txUsageLedger, id uuid.UUID, claim coupon.Claim) (*coupon.UsageRecord, error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	rec, err := ledger.CommitTx(ctx, tx, claim)
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateStatusTx(ctx, tx, id, model.OrderStatusPlaced); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, nil
}

// markPlaced records the placement of an order whose coupon usage is already
// committed. The usage cannot be taken back, so a failed update is retried
// and finally logged for reconciliation instead of failing the checkout.
func (s *orderService) markPlaced(ctx context.Context, id uuid.UUID, usageID string) {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= placeAttempts; attempt++ {
		if err = s.orderRepo.UpdateStatus(ctx, id, model.OrderStatusPlaced); err == nil {
			return
		}
		if attempt < placeAttempts {
			time.Sleep(time.Duration(attempt) * placeRetryDelay)
		}
	}
	s.logger.Error().
		Err(err).
		Str("order_id", id.String()).
		Str("usage_id", usageID).
		Msg("order left pending after coupon usage was committed")
}

// abandon cancels a pending order after a checkout step failed without
// consuming a usage slot.
func (s *orderService) abandon(ctx context.Context, order *model.Order, cause error) {
	if err := s.orderRepo.UpdateStatus(context.WithoutCancel(ctx), order.ID, model.OrderStatusCancelled); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel abandoned order")
		return
	}
	order.Status = model.OrderStatusCancelled
	s.logger.Warn().Err(cause).Str("order_id", order.ID.String()).Msg("checkout failed, order cancelled")
}

// cancel marks a pending order cancelled and validates the coupon again to
// report the reason it no longer applies.
func (s *orderService) cancel(ctx context.Context, order *model.Order, q CouponQuery) error {
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel order")
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = model.OrderStatusCancelled

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("coupon_code", q.Code).
		Msg("coupon usage cap reached at checkout, order cancelled")

	if _, err := s.coupons.Validate(ctx, q); err != nil {
		return err
	}
	return coupon.ErrRaceLost
}

// GetByID retrieves an order by its ID with all items.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, items, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	if items == nil {
		items = []model.OrderItem{}
	}
	return &model.OrderResponse{Order: *order, Items: items}, nil
}

func orderItems(orderID uuid.UUID, c *cart.Cart) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(c.Items))
	for _, li := range c.Items {
		items = append(items, model.OrderItem{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			VariantKey:  li.VariantKey,
			UnitPrice:   li.UnitFinalPrice,
			Quantity:    li.Quantity,
		})
	}
	return items
}

// CartLines returns the cart's lines as the coupon calculator sees them.
func CartLines(c *cart.Cart) []coupon.OrderLine {
	lines := make([]coupon.OrderLine, 0, len(c.Items))
	for i := range c.Items {
		li := &c.Items[i]
		lines = append(lines, coupon.OrderLine{
			ProductID:   li.ProductID,
			CategoryIDs: li.CategoryIDs,
			Amount:      li.Subtotal(),
			Discounted:  li.Discounted,
		})
	}
	return lines
}
