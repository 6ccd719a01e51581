package handler

import (
	"context"

	"storefront/internal/cart"
	"storefront/internal/coupon"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cart(args mock.Arguments) (*cart.Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) Get(ctx context.Context, owner string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner))
}

func (m *MockCartService) Add(ctx context.Context, owner, productID string, quantity int, selections []cart.OptionSelection) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner, productID, quantity, selections))
}

func (m *MockCartService) ChangeQuantity(ctx context.Context, owner, lineItemID string, quantity int) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner, lineItemID, quantity))
}

func (m *MockCartService) Increase(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner, lineItemID))
}

func (m *MockCartService) Decrease(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner, lineItemID))
}

func (m *MockCartService) Remove(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, owner, lineItemID))
}

func (m *MockCartService) Clear(ctx context.Context, owner string) error {
	return m.Called(ctx, owner).Error(0)
}

func (m *MockCartService) Totals(ctx context.Context, owner string) (cart.Totals, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(cart.Totals), args.Error(1)
}

// MockCouponService is a mock implementation of CouponService.
type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) Validate(ctx context.Context, q service.CouponQuery) (*coupon.Coupon, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) Apply(ctx context.Context, q service.CouponQuery) (*coupon.Coupon, coupon.Discount, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, coupon.Discount{}, args.Error(2)
	}
	return args.Get(0).(*coupon.Coupon), args.Get(1).(coupon.Discount), args.Error(2)
}

func (m *MockCouponService) CommitUsage(ctx context.Context, couponID, userID string, orderID *string) (*coupon.UsageRecord, error) {
	args := m.Called(ctx, couponID, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.UsageRecord), args.Error(1)
}

func (m *MockCouponService) Usages(ctx context.Context, couponID string) ([]coupon.UsageRecord, error) {
	args := m.Called(ctx, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coupon.UsageRecord), args.Error(1)
}

func (m *MockCouponService) Available(ctx context.Context, q service.CouponQuery) ([]model.AvailableCoupon, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailableCoupon), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Checkout(ctx context.Context, owner, userID string, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	args := m.Called(ctx, owner, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}
