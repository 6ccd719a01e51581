package coupon_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storefront/internal/coupon"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"
)

type pricingTestContext struct {
	catalog   *coupon.MemoryCatalog
	ledger    *coupon.MemoryLedger
	validator *coupon.Validator
	discount  coupon.Discount
	err       error
	won       int
	lost      int
}

func (p *pricingTestContext) reset() {
	p.catalog = coupon.NewMemoryCatalog(4)
	p.ledger = coupon.NewMemoryLedger(zerolog.Nop())
	p.validator = coupon.NewValidator(p.ledger, zerolog.Nop())
	p.discount = coupon.Discount{}
	p.err = nil
	p.won = 0
	p.lost = 0
}

func (p *pricingTestContext) update(code string, fn func(c *coupon.Coupon)) error {
	ctx := context.Background()
	c, err := p.catalog.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("coupon %s not defined", code)
	}
	fn(c)
	return p.catalog.Put(ctx, c)
}

func (p *pricingTestContext) aFixedAmountCoupon(code string, value, minimum int) error {
	return p.catalog.Put(context.Background(), &coupon.Coupon{
		Code:           code,
		Type:           coupon.TypeFixedAmount,
		DiscountValue:  int64(value),
		MinOrderAmount: int64(minimum),
		Validity:       coupon.Validity{IsAlwaysValid: true},
		Status:         coupon.StatusActive,
	})
}

func (p *pricingTestContext) aPercentageCoupon(code string, value, maxDiscount, minimum int) error {
	return p.catalog.Put(context.Background(), &coupon.Coupon{
		Code:              code,
		Type:              coupon.TypePercentage,
		DiscountValue:     int64(value),
		MaxDiscountAmount: int64(maxDiscount),
		MinOrderAmount:    int64(minimum),
		Validity:          coupon.Validity{IsAlwaysValid: true},
		Status:            coupon.StatusActive,
	})
}

func (p *pricingTestContext) couponIsLimitedPerUser(code string, n int) error {
	return p.update(code, func(c *coupon.Coupon) { c.Usage.LimitPerUser = n })
}

func (p *pricingTestContext) couponIsLimited(code string, n int) error {
	return p.update(code, func(c *coupon.Coupon) { c.Usage.Limit = n })
}

func (p *pricingTestContext) couponRequiresFirstOrder(code string) error {
	return p.update(code, func(c *coupon.Coupon) {
		c.Conditions = append(c.Conditions, coupon.FirstOrderCondition{})
	})
}

func (p *pricingTestContext) userHasUsed(user, code string) error {
	c, err := p.catalog.GetByCode(context.Background(), code)
	if err != nil {
		return err
	}
	_, err = p.ledger.Commit(context.Background(), coupon.ClaimFor(c, user, nil))
	return err
}

func (p *pricingTestContext) apply(user, code string, amount int, first bool) error {
	ctx := context.Background()
	c, err := p.catalog.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if c != nil {
		used, err := p.ledger.Used(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Usage.Used = used
	}

	order := coupon.OrderSnapshot{Amount: int64(amount), FirstOrder: first}
	validated, err := p.validator.Validate(ctx, c, order, user)
	if err != nil {
		p.err = err
		return nil
	}
	p.discount = coupon.Calculate(validated, order.Amount, nil)
	return nil
}

func (p *pricingTestContext) userAppliesToAnOrder(user, code string, amount int) error {
	return p.apply(user, code, amount, false)
}

func (p *pricingTestContext) userAppliesToAFirstOrder(user, code string, amount int) error {
	return p.apply(user, code, amount, true)
}

func (p *pricingTestContext) usersCommitConcurrently(n int, code string) error {
	c, err := p.catalog.GetByCode(context.Background(), code)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var unexpected error
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.ledger.Commit(context.Background(), coupon.ClaimFor(c, fmt.Sprintf("user-%d", i), nil))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				p.won++
			case errors.Is(err, coupon.ErrRaceLost):
				p.lost++
			default:
				unexpected = err
			}
		}(i)
	}
	wg.Wait()
	return unexpected
}

func (p *pricingTestContext) theDiscountIs(amount int) error {
	if p.err != nil {
		return fmt.Errorf("expected a discount but got error: %v", p.err)
	}
	if p.discount.DiscountAmount != int64(amount) {
		return fmt.Errorf("expected discount %d, got %d", amount, p.discount.DiscountAmount)
	}
	return nil
}

func (p *pricingTestContext) theFinalAmountIs(amount int) error {
	if p.discount.FinalAmount != int64(amount) {
		return fmt.Errorf("expected final amount %d, got %d", amount, p.discount.FinalAmount)
	}
	return nil
}

func (p *pricingTestContext) theCouponIsRejectedWith(reason string) error {
	rej, ok := coupon.AsRejection(p.err)
	if !ok {
		return fmt.Errorf("expected rejection %s, got %v", reason, p.err)
	}
	if string(rej.Reason) != reason {
		return fmt.Errorf("expected rejection %s, got %s", reason, rej.Reason)
	}
	return nil
}

func (p *pricingTestContext) commitsSucceed(n int) error {
	if p.won != n {
		return fmt.Errorf("expected %d successful commits, got %d", n, p.won)
	}
	return nil
}

func (p *pricingTestContext) commitsLoseTheRace(n int) error {
	if p.lost != n {
		return fmt.Errorf("expected %d lost commits, got %d", n, p.lost)
	}
	return nil
}

func (p *pricingTestContext) userApplyingIsRejectedWith(user, code string, amount int, reason string) error {
	if err := p.apply(user, code, amount, false); err != nil {
		return err
	}
	return p.theCouponIsRejectedWith(reason)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	pc := &pricingTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		pc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a fixed amount coupon "([^"]*)" of (\d+) with minimum order (\d+)$`, pc.aFixedAmountCoupon)
	ctx.Step(`^a percentage coupon "([^"]*)" of (\d+) capped at (\d+) with minimum order (\d+)$`, pc.aPercentageCoupon)
	ctx.Step(`^coupon "([^"]*)" is limited to (\d+) use per user$`, pc.couponIsLimitedPerUser)
	ctx.Step(`^coupon "([^"]*)" is limited to (\d+) uses$`, pc.couponIsLimited)
	ctx.Step(`^coupon "([^"]*)" requires a first order$`, pc.couponRequiresFirstOrder)
	ctx.Step(`^user "([^"]*)" has used "([^"]*)"$`, pc.userHasUsed)

	// When steps
	ctx.Step(`^user "([^"]*)" applies "([^"]*)" to an order of (\d+)$`, pc.userAppliesToAnOrder)
	ctx.Step(`^user "([^"]*)" applies "([^"]*)" to a first order of (\d+)$`, pc.userAppliesToAFirstOrder)
	ctx.Step(`^(\d+) users commit "([^"]*)" concurrently$`, pc.usersCommitConcurrently)

	// Then steps
	ctx.Step(`^the discount is (\d+)$`, pc.theDiscountIs)
	ctx.Step(`^the final amount is (\d+)$`, pc.theFinalAmountIs)
	ctx.Step(`^the coupon is rejected with "([^"]*)"$`, pc.theCouponIsRejectedWith)
	ctx.Step(`^(\d+) commits succeed$`, pc.commitsSucceed)
	ctx.Step(`^(\d+) commits lose the race$`, pc.commitsLoseTheRace)
	ctx.Step(`^user "([^"]*)" applying "([^"]*)" to an order of (\d+) is rejected with "([^"]*)"$`, pc.userApplyingIsRejectedWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
