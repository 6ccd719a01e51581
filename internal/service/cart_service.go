package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"storefront/internal/cart"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

const ownerLockStripes = 64

// cartService implements CartService on top of a snapshot store. Mutations of
// the same owner are serialised within this process.
type cartService struct {
	products ProductService
	store    cart.SnapshotStore
	locks    [ownerLockStripes]sync.Mutex
	logger   zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(products ProductService, store cart.SnapshotStore, logger zerolog.Logger) CartService {
	return &cartService{
		products: products,
		store:    store,
		logger:   logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) lock(owner string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner))
	mu := &s.locks[h.Sum32()%ownerLockStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *cartService) load(ctx context.Context, owner string) (*cart.Cart, error) {
	if owner == "" {
		return nil, model.ErrMissingIdentity
	}
	data, err := s.store.Get(ctx, cart.SnapshotKey(owner))
	if err != nil {
		s.logger.Error().Err(err).Str("owner", owner).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	c, err := cart.Unmarshal(data)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", owner).Msg("cart snapshot is corrupt, starting fresh")
		return cart.New(), nil
	}
	return c, nil
}

func (s *cartService) save(ctx context.Context, owner string, c *cart.Cart) error {
	if c.IsEmpty() {
		if err := s.store.Remove(ctx, cart.SnapshotKey(owner)); err != nil {
			s.logger.Error().Err(err).Str("owner", owner).Msg("failed to remove cart")
			return fmt.Errorf("failed to save cart: %w", err)
		}
		return nil
	}
	data, err := cart.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cart.SnapshotKey(owner), data); err != nil {
		s.logger.Error().Err(err).Str("owner", owner).Msg("failed to save cart")
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// mutate loads the owner's cart, applies fn and saves the result.
func (s *cartService) mutate(ctx context.Context, owner string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	unlock := s.lock(owner)
	defer unlock()

	c, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.save(ctx, owner, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the owner's cart. A missing cart is an empty one.
func (s *cartService) Get(ctx context.Context, owner string) (*cart.Cart, error) {
	return s.load(ctx, owner)
}

// Add resolves the product and adds quantity units with the given selections.
func (s *cartService) Add(ctx context.Context, owner, productID string, quantity int, selections []cart.OptionSelection) (*cart.Cart, error) {
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		line := c.Add(cartProduct(product), quantity, selections)
		s.logger.Debug().
			Str("owner", owner).
			Str("product_id", productID).
			Str("variant_key", line.VariantKey).
			Int("quantity", line.Quantity).
			Msg("added to cart")
		return nil
	})
}

// ChangeQuantity sets a line's quantity; zero removes the line.
func (s *cartService) ChangeQuantity(ctx context.Context, owner, lineItemID string, quantity int) (*cart.Cart, error) {
	if quantity < 0 {
		return nil, model.ErrInvalidQuantity
	}
	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.ChangeQuantity(lineItemID, quantity)
		return nil
	})
}

func (s *cartService) Increase(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.Increase(lineItemID)
		return nil
	})
}

func (s *cartService) Decrease(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.Decrease(lineItemID)
		return nil
	})
}

func (s *cartService) Remove(ctx context.Context, owner, lineItemID string) (*cart.Cart, error) {
	return s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.Remove(lineItemID)
		return nil
	})
}

// Clear empties the owner's cart.
func (s *cartService) Clear(ctx context.Context, owner string) error {
	_, err := s.mutate(ctx, owner, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// Totals returns the derived aggregates of the owner's cart.
func (s *cartService) Totals(ctx context.Context, owner string) (cart.Totals, error) {
	c, err := s.load(ctx, owner)
	if err != nil {
		return cart.Totals{}, err
	}
	return c.Totals(), nil
}
