package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictStore reports every status update as lost to a concurrent writer.
type conflictStore struct {
	*MemoryCatalog
}

func (conflictStore) UpdateStatus(context.Context, string, Status, Status) error {
	return ErrStatusConflict
}

func seedSweepCatalog(t *testing.T) *MemoryCatalog {
	ctx := context.Background()
	catalog := NewMemoryCatalog(4)
	coupons := []*Coupon{
		{ID: "live", Code: "LIVE", Type: TypeFixedAmount, Validity: Validity{IsAlwaysValid: true}, Status: StatusActive},
		{ID: "old", Code: "OLD", Type: TypeFixedAmount, Validity: Validity{EndDate: fixedNow.Add(-time.Minute)}, Status: StatusActive},
		{ID: "full", Code: "FULL", Type: TypeFixedAmount, Usage: Usage{Limit: 1}, Validity: Validity{IsAlwaysValid: true}, Status: StatusActive},
		{ID: "off", Code: "OFF", Type: TypeFixedAmount, Validity: Validity{EndDate: fixedNow.Add(-time.Minute)}, Status: StatusInactive},
	}
	for _, c := range coupons {
		require.NoError(t, catalog.Put(ctx, c))
	}
	return catalog
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	catalog := seedSweepCatalog(t)
	ledger := NewMemoryLedger(zerolog.Nop())
	_, err := ledger.Commit(ctx, Claim{CouponID: "full", Limit: 1})
	require.NoError(t, err)

	sweeper := NewSweeper(catalog, ledger, zerolog.Nop())
	sweeper.now = func() time.Time { return fixedNow }

	moved, err := sweeper.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	want := map[string]Status{
		"live": StatusActive,
		"old":  StatusExpired,
		"full": StatusExhausted,
		"off":  StatusInactive,
	}
	for id, status := range want {
		c, _ := catalog.GetByID(ctx, id)
		assert.Equal(t, status, c.Status, id)
	}

	// terminal states stay put
	moved, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, moved)
}

func TestSweeper_Sweep_SkipsConflicts(t *testing.T) {
	ctx := context.Background()
	store := conflictStore{seedSweepCatalog(t)}

	sweeper := NewSweeper(store, NewMemoryLedger(zerolog.Nop()), zerolog.Nop())
	sweeper.now = func() time.Time { return fixedNow }

	moved, err := sweeper.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, moved)
}

func TestSweeper_Run_StopsOnCancel(t *testing.T) {
	catalog := seedSweepCatalog(t)
	sweeper := NewSweeper(catalog, NewMemoryLedger(zerolog.Nop()), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		c, _ := catalog.GetByID(context.Background(), "old")
		return c.Status == StatusExpired
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
