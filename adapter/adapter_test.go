package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	biz := Business("inventory.reserve", CodeStockUnavailable, "only %d left", 2)
	assert.True(t, IsBusiness(biz))
	assert.False(t, IsTransient(biz))
	assert.Equal(t, CodeStockUnavailable, BusinessCode(biz))
	assert.Contains(t, biz.Error(), "STOCK_UNAVAILABLE")

	tr := Transient("payments.charge", errors.New("timeout"))
	assert.True(t, IsTransient(tr))
	assert.False(t, IsBusiness(tr))
	assert.Empty(t, BusinessCode(tr))

	// Wrapping preserves classification.
	wrapped := errors.Join(errors.New("outer"), tr)
	assert.True(t, IsTransient(wrapped))
}

func TestInventoryReserveAndRelease(t *testing.T) {
	inv := NewInventory(StockItem{SKU: "mesh", Qty: 3, Price: 100})
	ctx := context.Background()

	res, err := inv.Reserve(ctx, "mesh", 2)
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Cost)
	assert.True(t, inv.Held(res.ID))

	// Only one unit left now.
	_, err = inv.Reserve(ctx, "mesh", 2)
	assert.Equal(t, CodeStockUnavailable, BusinessCode(err))

	require.NoError(t, inv.Release(ctx, res.ID))
	assert.False(t, inv.Held(res.ID))

	// Released units are reservable again.
	_, err = inv.Reserve(ctx, "mesh", 3)
	assert.NoError(t, err)

	_, err = inv.Reserve(ctx, "nonexistent", 1)
	assert.Equal(t, CodeNotFound, BusinessCode(err))
}

func TestClinicBookAndCancel(t *testing.T) {
	c := NewClinic(250, "mon-1000")
	ctx := context.Background()

	appt, err := c.Book(ctx, "mon-1000")
	require.NoError(t, err)
	assert.Equal(t, 250.0, appt.Fee)

	// A claimed slot rejects the next booking.
	_, err = c.Book(ctx, "mon-1000")
	assert.Equal(t, CodeNoSlotAvailable, BusinessCode(err))

	require.NoError(t, c.Cancel(ctx, appt.ID))
	assert.False(t, c.Booked(appt.ID))

	// Cancelling frees the slot.
	_, err = c.Book(ctx, "mon-1000")
	assert.NoError(t, err)
}

func TestPaymentsBlockedAndDoubleRefund(t *testing.T) {
	p := NewPayments("blocked-acct")
	ctx := context.Background()

	_, err := p.Charge(ctx, "blocked-acct", 100)
	assert.Equal(t, CodePaymentBlocked, BusinessCode(err))

	pay, err := p.Charge(ctx, "good-acct", 100)
	require.NoError(t, err)

	amount, err := p.Refund(ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, amount)
	assert.True(t, p.Refunded(pay.ID))

	// The second refund is rejected, not repeated.
	_, err = p.Refund(ctx, pay.ID)
	assert.True(t, IsBusiness(err))
}

func TestArmoryBudgetAndResale(t *testing.T) {
	a := NewArmory(0.35)
	ctx := context.Background()

	_, err := a.Acquire(ctx, 500, 400)
	assert.Equal(t, CodeBudgetExceeded, BusinessCode(err))

	spent, err := a.Acquire(ctx, 300, 400)
	require.NoError(t, err)
	assert.Equal(t, 300.0, spent)

	recovered, err := a.Resell(ctx, spent)
	require.NoError(t, err)
	assert.InDelta(t, 105.0, recovered, 1e-9)
}

func TestScriptedFaultsConsumeInOrder(t *testing.T) {
	faults := NewScriptedFaults().
		Script("inventory.reserve",
			Transient("inventory.reserve", errors.New("first")),
			nil,
			Transient("inventory.reserve", errors.New("third")))

	assert.Error(t, faults.Fault("inventory.reserve"))
	assert.NoError(t, faults.Fault("inventory.reserve"))
	assert.Error(t, faults.Fault("inventory.reserve"))
	// Exhausted scripts mean success.
	assert.NoError(t, faults.Fault("inventory.reserve"))
	// Unscripted operations always succeed.
	assert.NoError(t, faults.Fault("inventory.release"))
}

// fixedProvider answers every quote request with the same offer.
type fixedProvider struct {
	name  string
	quote *Quote
	err   error
}

func (p fixedProvider) Name() string { return p.name }
func (p fixedProvider) Quote(ctx context.Context, sku string) (*Quote, error) {
	return p.quote, p.err
}

func TestGatherQuotesAggregates(t *testing.T) {
	providers := []QuoteProvider{
		fixedProvider{name: "cheap", quote: &Quote{Price: 100, LeadTime: 72 * time.Hour, Reliability: 0.6}},
		fixedProvider{name: "fast", quote: &Quote{Price: 180, LeadTime: 4 * time.Hour, Reliability: 0.8}},
		fixedProvider{name: "solid", quote: &Quote{Price: 150, LeadTime: 24 * time.Hour, Reliability: 0.99}},
		fixedProvider{name: "silent", quote: nil},
		fixedProvider{name: "broken", err: errors.New("unreachable")},
	}

	set := GatherQuotes(context.Background(), "mesh", providers)

	// Failing and empty providers are skipped, not fatal.
	require.Len(t, set.All, 3)
	assert.Equal(t, "cheap", set.BestPrice.Provider)
	assert.Equal(t, "fast", set.Fastest.Provider)
	assert.Equal(t, "solid", set.MostReliable.Provider)
	require.NotNil(t, set.Recommended)

	empty := GatherQuotes(context.Background(), "mesh", []QuoteProvider{
		fixedProvider{name: "broken", err: errors.New("unreachable")},
	})
	assert.Empty(t, empty.All)
	assert.Nil(t, empty.Recommended)
}
