package caper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashkettle/caper/adapter"
)

func TestRetryExhaustsBudgetOnTransient(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Delay: 0}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return adapter.Transient("op", errors.New("timeout"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnBusiness(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Delay: 0}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return adapter.Business("op", adapter.CodeNotFound, "gone")
	})
	assert.True(t, adapter.IsBusiness(err))
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Delay: 0}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return adapter.Transient("op", errors.New("blip"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryZeroAttemptsStillRunsOnce(t *testing.T) {
	p := RetryPolicy{}
	calls := 0
	assert.NoError(t, p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultRetry
	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return adapter.Transient("op", errors.New("timeout"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
