package caper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashkettle/caper/adapter"
)

// chainState is the request state for the generic executor tests. Steps
// append to Trace so ordering assertions read naturally.
type chainState struct {
	Trace []string
}

func traceStep(name StepName, doErr error, compErr error) *Step[*chainState] {
	return NewStep(name,
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			if doErr != nil {
				return StepOutput{}, doErr
			}
			sc.State.Trace = append(sc.State.Trace, "do:"+string(name))
			return StepOutput{Cost: 10, Output: string(name) + "-output"}, nil
		},
		func(ctx context.Context, sc *StepContext[*chainState]) (float64, error) {
			sc.State.Trace = append(sc.State.Trace, "undo:"+string(name))
			if compErr != nil {
				return 0, compErr
			}
			return 10, nil
		},
	)
}

func buildChain(t *testing.T, steps ...*Step[*chainState]) *Saga[*chainState] {
	t.Helper()
	b := NewBuilder[*chainState]("test_chain")
	for _, s := range steps {
		require.NoError(t, b.Append(s))
	}
	saga, err := b.Build()
	require.NoError(t, err)
	return saga
}

func TestExecuteSuccess(t *testing.T) {
	saga := buildChain(t,
		traceStep("one", nil, nil),
		traceStep("two", nil, nil),
		traceStep("three", nil, nil),
	)
	store := NewMemoryStore[*chainState]()
	exec := NewExecutor(saga, WithStore[*chainState](store))

	state := &chainState{}
	result := exec.Execute(context.Background(), state)

	assert.True(t, result.Success)
	assert.Equal(t, 30.0, result.TotalCost)
	assert.Zero(t, result.TotalRefunded)
	assert.Empty(t, result.CompensationsExecuted)
	assert.Equal(t, "three-output", result.DomainResult)
	assert.True(t, result.NotificationSent)
	assert.Equal(t, []string{"do:one", "do:two", "do:three"}, state.Trace)

	persisted, err := store.Load(context.Background(), result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, persisted.Status)
	assert.Len(t, persisted.CompletedSteps, 3)
}

func TestExecuteFailureUnwindsInReverseOrder(t *testing.T) {
	boom := adapter.Business("test", adapter.CodeIncompatible, "rejected")
	saga := buildChain(t,
		traceStep("one", nil, nil),
		traceStep("two", nil, nil),
		traceStep("three", boom, nil),
	)
	exec := NewExecutor(saga)

	state := &chainState{}
	result := exec.Execute(context.Background(), state)

	assert.False(t, result.Success)
	assert.Equal(t, StepName("three"), result.FailedAtStep)
	assert.Contains(t, result.FailureReason, "rejected")

	// Exactly N compensations for N completed steps, reverse order.
	require.Len(t, result.CompensationsExecuted, 2)
	assert.Equal(t, StepName("two"), result.CompensationsExecuted[0].Step)
	assert.Equal(t, StepName("one"), result.CompensationsExecuted[1].Step)
	assert.Equal(t, 20.0, result.TotalRefunded)
	assert.Equal(t, []string{"do:one", "do:two", "undo:two", "undo:one"}, state.Trace)
}

func TestUnwindContinuesPastFailedCompensation(t *testing.T) {
	saga := buildChain(t,
		traceStep("one", nil, nil),
		traceStep("two", nil, errors.New("undo blew up")),
		traceStep("three", nil, nil),
		traceStep("four", errors.New("forward failure"), nil),
	)
	exec := NewExecutor(saga)

	state := &chainState{}
	result := exec.Execute(context.Background(), state)

	require.Len(t, result.CompensationsExecuted, 3)
	assert.Equal(t, "three", string(result.CompensationsExecuted[0].Step))
	assert.Equal(t, "two (FAILED)", result.CompensationsExecuted[1].String())
	assert.True(t, result.CompensationsExecuted[1].Failed)
	assert.Equal(t, "one", string(result.CompensationsExecuted[2].Step))

	// The failed middle compensation refunds nothing but stops nothing.
	assert.Equal(t, 20.0, result.TotalRefunded)
	assert.Equal(t,
		[]string{"do:one", "do:two", "do:three", "undo:three", "undo:two", "undo:one"},
		state.Trace)
}

func TestEmergencyRecoveryRunsOnceBeforeUnwind(t *testing.T) {
	recoveries := 0
	failing := NewStep[*chainState]("surgical",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			return StepOutput{}, errors.New("mid-procedure failure")
		},
		nil,
	).WithRecovery(func(ctx context.Context, sc *StepContext[*chainState]) error {
		recoveries++
		sc.State.Trace = append(sc.State.Trace, "recover:surgical")
		return nil
	})

	saga := buildChain(t, traceStep("one", nil, nil), failing)
	exec := NewExecutor(saga)

	state := &chainState{}
	result := exec.Execute(context.Background(), state)

	assert.True(t, result.RecoveryAttempted)
	assert.Empty(t, result.RecoveryError)
	assert.Equal(t, 1, recoveries)
	// Recovery strictly precedes the unwind.
	assert.Equal(t, []string{"do:one", "recover:surgical", "undo:one"}, state.Trace)
}

func TestRecoveryFailureNeverBlocksUnwind(t *testing.T) {
	failing := NewStep[*chainState]("surgical",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			return StepOutput{}, errors.New("mid-procedure failure")
		},
		nil,
	).WithRecovery(func(ctx context.Context, sc *StepContext[*chainState]) error {
		return errors.New("stabilization failed too")
	})

	saga := buildChain(t, traceStep("one", nil, nil), failing)
	result := NewExecutor(saga).Execute(context.Background(), &chainState{})

	assert.True(t, result.RecoveryAttempted)
	assert.Equal(t, "stabilization failed too", result.RecoveryError)
	require.Len(t, result.CompensationsExecuted, 1)
	assert.Equal(t, StepName("one"), result.CompensationsExecuted[0].Step)
}

func TestTransientFailuresRetriedWithinBudget(t *testing.T) {
	attempts := 0
	flaky := NewStep[*chainState]("flaky",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			attempts++
			if attempts < 3 {
				return StepOutput{}, adapter.Transient("flaky", errors.New("timeout"))
			}
			return StepOutput{Cost: 5}, nil
		},
		nil,
	)

	saga := buildChain(t, flaky)
	exec := NewExecutor(saga, WithRetry[*chainState](RetryPolicy{MaxAttempts: 3, Delay: 0}))
	result := exec.Execute(context.Background(), &chainState{})

	assert.True(t, result.Success)
	assert.Equal(t, 3, attempts)
}

func TestBusinessFailureNeverRetried(t *testing.T) {
	attempts := 0
	rejected := NewStep[*chainState]("rejected",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			attempts++
			return StepOutput{}, adapter.Business("rejected", adapter.CodeStockUnavailable, "no stock")
		},
		nil,
	)

	saga := buildChain(t, rejected)
	exec := NewExecutor(saga, WithRetry[*chainState](RetryPolicy{MaxAttempts: 5, Delay: 0}))
	result := exec.Execute(context.Background(), &chainState{})

	assert.False(t, result.Success)
	assert.Equal(t, 1, attempts)
}

// failingNotifier always fails delivery.
type failingNotifier struct{}

func (failingNotifier) NotifySuccess(context.Context, Result) error {
	return fmt.Errorf("notification channel down")
}
func (failingNotifier) NotifyFailure(context.Context, Result) error {
	return fmt.Errorf("notification channel down")
}

func TestNotificationFailureDoesNotChangeResult(t *testing.T) {
	saga := buildChain(t, traceStep("one", nil, nil))
	exec := NewExecutor(saga, WithNotifier[*chainState](failingNotifier{}))
	result := exec.Execute(context.Background(), &chainState{})

	assert.True(t, result.Success)
	assert.False(t, result.NotificationSent)
}

func TestStepOutputsVisibleToLaterSteps(t *testing.T) {
	first := NewStep[*chainState]("first",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			return StepOutput{Output: 42}, nil
		},
		nil,
	)
	second := NewStep[*chainState]("second",
		func(ctx context.Context, sc *StepContext[*chainState]) (StepOutput, error) {
			v, err := LookupAs[int](sc, "first")
			if err != nil {
				return StepOutput{}, err
			}
			return StepOutput{Output: v * 2}, nil
		},
		nil,
	)

	saga := buildChain(t, first, second)
	result := NewExecutor(saga).Execute(context.Background(), &chainState{})

	require.True(t, result.Success)
	assert.Equal(t, 84, result.DomainResult)
}

func TestBuilderRejectsDuplicateNames(t *testing.T) {
	b := NewBuilder[*chainState]("dup")
	require.NoError(t, b.Append(traceStep("same", nil, nil)))
	assert.Error(t, b.Append(traceStep("same", nil, nil)))
}

func TestRegistryChain(t *testing.T) {
	reg := NewRegistry[*chainState]()
	require.NoError(t, reg.Register(traceStep("alpha", nil, nil)))
	require.NoError(t, reg.Register(traceStep("beta", nil, nil)))
	assert.Error(t, reg.Register(traceStep("alpha", nil, nil)))

	saga, err := reg.Chain("registered", "alpha", "beta")
	require.NoError(t, err)
	assert.Len(t, saga.Steps(), 2)

	_, err = reg.Chain("missing", "alpha", "gamma")
	assert.Error(t, err)
}
