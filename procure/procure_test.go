package procure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashkettle/caper"
	"github.com/ashkettle/caper/adapter"
)

func testSystems() Systems {
	return Systems{
		Inventory: adapter.NewInventory(
			adapter.StockItem{SKU: "neural-mesh-7", Qty: 5, Price: 1200},
			adapter.StockItem{SKU: "ocular-v2", Qty: 1, Price: 800},
		),
		Clinic:     adapter.NewClinic(300, "tue-0900", "wed-1400"),
		Payments:   adapter.NewPayments("deadbeat"),
		Integrator: adapter.NewIntegrator("ocular-v2"),
	}
}

func newSaga(t *testing.T, sys Systems) *caper.Saga[*Order] {
	t.Helper()
	saga, err := NewSaga(sys)
	require.NoError(t, err)
	return saga
}

func TestProcurementHappyPath(t *testing.T) {
	sys := testSystems()
	saga := newSaga(t, sys)

	order := &Order{Account: "acct-1", SKU: "neural-mesh-7", Qty: 2, Slot: "tue-0900"}
	result := caper.NewExecutor(saga).Execute(context.Background(), order)

	require.True(t, result.Success, "failure: %s at %s", result.FailureReason, result.FailedAtStep)
	// 2 x 1200 reservation + 300 booking fee.
	assert.Equal(t, 2700.0, result.TotalCost)
	assert.Empty(t, result.CompensationsExecuted)

	report, ok := result.DomainResult.(adapter.IntegrationReport)
	require.True(t, ok, "domain result is %T", result.DomainResult)
	assert.Equal(t, "neural-mesh-7", report.SKU)

	// Tokens stayed committed.
	assert.True(t, sys.Inventory.Held(order.ReservationID))
	assert.True(t, sys.Clinic.Booked(order.AppointmentID))
	assert.False(t, sys.Payments.Refunded(order.PaymentID))
	assert.Equal(t, 2700.0, order.PaymentAmount)
}

func TestIncompatibleImplantUnwindsEverything(t *testing.T) {
	sys := testSystems()
	saga := newSaga(t, sys)

	order := &Order{Account: "acct-1", SKU: "ocular-v2", Qty: 1, Slot: "wed-1400"}
	result := caper.NewExecutor(saga).Execute(context.Background(), order)

	assert.False(t, result.Success)
	assert.Equal(t, StepIntegrate, result.FailedAtStep)
	assert.Contains(t, result.FailureReason, string(adapter.CodeIncompatible))

	// Stabilization ran exactly once, before the unwind.
	assert.True(t, result.RecoveryAttempted)
	assert.Equal(t, 1, sys.Integrator.Stabilizations())

	// All three completed steps compensated, newest first.
	require.Len(t, result.CompensationsExecuted, 3)
	assert.Equal(t, StepPay, result.CompensationsExecuted[0].Step)
	assert.Equal(t, StepSchedule, result.CompensationsExecuted[1].Step)
	assert.Equal(t, StepReserve, result.CompensationsExecuted[2].Step)

	// The charge came back in full; releases refund nothing themselves.
	assert.Equal(t, 1100.0, result.TotalRefunded)
	assert.False(t, sys.Inventory.Held(order.ReservationID))
	assert.False(t, sys.Clinic.Booked(order.AppointmentID))
	assert.True(t, sys.Payments.Refunded(order.PaymentID))
}

func TestBlockedAccountStopsBeforeIntegration(t *testing.T) {
	sys := testSystems()
	saga := newSaga(t, sys)

	order := &Order{Account: "deadbeat", SKU: "neural-mesh-7", Qty: 1, Slot: "tue-0900"}
	result := caper.NewExecutor(saga).Execute(context.Background(), order)

	assert.False(t, result.Success)
	assert.Equal(t, StepPay, result.FailedAtStep)
	assert.False(t, result.RecoveryAttempted)
	assert.Zero(t, sys.Integrator.Stabilizations())

	require.Len(t, result.CompensationsExecuted, 2)
	assert.Equal(t, StepSchedule, result.CompensationsExecuted[0].Step)
	assert.Equal(t, StepReserve, result.CompensationsExecuted[1].Step)
	assert.Zero(t, result.TotalRefunded)
}

func TestFailedReleaseDoesNotHaltUnwind(t *testing.T) {
	sys := testSystems()
	sys.Inventory.Faults = adapter.NewScriptedFaults().
		Script("inventory.release", adapter.Transient("inventory.release", errors.New("warehouse offline")))
	saga := newSaga(t, sys)

	order := &Order{Account: "acct-1", SKU: "ocular-v2", Qty: 1, Slot: "tue-0900"}
	result := caper.NewExecutor(saga).Execute(context.Background(), order)

	assert.False(t, result.Success)
	require.Len(t, result.CompensationsExecuted, 3)

	release := result.CompensationsExecuted[2]
	assert.Equal(t, StepReserve, release.Step)
	assert.True(t, release.Failed)
	assert.Equal(t, string(StepReserve)+" (FAILED)", release.String())

	// The earlier compensations still landed.
	assert.False(t, result.CompensationsExecuted[0].Failed)
	assert.False(t, result.CompensationsExecuted[1].Failed)
	assert.True(t, sys.Payments.Refunded(order.PaymentID))
	assert.False(t, sys.Clinic.Booked(order.AppointmentID))
}

func TestTransientChargeRetriedToSuccess(t *testing.T) {
	sys := testSystems()
	sys.Payments.Faults = adapter.NewScriptedFaults().
		Script("payments.charge",
			adapter.Transient("payments.charge", errors.New("gateway timeout")),
			adapter.Transient("payments.charge", errors.New("gateway timeout")))
	saga := newSaga(t, sys)

	order := &Order{Account: "acct-1", SKU: "neural-mesh-7", Qty: 1, Slot: "tue-0900"}
	exec := caper.NewExecutor(saga,
		caper.WithRetry[*Order](caper.RetryPolicy{MaxAttempts: 3, Delay: 0}))
	result := exec.Execute(context.Background(), order)

	assert.True(t, result.Success, "failure: %s at %s", result.FailureReason, result.FailedAtStep)
}
