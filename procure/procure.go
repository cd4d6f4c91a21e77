// Package procure defines the implant-procurement saga: a fixed ordered
// chain of reserve -> schedule -> pay -> integrate against four independent
// subsystems, each step paired with the compensation that reverses it.
package procure

import (
	"context"

	"github.com/ashkettle/caper"
	"github.com/ashkettle/caper/adapter"
)

// Step names of the procurement chain.
const (
	StepReserve   caper.StepName = "reserve_stock"
	StepSchedule  caper.StepName = "schedule_procedure"
	StepPay       caper.StepName = "charge_payment"
	StepIntegrate caper.StepName = "integrate_implant"
)

// SagaName is the procurement chain's saga name.
const SagaName caper.SagaName = "implant_procurement"

// Order is the per-request saga state. The saga mutates only the token
// fields, which is what its compensations need to find their way back.
type Order struct {
	Account string `json:"account"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
	Slot    string `json:"slot"`

	ReservationID string  `json:"reservation_id,omitempty"`
	AppointmentID string  `json:"appointment_id,omitempty"`
	PaymentID     string  `json:"payment_id,omitempty"`
	PaymentAmount float64 `json:"payment_amount,omitempty"`
}

// Systems are the external subsystems the chain runs against.
type Systems struct {
	Inventory  *adapter.Inventory
	Clinic     *adapter.Clinic
	Payments   *adapter.Payments
	Integrator *adapter.Integrator
}

// NewSaga builds the procurement chain over the given subsystems.
func NewSaga(sys Systems) (*caper.Saga[*Order], error) {
	b := caper.NewBuilder[*Order](SagaName)

	reserve := caper.NewStep(StepReserve,
		func(ctx context.Context, sc *caper.StepContext[*Order]) (caper.StepOutput, error) {
			res, err := sys.Inventory.Reserve(ctx, sc.State.SKU, sc.State.Qty)
			if err != nil {
				return caper.StepOutput{}, err
			}
			sc.State.ReservationID = res.ID
			return caper.StepOutput{Cost: res.Cost, Output: res}, nil
		},
		func(ctx context.Context, sc *caper.StepContext[*Order]) (float64, error) {
			return 0, sys.Inventory.Release(ctx, sc.State.ReservationID)
		},
	)

	schedule := caper.NewStep(StepSchedule,
		func(ctx context.Context, sc *caper.StepContext[*Order]) (caper.StepOutput, error) {
			appt, err := sys.Clinic.Book(ctx, sc.State.Slot)
			if err != nil {
				return caper.StepOutput{}, err
			}
			sc.State.AppointmentID = appt.ID
			return caper.StepOutput{Cost: appt.Fee, Output: appt}, nil
		},
		func(ctx context.Context, sc *caper.StepContext[*Order]) (float64, error) {
			return 0, sys.Clinic.Cancel(ctx, sc.State.AppointmentID)
		},
	)

	pay := caper.NewStep(StepPay,
		func(ctx context.Context, sc *caper.StepContext[*Order]) (caper.StepOutput, error) {
			res, err := caper.LookupAs[adapter.Reservation](sc, StepReserve)
			if err != nil {
				return caper.StepOutput{}, err
			}
			appt, err := caper.LookupAs[adapter.Appointment](sc, StepSchedule)
			if err != nil {
				return caper.StepOutput{}, err
			}

			amount := res.Cost + appt.Fee
			payment, err := sys.Payments.Charge(ctx, sc.State.Account, amount)
			if err != nil {
				return caper.StepOutput{}, err
			}
			sc.State.PaymentID = payment.ID
			sc.State.PaymentAmount = payment.Amount
			// Reservation and booking fees were already counted by their
			// own steps; the charge itself adds no new cost.
			return caper.StepOutput{Output: payment}, nil
		},
		func(ctx context.Context, sc *caper.StepContext[*Order]) (float64, error) {
			return sys.Payments.Refund(ctx, sc.State.PaymentID)
		},
	)

	// Integration can fail mid-procedure, so it carries the emergency
	// stabilization that must run before the financial unwind begins.
	integrate := caper.NewStep(StepIntegrate,
		func(ctx context.Context, sc *caper.StepContext[*Order]) (caper.StepOutput, error) {
			report, err := sys.Integrator.Integrate(ctx, sc.State.SKU)
			if err != nil {
				return caper.StepOutput{}, err
			}
			return caper.StepOutput{Output: report}, nil
		},
		nil, // a completed integration is not reversed
	).WithRecovery(func(ctx context.Context, sc *caper.StepContext[*Order]) error {
		return sys.Integrator.Stabilize(ctx)
	})

	for _, step := range []*caper.Step[*Order]{reserve, schedule, pay, integrate} {
		if err := b.Append(step); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
