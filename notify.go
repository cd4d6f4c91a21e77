package caper

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers the single outcome notification at the end of a run.
// Delivery is best effort: the executor attempts it exactly once and
// swallows any failure.
type Notifier interface {
	NotifySuccess(ctx context.Context, result Result) error
	NotifyFailure(ctx context.Context, result Result) error
}

// LogNotifier emits outcome notifications as structured log events.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) NotifySuccess(ctx context.Context, result Result) error {
	n.Log.Info().
		Str("saga_id", result.SagaID).
		Str("saga", string(result.SagaName)).
		Float64("total_cost", result.TotalCost).
		Msg("saga completed")
	return nil
}

func (n LogNotifier) NotifyFailure(ctx context.Context, result Result) error {
	n.Log.Warn().
		Str("saga_id", result.SagaID).
		Str("saga", string(result.SagaName)).
		Str("failed_at", string(result.FailedAtStep)).
		Str("reason", result.FailureReason).
		Float64("total_refunded", result.TotalRefunded).
		Msg("saga failed")
	return nil
}
