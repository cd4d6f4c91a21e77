package caper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/btree"
)

// Executor runs a saga chain. Each call to Execute is a single sequential
// control flow over a fresh per-run context; one Executor may serve many
// concurrent runs because it holds no per-run state itself.
type Executor[T any] struct {
	saga     *Saga[T]
	store    Store[T]
	notifier Notifier
	retry    RetryPolicy
	log      zerolog.Logger
}

// Option configures an Executor.
type Option[T any] func(*Executor[T])

// WithStore sets the persistence backend (default: in-memory).
func WithStore[T any](store Store[T]) Option[T] {
	return func(e *Executor[T]) { e.store = store }
}

// WithNotifier sets the outcome notifier (default: log-backed).
func WithNotifier[T any](n Notifier) Option[T] {
	return func(e *Executor[T]) { e.notifier = n }
}

// WithRetry sets the transient-failure retry policy for forward steps.
func WithRetry[T any](p RetryPolicy) Option[T] {
	return func(e *Executor[T]) { e.retry = p }
}

// WithLogger sets the structured logger (default: no-op).
func WithLogger[T any](log zerolog.Logger) Option[T] {
	return func(e *Executor[T]) { e.log = log }
}

// NewExecutor creates an executor for the given saga.
func NewExecutor[T any](saga *Saga[T], opts ...Option[T]) *Executor[T] {
	e := &Executor[T]{
		saga:  saga,
		retry: DefaultRetry,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = NewMemoryStore[T]()
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Log: e.log}
	}
	return e
}

// run is the per-run execution context. It is created for one Execute call
// and discarded with it; no state crosses runs.
type run[T any] struct {
	id        string
	sc        *StepContext[T]
	log       *RunLog
	startedAt time.Time

	// completed steps whose compensations have not yet run, in completion
	// order. The unwind pops from the tail.
	stack []*Step[T]

	totalCost     float64
	totalRefunded float64
	completed     []CompletedStep
}

// Execute runs the chain against state and always returns a structured
// Result; it never returns an error to the caller.
func (e *Executor[T]) Execute(ctx context.Context, state T) Result {
	sagasStarted.WithLabelValues(string(e.saga.name)).Inc()

	r := &run[T]{
		id:        uuid.NewString(),
		startedAt: time.Now(),
	}
	r.sc = &StepContext[T]{
		SagaID:  r.id,
		State:   state,
		outputs: btree.NewMap[StepName, any](8),
	}
	r.log = NewRunLog(r.id)

	log := e.log.With().Str("saga_id", r.id).Str("saga", string(e.saga.name)).Logger()
	e.persist(ctx, r, state, StatusRunning, "")

	var lastOutput any
	for _, step := range e.saga.steps {
		out, err := e.executeStep(ctx, log, r, step)
		if err != nil {
			result := e.fail(ctx, log, r, state, step, err)
			e.observeFinish(result, r.startedAt)
			return result
		}

		r.totalCost += out.Cost
		if out.Output != nil {
			r.sc.outputs.Set(step.name, out.Output)
			lastOutput = out.Output
		}
		if step.HasCompensation() {
			r.stack = append(r.stack, step)
		}
		r.completed = append(r.completed, CompletedStep{
			Name:        string(step.name),
			Cost:        out.Cost,
			CompletedAt: time.Now(),
		})
		e.persist(ctx, r, state, StatusRunning, "")
	}

	result := Result{
		SagaID:       r.id,
		SagaName:     e.saga.name,
		Success:      true,
		TotalCost:    r.totalCost,
		DomainResult: lastOutput,
	}
	e.persist(ctx, r, state, StatusCompleted, "")
	result.NotificationSent = e.notify(ctx, log, result)
	e.observeFinish(result, r.startedAt)
	return result
}

// executeStep runs one forward action under the retry policy, recording
// lifecycle events.
func (e *Executor[T]) executeStep(ctx context.Context, log zerolog.Logger, r *run[T], step *Step[T]) (StepOutput, error) {
	e.record(log, r, step.name, EventStepStarted)
	log.Debug().Str("step", string(step.name)).Msg("step started")

	var out StepOutput
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var doErr error
		out, doErr = step.do(ctx, r.sc)
		return doErr
	})
	if err != nil {
		e.record(log, r, step.name, EventStepFailed)
		stepsExecuted.WithLabelValues(string(step.name), "failed").Inc()
		log.Warn().Str("step", string(step.name)).Err(err).Msg("step failed")
		return StepOutput{}, err
	}

	e.record(log, r, step.name, EventStepSucceeded)
	stepsExecuted.WithLabelValues(string(step.name), "succeeded").Inc()
	log.Debug().Str("step", string(step.name)).Float64("cost", out.Cost).Msg("step succeeded")
	return out, nil
}

// fail handles a forward failure at the given step: emergency recovery
// first when the step declares one, then the full best-effort unwind, then
// the single failure notification.
func (e *Executor[T]) fail(ctx context.Context, log zerolog.Logger, r *run[T], state T, failed *Step[T], cause error) Result {
	result := Result{
		SagaID:        r.id,
		SagaName:      e.saga.name,
		TotalCost:     r.totalCost,
		FailedAtStep:  failed.name,
		FailureReason: cause.Error(),
	}

	// The emergency recovery runs exactly once, before any compensation.
	// Its own failure is logged and recorded, never escalated, and never
	// blocks the unwind.
	if failed.recover != nil {
		result.RecoveryAttempted = true
		e.record(log, r, failed.name, EventRecoveryStarted)
		if err := failed.recover(ctx, r.sc); err != nil {
			result.RecoveryError = err.Error()
			e.record(log, r, failed.name, EventRecoveryFailed)
			log.Error().Str("step", string(failed.name)).Err(err).Msg("emergency recovery failed")
		} else {
			e.record(log, r, failed.name, EventRecoveryFinished)
			log.Info().Str("step", string(failed.name)).Msg("emergency recovery finished")
		}
	}

	e.persist(ctx, r, state, StatusCompensating, string(failed.name))
	result.CompensationsExecuted = e.unwind(ctx, log, r)
	result.TotalRefunded = r.totalRefunded

	e.persist(ctx, r, state, StatusFailed, string(failed.name))
	result.NotificationSent = e.notify(ctx, log, result)
	return result
}

// unwind pops the compensation stack and runs every entry in reverse
// completion order. A failing compensation is recorded and the unwind
// continues; it always runs to completion.
func (e *Executor[T]) unwind(ctx context.Context, log zerolog.Logger, r *run[T]) []CompensationOutcome {
	outcomes := make([]CompensationOutcome, 0, len(r.stack))
	for i := len(r.stack) - 1; i >= 0; i-- {
		step := r.stack[i]
		e.record(log, r, step.name, EventCompStarted)

		refunded, err := step.compensate(ctx, r.sc)
		outcome := CompensationOutcome{Step: step.name}
		if err != nil {
			outcome.Failed = true
			outcome.Error = err.Error()
			e.record(log, r, step.name, EventCompFailed)
			compensationsExecuted.WithLabelValues(string(step.name), "failed").Inc()
			log.Error().Str("step", string(step.name)).Err(err).Msg("compensation failed, continuing unwind")
		} else {
			outcome.Refunded = refunded
			r.totalRefunded += refunded
			e.record(log, r, step.name, EventCompFinished)
			compensationsExecuted.WithLabelValues(string(step.name), "succeeded").Inc()
			log.Info().Str("step", string(step.name)).Float64("refunded", refunded).Msg("compensation finished")
		}
		outcomes = append(outcomes, outcome)
	}
	r.stack = r.stack[:0]
	return outcomes
}

// notify makes the single best-effort outcome notification attempt.
func (e *Executor[T]) notify(ctx context.Context, log zerolog.Logger, result Result) bool {
	var err error
	if result.Success {
		err = e.notifier.NotifySuccess(ctx, result)
	} else {
		err = e.notifier.NotifyFailure(ctx, result)
	}
	if err != nil {
		log.Warn().Err(err).Msg("outcome notification failed")
		return false
	}
	return true
}

// persist saves run state; failures are logged and otherwise ignored.
func (e *Executor[T]) persist(ctx context.Context, r *run[T], state T, status, failedStep string) {
	record := State[T]{
		SagaID:         r.id,
		SagaName:       string(e.saga.name),
		Status:         status,
		Context:        state,
		CompletedSteps: append([]CompletedStep(nil), r.completed...),
		FailedStep:     failedStep,
		TotalCost:      r.totalCost,
		TotalRefunded:  r.totalRefunded,
		CreatedAt:      r.startedAt,
	}
	if err := e.store.Save(ctx, r.id, record); err != nil {
		e.log.Warn().Str("saga_id", r.id).Err(err).Msg("failed to persist run state")
	}
}

// record appends a run-log event; an illegal event indicates an executor
// bug and is logged loudly rather than propagated.
func (e *Executor[T]) record(log zerolog.Logger, r *run[T], step StepName, eventType EventType) {
	if err := r.log.Record(step, eventType); err != nil {
		log.Error().Err(err).Msg(fmt.Sprintf("run log rejected event %s", eventType))
	}
}

// observeFinish updates run-outcome metrics.
func (e *Executor[T]) observeFinish(result Result, startedAt time.Time) {
	outcome := "failed"
	if result.Success {
		outcome = "succeeded"
	}
	sagasFinished.WithLabelValues(string(result.SagaName), outcome).Inc()
	sagaDuration.Observe(time.Since(startedAt).Seconds())
}
