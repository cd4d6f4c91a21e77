package caper

import (
	"context"
	"fmt"

	"github.com/tidwall/btree"
)

// StepName identifies a step within a saga chain.
type StepName string

// StepOutput is what a forward action hands back on success: the money it
// committed and an optional output value for dependent steps to look up.
type StepOutput struct {
	Cost   float64
	Output any
}

// DoFunc is a step's forward action.
type DoFunc[T any] func(ctx context.Context, sc *StepContext[T]) (StepOutput, error)

// CompensateFunc semantically reverses a completed forward action and
// returns the amount refunded by doing so.
type CompensateFunc[T any] func(ctx context.Context, sc *StepContext[T]) (float64, error)

// RecoverFunc is an emergency pre-unwind action for steps that can fail
// mid-flight in a way that must be made safe before any compensation runs.
type RecoverFunc[T any] func(ctx context.Context, sc *StepContext[T]) error

// Step pairs a forward action with its compensation. Compensations capture
// minimal identifiers through the step context, not bulk data.
type Step[T any] struct {
	name       StepName
	do         DoFunc[T]
	compensate CompensateFunc[T]
	recover    RecoverFunc[T]
}

// NewStep builds a step. compensate may be nil for steps with nothing to
// reverse.
func NewStep[T any](name StepName, do DoFunc[T], compensate CompensateFunc[T]) *Step[T] {
	return &Step[T]{name: name, do: do, compensate: compensate}
}

// WithRecovery attaches an emergency recovery action, run exactly once
// before the unwind when this step's forward action fails.
func (s *Step[T]) WithRecovery(fn RecoverFunc[T]) *Step[T] {
	s.recover = fn
	return s
}

// Name returns the step's name.
func (s *Step[T]) Name() StepName { return s.name }

// HasCompensation reports whether the step has anything to reverse.
func (s *Step[T]) HasCompensation() bool { return s.compensate != nil }

// StepContext carries per-run state into step functions: the caller's typed
// request state plus the outputs of previously completed steps.
type StepContext[T any] struct {
	SagaID  string
	State   T
	outputs *btree.Map[StepName, any]
}

// Lookup retrieves the output of a previously completed step by name.
func (sc *StepContext[T]) Lookup(name StepName) (any, bool) {
	if sc.outputs == nil {
		return nil, false
	}
	return sc.outputs.Get(name)
}

// LookupAs retrieves and type-asserts the output of a previously completed
// step.
func LookupAs[R any, T any](sc *StepContext[T], name StepName) (R, error) {
	var zero R
	value, ok := sc.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("no output recorded for step %q", name)
	}
	typed, ok := value.(R)
	if !ok {
		return zero, fmt.Errorf("output of step %q is %T, not %T", name, value, zero)
	}
	return typed, nil
}
