package caper

import (
	"fmt"

	"github.com/ashkettle/caper/set"
)

// SagaName identifies a saga chain definition.
type SagaName string

// Saga is an immutable, ordered chain of steps. Steps run strictly in the
// order they were appended; there is no step-level parallelism.
type Saga[T any] struct {
	name  SagaName
	steps []*Step[T]
}

// Name returns the saga's name.
func (s *Saga[T]) Name() SagaName { return s.name }

// Steps returns the ordered step chain.
func (s *Saga[T]) Steps() []*Step[T] {
	return append([]*Step[T](nil), s.steps...)
}

// Builder assembles a saga chain, enforcing unique step names.
//
// Callers append steps in forward-execution order. Compensation order is
// derived at run time from completion order, not from the builder.
type Builder[T any] struct {
	name  SagaName
	steps []*Step[T]
	names *set.Set[StepName]
}

// NewBuilder creates a Builder for a named saga.
func NewBuilder[T any](name SagaName) *Builder[T] {
	return &Builder[T]{name: name, names: &set.Set[StepName]{}}
}

// Append adds the next step in the forward chain.
func (b *Builder[T]) Append(step *Step[T]) error {
	if step == nil {
		return fmt.Errorf("nil step")
	}
	if step.name == "" {
		return fmt.Errorf("step has no name")
	}
	if b.names.Contains(step.name) {
		return fmt.Errorf("step name %q already used", step.name)
	}
	if step.do == nil {
		return fmt.Errorf("step %q has no forward action", step.name)
	}
	b.names.Insert(step.name)
	b.steps = append(b.steps, step)
	return nil
}

// Build finalizes the chain.
func (b *Builder[T]) Build() (*Saga[T], error) {
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("saga %q has no steps", b.name)
	}
	return &Saga[T]{name: b.name, steps: append([]*Step[T](nil), b.steps...)}, nil
}
