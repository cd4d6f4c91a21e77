package caper

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds named steps for reuse across saga definitions.
//
// Saga construction is dynamic: when a chain is rebuilt from configuration
// or from persisted state, the concrete step functions are recovered by
// name, so every step a saga may reference must be registered up front.
type Registry[T any] struct {
	steps *xsync.MapOf[StepName, *Step[T]]
}

// NewRegistry creates an empty step registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{steps: xsync.NewMapOf[StepName, *Step[T]]()}
}

// Register adds a step to the registry.
func (r *Registry[T]) Register(step *Step[T]) error {
	if _, ok := r.steps.Load(step.Name()); ok {
		return fmt.Errorf("step with name %q already registered", step.Name())
	}
	r.steps.Store(step.Name(), step)
	return nil
}

// Get retrieves a step by name.
func (r *Registry[T]) Get(name StepName) (*Step[T], error) {
	step, ok := r.steps.Load(name)
	if !ok {
		return nil, fmt.Errorf("no step registered with name %q", name)
	}
	return step, nil
}

// Chain builds a saga from registered step names, in order.
func (r *Registry[T]) Chain(saga SagaName, names ...StepName) (*Saga[T], error) {
	b := NewBuilder[T](saga)
	for _, name := range names {
		step, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		if err := b.Append(step); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
