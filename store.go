package caper

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists per-run saga state, one record per run keyed by saga ID.
// It is generic over T, the caller's request state type.
//
// The executor treats persistence as advisory: a Save failure is logged and
// the run continues. Crash-safe replay belongs to the durable-execution
// substrate hosting the executor, not to this interface.
type Store[T any] interface {
	Save(ctx context.Context, sagaID string, state State[T]) error
	Load(ctx context.Context, sagaID string) (*State[T], error)
	Delete(ctx context.Context, sagaID string) error
}

// State is the persisted record of one saga run.
type State[T any] struct {
	SagaID         string          `json:"saga_id"`
	SagaName       string          `json:"saga_name"`
	Status         string          `json:"status"`
	Context        T               `json:"context"`
	CompletedSteps []CompletedStep `json:"completed_steps"`
	FailedStep     string          `json:"failed_step,omitempty"`
	TotalCost      float64         `json:"total_cost"`
	TotalRefunded  float64         `json:"total_refunded"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CompletedStep records a forward step that succeeded, with the cost it
// committed.
type CompletedStep struct {
	Name        string    `json:"name"`
	Cost        float64   `json:"cost"`
	CompletedAt time.Time `json:"completed_at"`
}

// Run status constants.
const (
	StatusRunning      = "running"
	StatusCompleted    = "completed"
	StatusCompensating = "compensating"
	StatusFailed       = "failed"
)

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore[T any] struct {
	mu     sync.RWMutex
	states map[string]*State[T]
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{states: make(map[string]*State[T])}
}

func (m *MemoryStore[T]) Save(ctx context.Context, sagaID string, state State[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateCopy := state
	stateCopy.UpdatedAt = time.Now()
	m.states[sagaID] = &stateCopy
	return nil
}

func (m *MemoryStore[T]) Load(ctx context.Context, sagaID string) (*State[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[sagaID]
	if !exists {
		return nil, fmt.Errorf("saga %s not found", sagaID)
	}
	stateCopy := *state
	return &stateCopy, nil
}

func (m *MemoryStore[T]) Delete(ctx context.Context, sagaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sagaID)
	return nil
}
