package phase

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store keeps one record per operation instance keyed by its ID. The
// manager archives the terminal state here when the run loop ends.
type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context, id string) (State, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-memory Store used by default. Crash-safe
// persistence belongs to the durable-execution substrate hosting the
// manager.
type MemoryStore struct {
	states *xsync.MapOf[string, State]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: xsync.NewMapOf[string, State]()}
}

func (m *MemoryStore) Save(ctx context.Context, state State) error {
	m.states.Store(state.ID, state.clone())
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (State, error) {
	state, ok := m.states.Load(id)
	if !ok {
		return State{}, fmt.Errorf("operation %s not found", id)
	}
	return state.clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.states.Delete(id)
	return nil
}
