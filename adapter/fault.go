package adapter

import (
	"sync"
	"time"
)

// FaultPolicy decides whether a named subsystem operation fails, and how.
// The production default never injects anything; tests use ScriptedFaults to
// force each failure branch deterministically.
type FaultPolicy interface {
	// Fault returns the error the operation should fail with, or nil.
	Fault(op string) error
}

// NoFaults is the default policy: every operation succeeds.
type NoFaults struct{}

func (NoFaults) Fault(string) error { return nil }

// ScriptedFaults injects a fixed sequence of errors per operation name.
// Each call to Fault consumes the next entry for that operation; a nil entry
// (or an exhausted script) means success. Safe for concurrent use.
type ScriptedFaults struct {
	mu      sync.Mutex
	scripts map[string][]error
}

// NewScriptedFaults builds an empty script set.
func NewScriptedFaults() *ScriptedFaults {
	return &ScriptedFaults{scripts: make(map[string][]error)}
}

// Script appends errs to the fault sequence for op.
func (f *ScriptedFaults) Script(op string, errs ...error) *ScriptedFaults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[op] = append(f.scripts[op], errs...)
	return f
}

func (f *ScriptedFaults) Fault(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.scripts[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.scripts[op] = queue[1:]
	return err
}

// pause simulates bounded adapter latency. Zero means no delay; adapters
// never sleep longer than the configured bound.
func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
