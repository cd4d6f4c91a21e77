package adapter

import (
	"context"
	"sync"
	"time"
)

// IntegrationReport is the domain result of a successful integration.
type IntegrationReport struct {
	SKU           string
	Compatibility float64
	StabilizedAt  time.Time
}

// Integrator performs the physical integration step. Integration is the one
// step that can leave a subject mid-procedure, so its failure path requires
// an emergency Stabilize before any financial unwind begins.
type Integrator struct {
	mu          sync.Mutex
	stabilized  int
	incompat    map[string]bool // sku -> always incompatible

	Faults  FaultPolicy
	Latency time.Duration
}

// NewIntegrator builds an integrator; the listed SKUs always fail
// compatibility evaluation.
func NewIntegrator(incompatibleSKUs ...string) *Integrator {
	ig := &Integrator{
		incompat: make(map[string]bool, len(incompatibleSKUs)),
		Faults:   NoFaults{},
	}
	for _, sku := range incompatibleSKUs {
		ig.incompat[sku] = true
	}
	return ig
}

// Integrate runs the procedure for a reserved item. Incompatibility is a
// permanent business rejection.
func (ig *Integrator) Integrate(ctx context.Context, sku string) (IntegrationReport, error) {
	pause(ig.Latency)
	if err := ctx.Err(); err != nil {
		return IntegrationReport{}, Transient("integrator.integrate", err)
	}
	if err := ig.Faults.Fault("integrator.integrate"); err != nil {
		return IntegrationReport{}, err
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.incompat[sku] {
		return IntegrationReport{}, Business("integrator.integrate", CodeIncompatible,
			"sku %q failed compatibility evaluation", sku)
	}
	return IntegrationReport{SKU: sku, Compatibility: 0.97, StabilizedAt: time.Now()}, nil
}

// Stabilize is the emergency recovery action: it brings an in-progress
// procedure to a safe stop. It is not a compensation; it runs once, before
// the unwind, when Integrate fails mid-procedure.
func (ig *Integrator) Stabilize(ctx context.Context) error {
	pause(ig.Latency)
	if err := ctx.Err(); err != nil {
		return Transient("integrator.stabilize", err)
	}
	if err := ig.Faults.Fault("integrator.stabilize"); err != nil {
		return err
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.stabilized++
	return nil
}

// Stabilizations returns how many emergency stabilizations have run.
func (ig *Integrator) Stabilizations() int {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.stabilized
}
