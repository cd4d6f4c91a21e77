package adapter

import (
	"context"
	"sync"
	"time"
)

// Armory supplies operation gear within a budget, and buys it back at a
// resale fraction when an operation unwinds.
type Armory struct {
	mu        sync.Mutex
	purchased float64

	// ResaleFraction is the fraction of spend recovered on resale.
	ResaleFraction float64

	Faults  FaultPolicy
	Latency time.Duration
}

// NewArmory builds an armory with the given resale recovery fraction.
func NewArmory(resaleFraction float64) *Armory {
	return &Armory{ResaleFraction: resaleFraction, Faults: NoFaults{}}
}

// Acquire buys gear costing cost against the remaining budget. Exceeding the
// budget is a permanent business rejection; nothing is spent on failure.
func (a *Armory) Acquire(ctx context.Context, cost, budget float64) (float64, error) {
	pause(a.Latency)
	if err := ctx.Err(); err != nil {
		return 0, Transient("armory.acquire", err)
	}
	if err := a.Faults.Fault("armory.acquire"); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if cost > budget {
		return 0, Business("armory.acquire", CodeBudgetExceeded,
			"gear costs %.2f but budget is %.2f", cost, budget)
	}
	a.purchased += cost
	return cost, nil
}

// Resell liquidates gear bought for spent and returns the recovered amount.
func (a *Armory) Resell(ctx context.Context, spent float64) (float64, error) {
	pause(a.Latency)
	if err := ctx.Err(); err != nil {
		return 0, Transient("armory.resell", err)
	}
	if err := a.Faults.Fault("armory.resell"); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	recovered := spent * a.ResaleFraction
	a.purchased -= spent
	return recovered, nil
}
