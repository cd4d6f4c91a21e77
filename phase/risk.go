package phase

import (
	"math/rand"
	"sync"
)

// RiskPolicy is the seam through which all randomness enters the machine.
// The default is seeded pseudo-random; tests inject deterministic policies
// to force every branch.
type RiskPolicy interface {
	// AlertRoll returns the alert increment for one risk event in the given
	// phase.
	AlertRoll(p Phase) float64

	// ExtractionRoll decides whether a member's emergency extraction
	// succeeds at the given alert level.
	ExtractionRoll(m Member, alert float64) bool
}

// RandomRisk is the production RiskPolicy: uniform alert rolls within a
// per-phase band, and an extraction chance that degrades linearly as the
// alert level rises.
type RandomRisk struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRisk creates a seeded random policy.
func NewRandomRisk(seed int64) *RandomRisk {
	return &RandomRisk{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomRisk) AlertRoll(p Phase) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch p {
	case Infiltration:
		return 5 + r.rng.Float64()*10 // 5..15
	case Execution:
		return 10 + r.rng.Float64()*20 // 10..30
	default:
		return 0
	}
}

func (r *RandomRisk) ExtractionRoll(m Member, alert float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < extractionChance(alert)
}

// extractionChance is the probability that an emergency extraction succeeds
// at the given alert level. It starts near-certain and degrades as alert
// rises, floored so no extraction is ever hopeless.
func extractionChance(alert float64) float64 {
	p := 0.95 - alert/200
	if p < 0.15 {
		return 0.15
	}
	return p
}

// FixedRisk is a deterministic RiskPolicy for tests: AlertRoll pops from a
// fixed sequence of increments and ExtractionRoll always answers Extract.
type FixedRisk struct {
	mu      sync.Mutex
	Rolls   []float64
	Extract bool
}

func (f *FixedRisk) AlertRoll(Phase) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Rolls) == 0 {
		return 0
	}
	roll := f.Rolls[0]
	f.Rolls = f.Rolls[1:]
	return roll
}

func (f *FixedRisk) ExtractionRoll(Member, float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Extract
}
