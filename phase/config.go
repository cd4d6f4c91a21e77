package phase

// Config describes one operation instance.
type Config struct {
	Name       string   `json:"name" yaml:"name"`
	Budget     float64  `json:"budget" yaml:"budget"`
	GearCost   float64  `json:"gear_cost" yaml:"gear_cost"`
	BasePayout float64  `json:"base_payout" yaml:"base_payout"`
	Team       []Member `json:"team" yaml:"team"`
}

// Tuning constants for the machine. The critical threshold is shared by the
// compromised transition and nothing else; the signal-driven abort path
// does not consult it.
const (
	// CriticalAlert is the alert level at which an execution-phase risk
	// roll turns the operation compromised.
	CriticalAlert = 100.0

	// AlertBaseline is the alert level below which settlement applies no
	// penalty.
	AlertBaseline = 25.0

	// PenaltyRate is the fraction of base payout lost per alert point
	// above the baseline.
	PenaltyRate = 0.005

	// ResaleFraction is the default fraction of gear spend recovered when
	// an abort during gear acquisition liquidates the purchases.
	ResaleFraction = 0.35

	// infiltrationRolls and executionRolls are the number of risk events
	// sampled while running those phases.
	infiltrationRolls = 2
	executionRolls    = 3
)
