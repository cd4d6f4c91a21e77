// Package phase implements a signal-driven phase state machine (a process
// manager): a long-lived operation advancing through declared phases while
// remaining responsive to externally delivered abort/update/confirm signals
// and read-only state queries.
package phase

import "github.com/ashkettle/caper/set"

// Phase is a named stage in the operation state machine.
type Phase string

const (
	Planning        Phase = "planning"
	TeamAssembly    Phase = "team_assembly"
	GearAcquisition Phase = "gear_acquisition"
	Infiltration    Phase = "infiltration"
	Execution       Phase = "execution"
	Extraction      Phase = "extraction"

	// Terminal phases. Completed is the success outcome; Aborted is the
	// signal-driven escape; Compromised is the fatal outcome reachable only
	// from Execution when the alert level crosses the critical threshold
	// through the phase's own risk rolls.
	Completed   Phase = "completed"
	Aborted     Phase = "aborted"
	Compromised Phase = "compromised"
)

// forwardChain is the declared forward progression of a healthy operation.
var forwardChain = []Phase{
	Planning, TeamAssembly, GearAcquisition, Infiltration, Execution, Extraction, Completed,
}

var terminal = set.Of(Completed, Aborted, Compromised)

// Terminal reports whether p ends the operation.
func (p Phase) Terminal() bool {
	return terminal.Contains(p)
}

// Phases lists every declared phase.
func Phases() []Phase {
	all := append([]Phase(nil), forwardChain...)
	return append(all, Aborted, Compromised)
}
