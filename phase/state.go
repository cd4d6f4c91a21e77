package phase

import "time"

// MemberStatus tracks a roster member through the operation.
type MemberStatus string

const (
	StatusRecruited  MemberStatus = "recruited"
	StatusInPosition MemberStatus = "in_position"
	StatusExtracted  MemberStatus = "extracted"
	StatusMIA        MemberStatus = "mia"
)

// Member is one roster entry. SharePct is the member's percentage of the
// final payout.
type Member struct {
	Name     string       `json:"name" yaml:"name"`
	Role     string       `json:"role" yaml:"role"`
	SharePct float64      `json:"share_pct" yaml:"share_pct"`
	Status   MemberStatus `json:"status" yaml:"-"`
}

// Trigger records what caused a phase transition.
type Trigger string

const (
	TriggerLoop     Trigger = "phase_loop"
	TriggerSignal   Trigger = "signal"
	TriggerRiskRoll Trigger = "risk_roll"
	TriggerTimeout  Trigger = "timeout"
	TriggerFailure  Trigger = "phase_failure"
)

// TransitionRecord is one immutable entry in the phase history.
type TransitionRecord struct {
	From    Phase     `json:"from"`
	To      Phase     `json:"to"`
	At      time.Time `json:"at"`
	Reason  string    `json:"reason"`
	Trigger Trigger   `json:"trigger"`
}

// State is the mutable state of one operation instance. It is owned by the
// manager's run loop; everyone else sees copies via Handle.State.
type State struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phase Phase  `json:"phase"`

	// History is append-only; every non-abort entry follows a declared
	// forward edge.
	History []TransitionRecord `json:"history"`

	Budget    float64 `json:"budget"`
	Spent     float64 `json:"spent"`
	Recovered float64 `json:"recovered"`

	// AlertLevel accumulates through risk rolls; external corrections via
	// the alert-update signal are the only way it decreases.
	AlertLevel float64 `json:"alert_level"`

	Team []Member `json:"team"`

	// Payouts maps member name to settled amount; populated only on the
	// completed terminal phase.
	Payouts map[string]float64 `json:"payouts,omitempty"`

	// Fatal marks a compromised outcome, distinct from a signal abort even
	// when both stem from the same alert value.
	Fatal       bool   `json:"fatal"`
	AbortReason string `json:"abort_reason,omitempty"`

	// ActionsCompleted counts phase actions that have fully run; a snapshot
	// never reports fewer history entries than completed actions imply.
	ActionsCompleted int `json:"actions_completed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// clone deep-copies the state for snapshots.
func (s *State) clone() State {
	out := *s
	out.History = append([]TransitionRecord(nil), s.History...)
	out.Team = append([]Member(nil), s.Team...)
	if s.Payouts != nil {
		out.Payouts = make(map[string]float64, len(s.Payouts))
		for k, v := range s.Payouts {
			out.Payouts[k] = v
		}
	}
	return out
}

// ExtractedShare sums the share percentages of extracted members.
func (s *State) ExtractedShare() float64 {
	var pct float64
	for _, m := range s.Team {
		if m.Status == StatusExtracted {
			pct += m.SharePct
		}
	}
	return pct
}
