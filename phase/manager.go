package phase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashkettle/caper/adapter"
)

// errCompromised routes the execution phase's threshold breach to the
// compromised terminal. It is fatal and cannot be raised by any signal.
var errCompromised = errors.New("alert level crossed the critical threshold")

// GearSupplier is the external subsystem the gear-acquisition phase spends
// against. Acquire and Resell form a compensation pair.
type GearSupplier interface {
	Acquire(ctx context.Context, cost, budget float64) (float64, error)
	Resell(ctx context.Context, spent float64) (float64, error)
}

// Manager runs operation instances through the phase graph. One Manager
// serves many concurrent operations; each Start call owns its instance
// state exclusively.
type Manager struct {
	graph          *Graph
	risk           RiskPolicy
	store          Store
	gear           GearSupplier
	log            zerolog.Logger
	confirmTimeout time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRisk injects the risk policy (default: seeded random).
func WithRisk(p RiskPolicy) ManagerOption {
	return func(m *Manager) { m.risk = p }
}

// WithStore sets the instance store (default: in-memory).
func WithStore(s Store) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// WithGearSupplier sets the gear subsystem (default: adapter.Armory).
func WithGearSupplier(g GearSupplier) ManagerOption {
	return func(m *Manager) { m.gear = g }
}

// WithLogger sets the structured logger (default: no-op).
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithConfirmTimeout bounds the team-confirmation wait. On timeout the
// machine proceeds as if confirmed: the timeout is advisory, never fatal,
// a deliberate choice against indefinite stalls.
func WithConfirmTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.confirmTimeout = d }
}

// NewManager creates a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		graph:          NewGraph(),
		log:            zerolog.Nop(),
		confirmTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.risk == nil {
		m.risk = NewRandomRisk(time.Now().UnixNano())
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.gear == nil {
		m.gear = adapter.NewArmory(ResaleFraction)
	}
	return m
}

// Handle is the external surface of one running operation: the signal
// mailbox, the read-only state query, and the terminal-result wait.
type Handle struct {
	id   string
	mb   *mailbox
	done chan struct{}

	mu    sync.Mutex
	state State
}

// ID returns the operation instance ID.
func (h *Handle) ID() string { return h.id }

// Abort requests a cooperative abort. It returns immediately; the machine
// observes the request at its next checkpoint.
func (h *Handle) Abort(reason string) {
	h.mb.requestAbort(reason)
}

// AlertUpdate queues an external alert correction, applied at the next
// checkpoint.
func (h *Handle) AlertUpdate(delta float64, source string) {
	h.mb.queueAlert(delta, source)
}

// ConfirmTeamReady marks the team confirmed. Idempotent.
func (h *Handle) ConfirmTeamReady() {
	h.mb.confirmTeam()
}

// State returns an immutable snapshot of current state. It never mutates
// state and never blocks on phase work.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

// Await blocks until the operation reaches a terminal phase or ctx ends.
func (h *Handle) Await(ctx context.Context) (State, error) {
	select {
	case <-h.done:
		return h.State(), nil
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}
}

// Done returns a channel closed when the operation reaches a terminal
// phase.
func (h *Handle) Done() <-chan struct{} { return h.done }

// mutate applies fn to the state under the handle lock. Only the run loop
// calls this; queries copy under the same lock.
func (h *Handle) mutate(fn func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.state)
}

// phase reads the current phase.
func (h *Handle) phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Phase
}

// Start validates cfg and launches the operation's run loop.
func (m *Manager) Start(ctx context.Context, cfg Config) (*Handle, error) {
	if len(cfg.Team) == 0 {
		return nil, fmt.Errorf("operation %q has no team", cfg.Name)
	}
	var share float64
	for _, member := range cfg.Team {
		if member.SharePct < 0 {
			return nil, fmt.Errorf("member %q has negative share", member.Name)
		}
		share += member.SharePct
	}
	if share > 100+1e-9 {
		return nil, fmt.Errorf("team shares sum to %.2f%%, exceeding 100%%", share)
	}

	h := &Handle{
		id:   uuid.NewString(),
		mb:   newMailbox(),
		done: make(chan struct{}),
	}
	h.state = State{
		ID:        h.id,
		Name:      cfg.Name,
		Phase:     Planning,
		Budget:    cfg.Budget,
		Team:      append([]Member(nil), cfg.Team...),
		StartedAt: time.Now(),
	}

	go m.run(ctx, h, cfg)
	return h, nil
}

// run is the operation's single sequential control flow: run phase action,
// sample the mailbox, transition, repeat until terminal.
func (m *Manager) run(ctx context.Context, h *Handle, cfg Config) {
	defer close(h.done)
	log := m.log.With().Str("op_id", h.id).Str("op", cfg.Name).Logger()

	for !h.phase().Terminal() {
		current := h.phase()

		actionErr := m.runAction(ctx, log, h, cfg, current)

		// Checkpoint: signal effects apply only here, never mid-action.
		m.applyAlertCorrections(log, h)

		if actionErr != nil {
			if errors.Is(actionErr, errCompromised) {
				m.compromise(ctx, log, h)
				break
			}
			if adapter.IsBusiness(actionErr) {
				log.Warn().Str("phase", string(current)).Err(actionErr).Msg("phase action rejected")
			} else {
				log.Error().Str("phase", string(current)).Err(actionErr).Msg("phase action failed")
			}
			m.abortFrom(ctx, log, h, current, actionErr.Error(), TriggerFailure)
			break
		}

		if reason, requested := h.mb.abort(); requested {
			m.abortFrom(ctx, log, h, current, reason, TriggerSignal)
			break
		}
		if err := ctx.Err(); err != nil {
			m.abortFrom(ctx, log, h, current, err.Error(), TriggerSignal)
			break
		}

		trigger := TriggerLoop
		reason := "phase action completed"
		if current == TeamAssembly {
			// The single cooperative wait: confirmed OR abort, bounded.
			outcome := m.waitTeamConfirm(ctx, log, h)
			if outcome == confirmAborted {
				abortReason, _ := h.mb.abort()
				m.abortFrom(ctx, log, h, current, abortReason, TriggerSignal)
				break
			}
			if outcome == confirmTimedOut {
				trigger = TriggerTimeout
				reason = "confirmation window elapsed, proceeding"
			} else {
				trigger = TriggerSignal
				reason = "team confirmed ready"
			}
		}

		next, err := m.graph.Next(current)
		if err != nil {
			log.Error().Err(err).Msg("no forward successor")
			m.abortFrom(ctx, log, h, current, err.Error(), TriggerFailure)
			break
		}
		m.transition(log, h, next, reason, trigger, true)

		if next == Completed {
			m.settle(log, h, cfg)
		}
	}

	m.archive(ctx, log, h)
}

// runAction executes the phase's action. Actions are never preempted; any
// queued signal waits for the next checkpoint.
func (m *Manager) runAction(ctx context.Context, log zerolog.Logger, h *Handle, cfg Config, p Phase) error {
	log.Debug().Str("phase", string(p)).Msg("phase action started")

	switch p {
	case Planning:
		// Planning commits nothing; budget enforcement happens where the
		// money moves, in gear acquisition.
		log.Info().Float64("budget", cfg.Budget).Float64("gear_cost", cfg.GearCost).
			Int("team_size", len(cfg.Team)).Msg("operation planned")
		return nil

	case TeamAssembly:
		h.mutate(func(s *State) {
			for i := range s.Team {
				s.Team[i].Status = StatusRecruited
			}
		})
		return nil

	case GearAcquisition:
		var budget float64
		h.mu.Lock()
		budget = h.state.Budget - h.state.Spent
		h.mu.Unlock()

		spent, err := m.gear.Acquire(ctx, cfg.GearCost, budget)
		if err != nil {
			return err
		}
		h.mutate(func(s *State) { s.Spent += spent })
		return nil

	case Infiltration:
		h.mutate(func(s *State) {
			for i := range s.Team {
				s.Team[i].Status = StatusInPosition
			}
		})
		for i := 0; i < infiltrationRolls; i++ {
			roll := m.risk.AlertRoll(Infiltration)
			h.mutate(func(s *State) { s.AlertLevel += roll })
		}
		return nil

	case Execution:
		// The only source of the compromised outcome: the phase's own risk
		// rolls crossing the critical threshold.
		for i := 0; i < executionRolls; i++ {
			roll := m.risk.AlertRoll(Execution)
			var breached bool
			h.mutate(func(s *State) {
				s.AlertLevel += roll
				breached = s.AlertLevel >= CriticalAlert
			})
			if breached {
				return errCompromised
			}
		}
		return nil

	case Extraction:
		h.mutate(func(s *State) {
			for i := range s.Team {
				s.Team[i].Status = StatusExtracted
			}
		})
		return nil

	default:
		return fmt.Errorf("no action for phase %q", p)
	}
}

// confirmOutcome is the result of the team-confirmation wait.
type confirmOutcome int

const (
	confirmConfirmed confirmOutcome = iota
	confirmTimedOut
	confirmAborted
)

// waitTeamConfirm blocks for "team confirmed OR abort requested" with a
// fixed timeout. Timeout means proceed as if confirmed.
func (m *Manager) waitTeamConfirm(ctx context.Context, log zerolog.Logger, h *Handle) confirmOutcome {
	timer := time.NewTimer(m.confirmTimeout)
	defer timer.Stop()

	select {
	case <-h.mb.confirmCh:
		return confirmConfirmed
	case <-h.mb.abortCh:
		return confirmAborted
	case <-timer.C:
		log.Warn().Dur("timeout", m.confirmTimeout).Msg("team confirmation timed out, proceeding")
		return confirmTimedOut
	case <-ctx.Done():
		return confirmAborted
	}
}

// applyAlertCorrections drains externally queued alert deltas. This is the
// only path by which the alert level may decrease.
func (m *Manager) applyAlertCorrections(log zerolog.Logger, h *Handle) {
	for _, adj := range h.mb.drainAlerts() {
		h.mutate(func(s *State) {
			s.AlertLevel += adj.Delta
			if s.AlertLevel < 0 {
				s.AlertLevel = 0
			}
			alertLevel.Set(s.AlertLevel)
		})
		log.Info().Float64("delta", adj.Delta).Str("source", adj.Source).Msg("alert level adjusted")
	}
}

// abortFrom runs the abort-compensation policy for the phase captured at
// the moment of abort, then takes the universal escape edge.
func (m *Manager) abortFrom(ctx context.Context, log zerolog.Logger, h *Handle, captured Phase, reason string, trigger Trigger) {
	m.compensate(ctx, log, h, captured)
	h.mutate(func(s *State) { s.AbortReason = reason })
	m.transition(log, h, Aborted, reason, trigger, false)
}

// compromise records the fatal execution-phase outcome. It shares the
// abort-compensation path with signal aborts while recording a distinct
// terminal phase; the two causes stay separable in the history.
func (m *Manager) compromise(ctx context.Context, log zerolog.Logger, h *Handle) {
	m.compensate(ctx, log, h, Execution)
	h.mutate(func(s *State) { s.Fatal = true })
	m.transition(log, h, Compromised, "critical alert threshold breached", TriggerRiskRoll, false)
}

// compensate unwinds an interrupted operation according to the phase it
// was captured in.
func (m *Manager) compensate(ctx context.Context, log zerolog.Logger, h *Handle, captured Phase) {
	switch captured {
	case Planning, TeamAssembly:
		// Nothing committed yet: release the team, no financial rollback.
		h.mutate(func(s *State) {
			for i := range s.Team {
				s.Team[i].Status = StatusExtracted
			}
		})

	case GearAcquisition:
		var spent float64
		h.mu.Lock()
		spent = h.state.Spent
		h.mu.Unlock()

		if spent > 0 {
			recovered, err := m.gear.Resell(ctx, spent)
			if err != nil {
				// Compensation failures are recorded, never escalated.
				log.Error().Err(err).Msg("gear resale failed during abort")
			} else {
				h.mutate(func(s *State) { s.Recovered += recovered })
				log.Info().Float64("recovered", recovered).Msg("gear resold during abort")
			}
		}
		h.mutate(func(s *State) {
			for i := range s.Team {
				s.Team[i].Status = StatusExtracted
			}
		})

	case Infiltration, Execution:
		// Members are in the field: each gets an independent emergency
		// extraction whose odds degrade as the alert level rises.
		h.mutate(func(s *State) {
			for i := range s.Team {
				if m.risk.ExtractionRoll(s.Team[i], s.AlertLevel) {
					s.Team[i].Status = StatusExtracted
				} else {
					s.Team[i].Status = StatusMIA
					log.Warn().Str("member", s.Team[i].Name).Msg("emergency extraction failed, member missing")
				}
			}
		})
	}
}

// settle distributes the final payout on the completed terminal phase.
// Shares of missing members are withheld, not redistributed.
func (m *Manager) settle(log zerolog.Logger, h *Handle, cfg Config) {
	h.mutate(func(s *State) {
		payout := cfg.BasePayout
		if s.AlertLevel > AlertBaseline {
			payout -= cfg.BasePayout * PenaltyRate * (s.AlertLevel - AlertBaseline)
		}
		if payout < 0 {
			payout = 0
		}

		s.Payouts = make(map[string]float64)
		var distributed float64
		for _, member := range s.Team {
			if member.Status != StatusExtracted {
				continue
			}
			cut := payout * member.SharePct / 100
			s.Payouts[member.Name] = cut
			distributed += cut
		}
		settledPayout.Add(distributed)
		log.Info().Float64("payout", payout).Float64("distributed", distributed).Msg("operation settled")
	})
}

// transition validates the requested edge, appends the immutable history
// record, and moves the machine. countAction marks the record as closing a
// completed phase action; the counter and the record move together so a
// snapshot never sees one without the other.
func (m *Manager) transition(log zerolog.Logger, h *Handle, to Phase, reason string, trigger Trigger, countAction bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	from := h.state.Phase
	if !m.graph.CanTransition(from, to) {
		// Unreachable by construction; surfacing it beats corrupting state.
		log.Error().Str("from", string(from)).Str("to", string(to)).Msg("illegal phase transition requested")
		return
	}

	h.state.History = append(h.state.History, TransitionRecord{
		From:    from,
		To:      to,
		At:      time.Now(),
		Reason:  reason,
		Trigger: trigger,
	})
	h.state.Phase = to
	if countAction {
		h.state.ActionsCompleted++
	}
	if to.Terminal() {
		h.state.FinishedAt = time.Now()
		terminals.WithLabelValues(string(to)).Inc()
	}
	transitions.WithLabelValues(string(from), string(to)).Inc()
	log.Info().Str("from", string(from)).Str("to", string(to)).Str("trigger", string(trigger)).Msg("phase transition")
}

// archive saves the terminal record.
func (m *Manager) archive(ctx context.Context, log zerolog.Logger, h *Handle) {
	if err := m.store.Save(ctx, h.State()); err != nil {
		log.Warn().Err(err).Msg("failed to archive operation state")
	}
}

// Transition validates and applies an explicit phase transition. It exists
// for callers embedding the machine in a larger flow; the run loop uses the
// same legality rules.
func (m *Manager) Transition(h *Handle, to Phase, reason string, trigger Trigger) error {
	h.mu.Lock()
	from := h.state.Phase
	h.mu.Unlock()
	if !m.graph.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	m.transition(m.log, h, to, reason, trigger, false)
	return nil
}
