package caper

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType enumerates the lifecycle events of a step within one run.
type EventType int

const (
	EventStepStarted EventType = iota
	EventStepSucceeded
	EventStepFailed
	EventRecoveryStarted
	EventRecoveryFinished
	EventRecoveryFailed
	EventCompStarted
	EventCompFinished
	EventCompFailed
)

func (t EventType) String() string {
	switch t {
	case EventStepStarted:
		return "step_started"
	case EventStepSucceeded:
		return "step_succeeded"
	case EventStepFailed:
		return "step_failed"
	case EventRecoveryStarted:
		return "recovery_started"
	case EventRecoveryFinished:
		return "recovery_finished"
	case EventRecoveryFailed:
		return "recovery_failed"
	case EventCompStarted:
		return "comp_started"
	case EventCompFinished:
		return "comp_finished"
	case EventCompFailed:
		return "comp_failed"
	default:
		return fmt.Sprintf("unknown EventType: %d", int(t))
	}
}

// Event is one entry in a run's event log.
type Event struct {
	SagaID string
	Step   StepName
	Type   EventType
	At     time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%-24s %s", e.Step, e.Type)
}

// stepStatus is the per-step position in the event legality table.
type stepStatus int

const (
	statusNeverStarted stepStatus = iota
	statusStarted
	statusSucceeded
	statusFailed
	statusRecovering
	statusRecovered
	statusCompStarted
	statusCompFinished
	statusCompFailed
)

// next returns the status after recording the given event, or an error when
// the event is illegal from the current status.
func (s stepStatus) next(eventType EventType) (stepStatus, error) {
	switch s {
	case statusNeverStarted:
		if eventType == EventStepStarted {
			return statusStarted, nil
		}
	case statusStarted:
		switch eventType {
		case EventStepSucceeded:
			return statusSucceeded, nil
		case EventStepFailed:
			return statusFailed, nil
		}
	case statusFailed:
		if eventType == EventRecoveryStarted {
			return statusRecovering, nil
		}
	case statusRecovering:
		switch eventType {
		case EventRecoveryFinished, EventRecoveryFailed:
			return statusRecovered, nil
		}
	case statusSucceeded:
		if eventType == EventCompStarted {
			return statusCompStarted, nil
		}
	case statusCompStarted:
		switch eventType {
		case EventCompFinished:
			return statusCompFinished, nil
		case EventCompFailed:
			return statusCompFailed, nil
		}
	}
	return statusNeverStarted, fmt.Errorf(
		"illegal event %s for current step status %d", eventType, int(s))
}

// RunLog is the append-only event log for one saga run. Recording enforces
// the legal per-step event order, which in turn guarantees that each step is
// compensated at most once and only after it succeeded.
type RunLog struct {
	mu        sync.Mutex
	sagaID    string
	unwinding bool
	events    []Event
	status    map[StepName]stepStatus
}

// NewRunLog creates an empty log for the given run.
func NewRunLog(sagaID string) *RunLog {
	return &RunLog{
		sagaID: sagaID,
		status: make(map[StepName]stepStatus),
	}
}

// Record appends an event, validating it against the step's current status.
func (l *RunLog) Record(step StepName, eventType EventType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := l.status[step].next(eventType)
	if err != nil {
		return fmt.Errorf("step %q: %w", step, err)
	}

	switch eventType {
	case EventStepFailed, EventCompStarted:
		l.unwinding = true
	}

	l.status[step] = next
	l.events = append(l.events, Event{
		SagaID: l.sagaID,
		Step:   step,
		Type:   eventType,
		At:     time.Now(),
	})
	return nil
}

// Unwinding reports whether the run has entered its compensation phase.
func (l *RunLog) Unwinding() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unwinding
}

// Events returns a copy of the recorded events in order.
func (l *RunLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// String renders the log for debugging.
func (l *RunLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("RUN LOG:\n")
	sb.WriteString(fmt.Sprintf("saga id:   %s\n", l.sagaID))
	direction := "forward"
	if l.unwinding {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction: %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(l.events)))
	for i, event := range l.events {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, event.String()))
	}
	return sb.String()
}
