package caper

import "fmt"

// CompensationOutcome records one compensation attempt during the unwind.
type CompensationOutcome struct {
	Step     StepName `json:"step"`
	Refunded float64  `json:"refunded"`
	Failed   bool     `json:"failed"`
	Error    string   `json:"error,omitempty"`
}

// String renders the outcome the way operators read it in run summaries.
func (o CompensationOutcome) String() string {
	if o.Failed {
		return fmt.Sprintf("%s (FAILED)", o.Step)
	}
	return string(o.Step)
}

// Result is the structured outcome of one saga run. Execute always returns
// one, success or not; it is the only channel through which failures are
// reported to the caller.
type Result struct {
	SagaID        string  `json:"saga_id"`
	SagaName      SagaName `json:"saga_name"`
	Success       bool    `json:"success"`
	TotalCost     float64 `json:"total_cost"`
	TotalRefunded float64 `json:"total_refunded"`

	// FailedAtStep and FailureReason are set only when Success is false.
	FailedAtStep  StepName `json:"failed_at_step,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`

	// CompensationsExecuted lists every compensation attempted, in the
	// order it ran (reverse of completion order). Entries are present even
	// when the compensation itself failed.
	CompensationsExecuted []CompensationOutcome `json:"compensations_executed,omitempty"`

	// RecoveryAttempted is true when the failing step's emergency recovery
	// action ran before the unwind; RecoveryError carries its failure, which
	// never blocks the unwind.
	RecoveryAttempted bool   `json:"recovery_attempted,omitempty"`
	RecoveryError     string `json:"recovery_error,omitempty"`

	// NotificationSent reports whether the single outcome notification
	// attempt succeeded. Its failure never changes the rest of the result.
	NotificationSent bool `json:"notification_sent"`

	// DomainResult is the output of the final step on success.
	DomainResult any `json:"domain_result,omitempty"`
}
