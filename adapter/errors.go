package adapter

import (
	"errors"
	"fmt"
)

// Code identifies a business rejection kind so callers can branch on it
// without string matching.
type Code string

const (
	CodeStockUnavailable Code = "STOCK_UNAVAILABLE"
	CodeNoSlotAvailable  Code = "NO_SLOT_AVAILABLE"
	CodePaymentBlocked   Code = "PAYMENT_BLOCKED"
	CodeIncompatible     Code = "INCOMPATIBLE"
	CodeBudgetExceeded   Code = "BUDGET_EXCEEDED"
	CodeNotFound         Code = "NOT_FOUND"
)

// BusinessError is a permanent domain rejection. It must never be retried:
// the subsystem has evaluated the request and said no.
type BusinessError struct {
	Code Code
	Op   string
	Msg  string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Msg, e.Code)
}

// Business constructs a BusinessError for the given operation.
func Business(op string, code Code, format string, args ...any) error {
	return &BusinessError{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// TransientError is a failure the adapter believes may succeed on retry
// (timeouts, momentary unavailability). Retry budget applies only here.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable adapter failure.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable at the adapter boundary.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsBusiness reports whether err is a permanent domain rejection.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// BusinessCode extracts the rejection code from err, or "" if err is not a
// BusinessError.
func BusinessCode(err error) Code {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
