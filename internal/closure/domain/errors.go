package closure

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrConcurrentModification indicates stored state moved since it was read.
	ErrConcurrentModification = errors.New("closure: concurrent modification")
	// ErrRecordNotFound indicates an unknown closure id.
	ErrRecordNotFound = errors.New("closure: record not found")
)

// ValidationError is a structural precondition failure that aborts the batch.
type ValidationError struct {
	Item   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Item == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Item, e.Reason)
}

// ItemProcessingError is a per-item failure inside stages 2 to 4.
type ItemProcessingError struct {
	Stage  Stage
	Item   string
	Reason string
	Err    error
}

func (e *ItemProcessingError) Error() string {
	msg := e.Item + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ItemProcessingError) Unwrap() error { return e.Err }

// ReconciliationError reports declared money that does not add up.
type ReconciliationError struct {
	Declared    decimal.Decimal
	MethodSum   decimal.Decimal
	Discrepancy decimal.Decimal
	Tolerance   decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payments: method sum %s does not match declared total %s (discrepancy %s, tolerance %s)",
		e.MethodSum.StringFixed(2), e.Declared.StringFixed(2), e.Discrepancy.StringFixed(2), e.Tolerance.String())
}

// PersistenceError wraps a failed atomic commit.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
