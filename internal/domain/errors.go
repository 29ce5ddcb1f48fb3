package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a missing or malformed field in a request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an attempt to create an invoice whose ID is already
// registered. Status carries the existing invoice's state for reporting.
type ConflictError struct {
	ID     string
	Status InvoiceStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invoice %s already exists (status %s)", e.ID, e.Status)
}

// NotFoundError reports an operation on an unknown invoice ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("invoice %s not found", e.ID)
}

// InsufficientFundsError reports that the executor wallet cannot cover a
// requested amount, either from the local solvency pre-check or reclassified
// from an executor response. Balance is the last observed wallet balance.
type InsufficientFundsError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, required %s", e.Balance, e.Required)
}

// ExecutorError reports a failed remote call to the executor service,
// including timeouts. Message carries the upstream error text when one was
// returned.
type ExecutorError struct {
	Op      string // "create-on-chain", "trigger-payment", "check-balance"
	Message string
	Err     error
}

func (e *ExecutorError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("executor %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("executor %s: %v", e.Op, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }
