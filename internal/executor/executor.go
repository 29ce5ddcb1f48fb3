// Package executor defines the outbound interface to the external execution
// service that performs actual value transfer, and provides an HTTP client
// and an in-process stub implementation.
package executor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"agentpay/internal/domain"
)

// TriggerReceipt is the executor's confirmation of a completed transfer.
type TriggerReceipt struct {
	TransactionHash string
	PaidAt          time.Time
}

// Client abstracts the executor service. All three operations are remote
// calls with network failure modes; any non-success response surfaces as a
// domain.ExecutorError, except an upstream insufficient-balance report which
// is reclassified as domain.InsufficientFundsError.
type Client interface {
	// Name returns the client identifier (e.g. "http", "stub").
	Name() string

	// CreateOnChain registers the invoice with the execution service.
	CreateOnChain(ctx context.Context, spec domain.CreateSpec) error

	// TriggerPayment asks the execution service to pay the invoice. It must
	// be called at most once per successful payment; callers are responsible
	// for the at-most-once dispatch guarantee.
	TriggerPayment(ctx context.Context, id string) (*TriggerReceipt, error)

	// GetBalance returns the executor wallet's available balance.
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}
