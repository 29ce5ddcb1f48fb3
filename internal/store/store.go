// Package store defines storage contracts for invoice records and condition
// signals, with a JSON-file backend and a SQLite backend.
package store

import (
	"context"

	"agentpay/internal/domain"
)

// InvoiceStore persists invoice records keyed by invoice ID. The payment
// orchestrator is the only writer.
type InvoiceStore interface {
	// Get retrieves a single invoice by its ID. It returns (nil, nil) when
	// no record exists for the ID.
	Get(ctx context.Context, id string) (*domain.Invoice, error)

	// Insert adds a new invoice record.
	Insert(ctx context.Context, inv *domain.Invoice) error

	// Update persists changes to an existing invoice record.
	Update(ctx context.Context, inv *domain.Invoice) error

	// Delete removes the record for the given ID.
	Delete(ctx context.Context, id string) error

	// List returns all invoice records, ordered by creation time.
	List(ctx context.Context) ([]domain.Invoice, error)

	// Close releases any underlying resources.
	Close() error
}

// ConditionRegistry records invoice IDs whose release condition has fired.
// Membership is monotonic: IDs are only ever added, never removed, and an ID
// may be recorded before any matching invoice exists.
type ConditionRegistry interface {
	// Add records that the condition for the given ID has been met.
	// Adding an ID that is already present is a no-op.
	Add(ctx context.Context, id string) error

	// Contains reports whether the condition for the given ID has been met.
	Contains(ctx context.Context, id string) (bool, error)
}
