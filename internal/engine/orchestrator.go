package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agentpay/internal/domain"
	"agentpay/internal/executor"
	"agentpay/internal/store"
)

// Outcome classifies the result of a condition signal.
type Outcome string

const (
	// OutcomeAwaitingInvoice: signal recorded, no invoice exists yet.
	OutcomeAwaitingInvoice Outcome = "recorded-awaiting-invoice"
	// OutcomeAwaitingMonitoring: signal recorded, invoice exists but
	// monitoring has not begun.
	OutcomeAwaitingMonitoring Outcome = "recorded-awaiting-monitoring"
	// OutcomePaid: this signal released the payment.
	OutcomePaid Outcome = "paid"
	// OutcomeExecuting: a payment is already in flight.
	OutcomeExecuting Outcome = "executing"
	// OutcomeAlreadyPaid: the invoice was paid earlier (idempotent success).
	OutcomeAlreadyPaid Outcome = "already-paid"
)

// TriggerResult reports what a condition signal did. Invoice is nil when no
// matching invoice exists yet.
type TriggerResult struct {
	Outcome Outcome
	Invoice *domain.Invoice
}

// MonitorResult reports the state after BeginMonitoring. Triggered is
// non-nil when a pre-confirmed condition released payment immediately.
type MonitorResult struct {
	Invoice   *domain.Invoice
	Triggered *TriggerResult
}

// Orchestrator is the payment state machine. It owns all writes to the
// invoice store and serializes transitions per invoice ID, so that at most
// one caller can win the MONITORING → EXECUTING edge and issue the remote
// trigger call.
type Orchestrator struct {
	invoices store.InvoiceStore
	registry store.ConditionRegistry
	guard    *SolvencyGuard
	exec     executor.Client
	locks    *keyedLocks
	log      *slog.Logger
}

// NewOrchestrator creates an Orchestrator wired with the given dependencies.
func NewOrchestrator(
	invoices store.InvoiceStore,
	registry store.ConditionRegistry,
	guard *SolvencyGuard,
	exec executor.Client,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		invoices: invoices,
		registry: registry,
		guard:    guard,
		exec:     exec,
		locks:    newKeyedLocks(),
		log:      log,
	}
}

// CreateInvoice registers a new invoice: conflict check, advisory solvency
// pre-check, local insert with status PENDING, then the remote create call.
// A remote failure deletes the just-inserted record so no partial invoice
// persists.
func (o *Orchestrator) CreateInvoice(ctx context.Context, spec domain.CreateSpec) (*domain.Invoice, error) {
	if spec.ID == "" {
		return nil, &domain.ValidationError{Field: "invoiceId", Reason: "required"}
	}
	spec.Normalize()

	unlock := o.locks.acquire(spec.ID)
	defer unlock()

	existing, err := o.invoices.Get(ctx, spec.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up invoice %s: %w", spec.ID, err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{ID: spec.ID, Status: existing.Status}
	}

	solvent, balance := o.guard.Check(ctx, spec.Amount)
	if !solvent {
		return nil, &domain.InsufficientFundsError{
			Balance:  balance,
			Required: o.guard.Required(spec.Amount),
		}
	}

	inv := &domain.Invoice{
		ID:               spec.ID,
		Amount:           spec.Amount,
		RecipientAddress: spec.RecipientAddress,
		Condition:        spec.Condition,
		Status:           domain.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := o.invoices.Insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("inserting invoice %s: %w", spec.ID, err)
	}
	o.log.Info("invoice registered", "invoiceId", inv.ID, "amount", inv.Amount, "status", inv.Status)

	if err := o.exec.CreateOnChain(ctx, spec); err != nil {
		// Rollback: no partial invoice persists after a remote failure.
		if derr := o.invoices.Delete(ctx, spec.ID); derr != nil {
			o.log.Error("rollback delete failed", "invoiceId", spec.ID, "error", derr)
		}
		o.log.Warn("on-chain create failed, invoice rolled back", "invoiceId", spec.ID, "error", err)

		// The local pre-check passed but the executor still reported
		// insufficient balance: surface the remote verdict with the balance
		// we observed.
		var insufficient *domain.InsufficientFundsError
		if errors.As(err, &insufficient) {
			insufficient.Balance = balance
			insufficient.Required = o.guard.Required(spec.Amount)
			return nil, insufficient
		}
		return nil, err
	}

	return inv, nil
}

// BeginMonitoring moves a PENDING invoice to MONITORING (a no-op for any
// later state), then fires the payment immediately if the condition for the
// ID was already signalled.
func (o *Orchestrator) BeginMonitoring(ctx context.Context, id string) (*MonitorResult, error) {
	unlock := o.locks.acquire(id)
	defer unlock()

	inv, err := o.invoices.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up invoice %s: %w", id, err)
	}
	if inv == nil {
		return nil, &domain.NotFoundError{ID: id}
	}

	if inv.Status == domain.StatusPending {
		inv.Status = domain.StatusMonitoring
		if err := o.invoices.Update(ctx, inv); err != nil {
			return nil, fmt.Errorf("updating invoice %s: %w", id, err)
		}
		o.log.Info("monitoring started", "invoiceId", id)
	}

	confirmed, err := o.registry.Contains(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking condition registry for %s: %w", id, err)
	}
	if confirmed {
		o.log.Info("condition pre-confirmed, releasing payment now", "invoiceId", id)
		res, err := o.triggerLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		return &MonitorResult{Invoice: res.Invoice, Triggered: res}, nil
	}

	return &MonitorResult{Invoice: inv}, nil
}

// Trigger handles a condition signal for the given ID. The signal is always
// recorded in the condition registry first, whether or not an invoice
// exists; this is what decouples signal arrival order from the invoice
// lifecycle. Only an invoice observed in MONITORING initiates a remote
// payment call.
func (o *Orchestrator) Trigger(ctx context.Context, id string) (*TriggerResult, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "invoiceId", Reason: "required"}
	}

	unlock := o.locks.acquire(id)
	defer unlock()

	return o.triggerLocked(ctx, id)
}

// triggerLocked implements Trigger. The per-ID lock must be held; it stays
// held across the remote trigger call, so concurrent signals for the same ID
// observe EXECUTING or PAID instead of double-spending.
func (o *Orchestrator) triggerLocked(ctx context.Context, id string) (*TriggerResult, error) {
	if err := o.registry.Add(ctx, id); err != nil {
		return nil, fmt.Errorf("recording condition for %s: %w", id, err)
	}

	inv, err := o.invoices.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up invoice %s: %w", id, err)
	}

	switch {
	case inv == nil:
		o.log.Info("condition recorded before invoice creation", "invoiceId", id)
		return &TriggerResult{Outcome: OutcomeAwaitingInvoice}, nil

	case inv.Status == domain.StatusPending:
		o.log.Info("condition recorded before monitoring started", "invoiceId", id)
		return &TriggerResult{Outcome: OutcomeAwaitingMonitoring, Invoice: inv}, nil

	case inv.Status == domain.StatusMonitoring:
		return o.executePayment(ctx, inv)

	case inv.Status == domain.StatusExecuting:
		return &TriggerResult{Outcome: OutcomeExecuting, Invoice: inv}, nil

	default: // PAID
		return &TriggerResult{Outcome: OutcomeAlreadyPaid, Invoice: inv}, nil
	}
}

// executePayment drives the MONITORING → EXECUTING → PAID path, reverting to
// MONITORING when the remote call fails so a later signal can retry.
func (o *Orchestrator) executePayment(ctx context.Context, inv *domain.Invoice) (*TriggerResult, error) {
	inv.Status = domain.StatusExecuting
	if err := o.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("updating invoice %s: %w", inv.ID, err)
	}
	o.log.Info("executing payment", "invoiceId", inv.ID)

	receipt, err := o.exec.TriggerPayment(ctx, inv.ID)
	if err != nil {
		inv.Status = domain.StatusMonitoring
		if uerr := o.invoices.Update(ctx, inv); uerr != nil {
			o.log.Error("revert to MONITORING failed", "invoiceId", inv.ID, "error", uerr)
		}
		o.log.Warn("payment execution failed, reverted to MONITORING", "invoiceId", inv.ID, "error", err)
		return nil, err
	}

	inv.Status = domain.StatusPaid
	inv.TransactionHash = receipt.TransactionHash
	paidAt := receipt.PaidAt
	inv.PaidAt = &paidAt
	if err := o.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("updating invoice %s: %w", inv.ID, err)
	}
	o.log.Info("invoice paid", "invoiceId", inv.ID, "transactionHash", inv.TransactionHash)

	return &TriggerResult{Outcome: OutcomePaid, Invoice: inv}, nil
}

// ListInvoices returns all invoice records.
func (o *Orchestrator) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	return o.invoices.List(ctx)
}

// GetInvoice returns a single invoice, or a NotFoundError.
func (o *Orchestrator) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := o.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &domain.NotFoundError{ID: id}
	}
	return inv, nil
}
