// Package engine contains the payment orchestration state machine and the
// solvency pre-check that gates invoice creation.
package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"agentpay/internal/executor"
)

// SolvencyGuard decides whether a requested amount can safely be committed,
// based on the executor wallet's balance plus a fixed reserve buffer for
// incidental fees. The check is advisory: the executor's create call is the
// real authority on funds.
type SolvencyGuard struct {
	client        executor.Client
	reserveBuffer decimal.Decimal
	log           *slog.Logger
}

// NewSolvencyGuard creates a SolvencyGuard with the given reserve buffer.
func NewSolvencyGuard(client executor.Client, reserveBuffer decimal.Decimal, log *slog.Logger) *SolvencyGuard {
	return &SolvencyGuard{
		client:        client,
		reserveBuffer: reserveBuffer,
		log:           log,
	}
}

// Required returns the total balance needed to commit the given amount.
func (g *SolvencyGuard) Required(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(g.reserveBuffer)
}

// Check reports whether the wallet can cover amount plus the reserve buffer,
// along with the observed balance so callers can report it. A failed balance
// query is treated as not solvent with a zero balance (fail closed).
func (g *SolvencyGuard) Check(ctx context.Context, amount decimal.Decimal) (bool, decimal.Decimal) {
	balance, err := g.client.GetBalance(ctx)
	if err != nil {
		g.log.Warn("balance query failed, treating as not solvent", "error", err)
		return false, decimal.Zero
	}

	required := g.Required(amount)
	if balance.LessThan(required) {
		g.log.Info("insufficient balance", "balance", balance, "required", required)
		return false, balance
	}
	return true, balance
}
