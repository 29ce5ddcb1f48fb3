// Package domain defines the core types of the agent-pay system: invoices,
// their payment lifecycle, and the error taxonomy shared across layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the payment lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusPending    InvoiceStatus = "PENDING"
	StatusMonitoring InvoiceStatus = "MONITORING"
	StatusExecuting  InvoiceStatus = "EXECUTING"
	StatusPaid       InvoiceStatus = "PAID"
)

// DefaultCondition is the release condition assumed when a creation request
// does not name one.
const DefaultCondition = "goods_shipped"

// DefaultAmount is the amount assumed when a creation request omits it.
var DefaultAmount = decimal.NewFromInt(1)

// Invoice is one pending-to-paid transfer, identified by a unique ID.
// TransactionHash and PaidAt are set together, exactly once, when the status
// becomes PAID.
type Invoice struct {
	ID               string          `json:"invoiceId"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipientAddress"`
	Condition        string          `json:"condition"`
	Status           InvoiceStatus   `json:"status"`
	TransactionHash  string          `json:"transactionHash,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// CreateSpec is a request to register a new invoice. Amount and Condition
// may be zero-valued; Normalize fills in the defaults.
type CreateSpec struct {
	ID               string
	Amount           decimal.Decimal
	RecipientAddress string
	Condition        string
}

// Normalize applies the default amount and condition to unset fields.
func (s *CreateSpec) Normalize() {
	if s.Amount.IsZero() {
		s.Amount = DefaultAmount
	}
	if s.Condition == "" {
		s.Condition = DefaultCondition
	}
}
