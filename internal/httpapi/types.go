package httpapi

import (
	"github.com/shopspring/decimal"

	"agentpay/internal/domain"
)

// CreateInvoiceRequest is the body of POST /invoices. Amount and Condition
// are optional; the orchestrator applies defaults.
type CreateInvoiceRequest struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipientAddress"`
	Condition        string          `json:"condition,omitempty"`
}

// CreateInvoiceResponse wraps the registered invoice record.
type CreateInvoiceResponse struct {
	Message string         `json:"message"`
	Invoice domain.Invoice `json:"invoice"`
}

// VoiceCreateResponse extends creation with the transcript when one exists.
type VoiceCreateResponse struct {
	Message         string         `json:"message"`
	Invoice         domain.Invoice `json:"invoice"`
	TranscribedText string         `json:"transcribedText,omitempty"`
}

// MonitorResponse is the body of POST /invoices/{id}/monitor.
type MonitorResponse struct {
	InvoiceID string               `json:"invoiceId"`
	Status    domain.InvoiceStatus `json:"status"`
	Detail    string               `json:"detail,omitempty"`
}

// SignalResponse is the body of POST /conditions/{id}/signal.
type SignalResponse struct {
	InvoiceID       string               `json:"invoiceId"`
	Outcome         string               `json:"outcome"`
	Status          domain.InvoiceStatus `json:"status,omitempty"`
	TransactionHash string               `json:"transactionHash,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
