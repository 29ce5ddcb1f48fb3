// Package agentpay provides a Go SDK for the agentpay-server API.
package agentpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice mirrors the server's invoice representation.
type Invoice struct {
	ID               string          `json:"invoiceId"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipientAddress"`
	Condition        string          `json:"condition"`
	Status           string          `json:"status"`
	TransactionHash  string          `json:"transactionHash,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// CreateInvoiceRequest is the payload for Client.CreateInvoice.
type CreateInvoiceRequest struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipientAddress"`
	Condition        string          `json:"condition,omitempty"`
}

// MonitorResult is the server's response to a monitor request.
type MonitorResult struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// SignalResult is the server's response to a condition signal.
type SignalResult struct {
	InvoiceID       string `json:"invoiceId"`
	Outcome         string `json:"outcome"`
	Status          string `json:"status,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agentpay: server returned %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the agentpay-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new agentpay API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateInvoice registers a new invoice and returns its initial state.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	var resp struct {
		Invoice Invoice `json:"invoice"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Invoice, nil
}

// Monitor moves an invoice into active condition monitoring.
func (c *Client) Monitor(ctx context.Context, invoiceID string) (*MonitorResult, error) {
	var resp MonitorResult
	path := fmt.Sprintf("/invoices/%s/monitor", invoiceID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signal reports that an invoice's release condition has been met.
func (c *Client) Signal(ctx context.Context, invoiceID string) (*SignalResult, error) {
	var resp SignalResult
	path := fmt.Sprintf("/conditions/%s/signal", invoiceID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetInvoice retrieves a single invoice by ID.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+invoiceID, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoices retrieves all invoices.
func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var resp []Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Health checks server availability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(data)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
