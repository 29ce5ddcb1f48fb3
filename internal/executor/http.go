package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agentpay/internal/domain"
	"agentpay/internal/util"
)

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// insufficientBalanceMarker is the error marker documented by the executor
// contract. Matching it here is the only place the substring classification
// survives; everything past this boundary works with typed errors.
const insufficientBalanceMarker = "INSUFFICIENT_BALANCE"

const balanceRetryAttempts = 3

// HTTPClient implements Client against the executor service's HTTP API:
// POST /api/create-on-chain, POST /api/trigger-payment, GET /api/check-balance.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewHTTPClient creates an HTTPClient for the executor at baseURL. Every
// call is bounded by timeout. rateLimitPerMin caps outbound calls; zero
// disables the limiter.
func NewHTTPClient(baseURL string, timeout time.Duration, rateLimitPerMin int, log *slog.Logger) *HTTPClient {
	var limiter *util.RateLimiter
	if rateLimitPerMin > 0 {
		limiter = util.NewRateLimiter(rateLimitPerMin)
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log,
	}
}

// Name returns "http".
func (c *HTTPClient) Name() string { return "http" }

type createRequest struct {
	InvoiceID        string          `json:"invoiceId"`
	Amount           decimal.Decimal `json:"amount"`
	RecipientAddress string          `json:"recipientAddress"`
	Condition        string          `json:"condition"`
}

type triggerRequest struct {
	InvoiceID string `json:"invoiceId"`
}

type triggerResponse struct {
	TransactionHash string `json:"transactionHash"`
	PaidAt          string `json:"paidAt"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateOnChain registers the invoice with the execution service.
func (c *HTTPClient) CreateOnChain(ctx context.Context, spec domain.CreateSpec) error {
	body := createRequest{
		InvoiceID:        spec.ID,
		Amount:           spec.Amount,
		RecipientAddress: spec.RecipientAddress,
		Condition:        spec.Condition,
	}
	_, err := c.post(ctx, "create-on-chain", c.baseURL+"/api/create-on-chain", body, http.StatusCreated)
	return err
}

// TriggerPayment asks the execution service to pay the invoice.
func (c *HTTPClient) TriggerPayment(ctx context.Context, id string) (*TriggerReceipt, error) {
	data, err := c.post(ctx, "trigger-payment", c.baseURL+"/api/trigger-payment", triggerRequest{InvoiceID: id}, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp triggerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &domain.ExecutorError{Op: "trigger-payment", Err: fmt.Errorf("decoding response: %w", err)}
	}

	paidAt, err := time.Parse(time.RFC3339Nano, resp.PaidAt)
	if err != nil {
		// The payment went through; don't fail the whole operation over a
		// timestamp format.
		c.log.Warn("unparseable paidAt from executor", "value", resp.PaidAt, "error", err)
		paidAt = time.Now().UTC()
	}
	return &TriggerReceipt{TransactionHash: resp.TransactionHash, PaidAt: paidAt}, nil
}

// GetBalance returns the executor wallet's available balance. Transient
// failures are retried; the final error surfaces as ExecutorError.
func (c *HTTPClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := util.Retry(ctx, balanceRetryAttempts, 200*time.Millisecond, func() error {
		if err := c.wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/check-balance", nil)
		if err != nil {
			return err
		}
		res, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return err
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", res.StatusCode, upstreamMessage(data))
		}
		var resp balanceResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		balance = resp.Balance
		return nil
	})
	if err != nil {
		return decimal.Zero, &domain.ExecutorError{Op: "check-balance", Err: err}
	}
	return balance, nil
}

// post sends a JSON body and returns the response body on the expected
// status, or a classified error otherwise.
func (c *HTTPClient) post(ctx context.Context, op, url string, body any, wantStatus int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &domain.ExecutorError{Op: op, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.ExecutorError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.ExecutorError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ExecutorError{Op: op, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &domain.ExecutorError{Op: op, Err: err}
	}

	if res.StatusCode != wantStatus {
		msg := upstreamMessage(data)
		if strings.Contains(msg, insufficientBalanceMarker) {
			return nil, &domain.InsufficientFundsError{}
		}
		return nil, &domain.ExecutorError{Op: op, Message: msg}
	}
	return data, nil
}

// wait blocks on the outbound rate limiter when one is configured.
func (c *HTTPClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// upstreamMessage extracts the "error" field from an executor error body,
// falling back to the raw body text.
func upstreamMessage(data []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(data))
}
