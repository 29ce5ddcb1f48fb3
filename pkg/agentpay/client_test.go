package agentpay

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"agentpay/internal/engine"
	"agentpay/internal/executor"
	"agentpay/internal/httpapi"
	"agentpay/internal/store"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	invoices := store.NewFileStore(filepath.Join(t.TempDir(), "invoice_data.json"), log)
	registry := store.NewMemoryRegistry()
	stub := executor.NewStubClient(decimal.NewFromInt(100))
	guard := engine.NewSolvencyGuard(stub, decimal.RequireFromString("0.1"), log)
	orch := engine.NewOrchestrator(invoices, registry, guard, stub, log)
	api := httpapi.NewServer(orch, nil, nil, "0xdefault", log)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:5050"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientPaymentFlow(t *testing.T) {
	srv := newTestBackend(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	inv, err := c.CreateInvoice(ctx, CreateInvoiceRequest{
		ID:               "INV-SDK-1",
		Amount:           decimal.RequireFromString("2.5"),
		RecipientAddress: "0xabc",
	})
	if err != nil {
		t.Fatalf("CreateInvoice() error: %v", err)
	}
	if inv.Status != "PENDING" {
		t.Errorf("status = %q, want PENDING", inv.Status)
	}

	mres, err := c.Monitor(ctx, "INV-SDK-1")
	if err != nil {
		t.Fatalf("Monitor() error: %v", err)
	}
	if mres.Status != "MONITORING" {
		t.Errorf("status = %q, want MONITORING", mres.Status)
	}

	sres, err := c.Signal(ctx, "INV-SDK-1")
	if err != nil {
		t.Fatalf("Signal() error: %v", err)
	}
	if sres.Outcome != "paid" {
		t.Errorf("outcome = %q, want paid", sres.Outcome)
	}
	if sres.TransactionHash == "" {
		t.Error("paid result has empty transactionHash")
	}

	got, err := c.GetInvoice(ctx, "INV-SDK-1")
	if err != nil {
		t.Fatalf("GetInvoice() error: %v", err)
	}
	if got.Status != "PAID" {
		t.Errorf("fetched status = %q, want PAID", got.Status)
	}

	list, err := c.ListInvoices(ctx)
	if err != nil {
		t.Fatalf("ListInvoices() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListInvoices() = %d invoices, want 1", len(list))
	}
	if list[0].Status != "PAID" {
		t.Errorf("listed status = %q, want PAID", list[0].Status)
	}

	if err := c.Health(ctx); err != nil {
		t.Errorf("Health() error: %v", err)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := newTestBackend(t)
	c := NewClient(srv.URL)

	_, err := c.Monitor(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("Monitor() on unknown invoice: expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message == "" {
		t.Error("APIError has empty message")
	}
}
