package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agentpay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testInvoice(id string) *domain.Invoice {
	return &domain.Invoice{
		ID:               id,
		Amount:           decimal.RequireFromString("1"),
		RecipientAddress: "0x57211cf52b7830f08588fea975ffccaed493eef3",
		Condition:        "goods_shipped",
		Status:           domain.StatusPending,
		CreatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoice_data.json")
	ctx := context.Background()

	s := NewFileStore(path, testLogger())
	if err := s.Insert(ctx, testInvoice("INV-1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// A second store on the same file sees the persisted record.
	s2 := NewFileStore(path, testLogger())
	got, err := s2.Get(ctx, "INV-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for persisted invoice")
	}
	if got.ID != "INV-1" {
		t.Errorf("ID = %q, want %q", got.ID, "INV-1")
	}
	if !got.Amount.Equal(decimal.RequireFromString("1")) {
		t.Errorf("Amount = %s, want 1", got.Amount)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusPending)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "db.json"), testLogger())
	got, err := s.Get(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get for unknown ID = %+v, want nil", got)
	}
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	ctx := context.Background()

	s := NewFileStore(path, testLogger())
	if err := s.Insert(ctx, testInvoice("INV-2")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, "INV-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := s.Get(ctx, "INV-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("invoice still present after Delete")
	}

	// Deletion survives reload.
	s2 := NewFileStore(path, testLogger())
	got, _ = s2.Get(ctx, "INV-2")
	if got != nil {
		t.Error("deleted invoice reappeared after reload")
	}
}

func TestFileStoreWireFormat(t *testing.T) {
	// The file is a JSON array of [id, record] pairs.
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")

	s := NewFileStore(path, testLogger())
	if err := s.Insert(context.Background(), testInvoice("INV-3")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading store file: %v", err)
	}
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		t.Fatalf("store file is not an array of pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("store file has %d pairs, want 1", len(pairs))
	}
	if len(pairs[0]) != 2 {
		t.Fatalf("pair has %d elements, want 2", len(pairs[0]))
	}
	var id string
	if err := json.Unmarshal(pairs[0][0], &id); err != nil {
		t.Fatalf("first pair element is not a string: %v", err)
	}
	if id != "INV-3" {
		t.Errorf("pair id = %q, want %q", id, "INV-3")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	// Corrupt storage starts empty, not fatal.
	s := NewFileStore(path, testLogger())
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List on corrupt file = %d records, want 0", len(list))
	}
}

func TestFileStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "db.json"), testLogger())

	a := testInvoice("INV-B")
	a.CreatedAt = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	b := testInvoice("INV-A")
	b.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d records, want 2", len(list))
	}
	if list[0].ID != "INV-A" || list[1].ID != "INV-B" {
		t.Errorf("List order = [%s %s], want [INV-A INV-B]", list[0].ID, list[1].ID)
	}
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	ok, err := r.Contains(ctx, "INV-9")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Error("Contains = true before Add")
	}

	if err := r.Add(ctx, "INV-9"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Idempotent.
	if err := r.Add(ctx, "INV-9"); err != nil {
		t.Fatalf("second Add: %v", err)
	}

	ok, err = r.Contains(ctx, "INV-9")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Error("Contains = false after Add")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q): %v", dbPath, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	inv := testInvoice("INV-SQL-1")
	if err := s.Insert(ctx, inv); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(ctx, "INV-SQL-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for inserted invoice")
	}
	if !got.Amount.Equal(inv.Amount) {
		t.Errorf("Amount = %s, want %s", got.Amount, inv.Amount)
	}
	if got.TransactionHash != "" || got.PaidAt != nil {
		t.Errorf("unpaid invoice has TransactionHash=%q PaidAt=%v", got.TransactionHash, got.PaidAt)
	}

	// Pay it and check the update round-trips.
	paidAt := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	inv.Status = domain.StatusPaid
	inv.TransactionHash = "0xabc123"
	inv.PaidAt = &paidAt
	if err := s.Update(ctx, inv); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err = s.Get(ctx, "INV-SQL-1")
	if err != nil {
		t.Fatalf("Get after Update: %v", err)
	}
	if got.Status != domain.StatusPaid {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusPaid)
	}
	if got.TransactionHash != "0xabc123" {
		t.Errorf("TransactionHash = %q, want %q", got.TransactionHash, "0xabc123")
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
		t.Errorf("PaidAt = %v, want %v", got.PaidAt, paidAt)
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get for unknown ID = %+v, want nil", got)
	}
}

func TestSQLiteRegistry(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	ok, err := s.Contains(ctx, "INV-7")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Error("Contains = true before Add")
	}

	if err := s.Add(ctx, "INV-7"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, "INV-7"); err != nil {
		t.Fatalf("second Add (idempotent): %v", err)
	}

	ok, err = s.Contains(ctx, "INV-7")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Error("Contains = false after Add")
	}
}
