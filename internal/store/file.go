package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"agentpay/internal/domain"
)

// Compile-time interface check.
var _ InvoiceStore = (*FileStore)(nil)

// FileStore holds invoice records in memory with JSON-file persistence. The
// in-memory map is authoritative for the running process: every mutation
// updates the map first and then rewrites the whole file; a write failure is
// logged but never rolled back.
type FileStore struct {
	mu       sync.RWMutex
	invoices map[string]domain.Invoice
	filePath string
	log      *slog.Logger
}

// NewFileStore creates a FileStore, loading persisted state from filePath.
// A missing or corrupt file starts the store empty rather than failing.
func NewFileStore(filePath string, log *slog.Logger) *FileStore {
	s := &FileStore{
		invoices: make(map[string]domain.Invoice),
		filePath: filePath,
		log:      log,
	}
	s.load()
	return s
}

// Get retrieves an invoice by ID, or (nil, nil) when absent.
func (s *FileStore) Get(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

// Insert adds a new invoice record and persists the store.
func (s *FileStore) Insert(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = *inv
	s.flush()
	return nil
}

// Update persists changes to an existing record.
func (s *FileStore) Update(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = *inv
	s.flush()
	return nil
}

// Delete removes the record for the given ID and persists the store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, id)
	s.flush()
	return nil
}

// List returns all records ordered by creation time, then ID.
func (s *FileStore) List(_ context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close is a no-op; the file is rewritten on every mutation.
func (s *FileStore) Close() error { return nil }

// invoicePair is the on-disk form of one record: a two-element JSON array
// of [id, record].
type invoicePair struct {
	id  string
	rec domain.Invoice
}

func (p invoicePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.id, p.rec})
}

func (p *invoicePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("invoice pair: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.id); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.rec)
}

// load reads the JSON file into memory.
func (s *FileStore) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return // File doesn't exist yet — start empty.
	}
	var pairs []invoicePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		s.log.Warn("loading invoice file", "path", s.filePath, "error", err)
		return
	}
	for _, p := range pairs {
		s.invoices[p.id] = p.rec
	}
	s.log.Info("loaded invoices", "count", len(pairs))
}

// flush writes the in-memory state to disk. Must be called with mu held.
func (s *FileStore) flush() {
	pairs := make([]invoicePair, 0, len(s.invoices))
	for id, inv := range s.invoices {
		pairs = append(pairs, invoicePair{id: id, rec: inv})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		s.log.Error("marshalling invoices", "error", err)
		return
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		s.log.Error("writing invoice file", "path", s.filePath, "error", err)
	}
}
