package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agentpay/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ InvoiceStore = (*SQLiteStore)(nil)
var _ ConditionRegistry = (*SQLiteStore)(nil)

// SQLiteStore implements InvoiceStore and ConditionRegistry backed by a
// SQLite database. Unlike the file backend, condition signals are durable
// here.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	id         TEXT PRIMARY KEY,
	amount     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	condition  TEXT NOT NULL,
	status     TEXT NOT NULL,
	tx_hash    TEXT,
	paid_at    TEXT,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS condition_signals (
	id TEXT PRIMARY KEY
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// InvoiceStore implementation
// ---------------------------------------------------------------------------

// Get retrieves an invoice by ID, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount, recipient, condition, status, tx_hash, paid_at, created_at
		 FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Insert adds a new invoice record.
func (s *SQLiteStore) Insert(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, amount, recipient, condition, status, tx_hash, paid_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Amount.String(), inv.RecipientAddress, inv.Condition,
		string(inv.Status), nullString(inv.TransactionHash), nullTime(inv.PaidAt),
		inv.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Update persists changes to an existing invoice record.
func (s *SQLiteStore) Update(ctx context.Context, inv *domain.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET amount = ?, recipient = ?, condition = ?, status = ?,
		 tx_hash = ?, paid_at = ? WHERE id = ?`,
		inv.Amount.String(), inv.RecipientAddress, inv.Condition, string(inv.Status),
		nullString(inv.TransactionHash), nullTime(inv.PaidAt), inv.ID)
	return err
}

// Delete removes the record for the given ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	return err
}

// List returns all invoice records ordered by creation time, then ID.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, recipient, condition, status, tx_hash, paid_at, created_at
		 FROM invoices ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// ConditionRegistry implementation
// ---------------------------------------------------------------------------

// Add records that the condition for the given ID has been met.
func (s *SQLiteStore) Add(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO condition_signals (id) VALUES (?)`, id)
	return err
}

// Contains reports whether the condition for the given ID has been met.
func (s *SQLiteStore) Contains(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM condition_signals WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		inv       domain.Invoice
		amount    string
		status    string
		txHash    sql.NullString
		paidAt    sql.NullString
		createdAt string
	)
	err := row.Scan(&inv.ID, &amount, &inv.RecipientAddress, &inv.Condition,
		&status, &txHash, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}

	inv.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: parsing amount %q: %w", inv.ID, amount, err)
	}
	inv.Status = domain.InvoiceStatus(status)
	if txHash.Valid {
		inv.TransactionHash = txHash.String
	}
	if paidAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, paidAt.String)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: parsing paid_at %q: %w", inv.ID, paidAt.String, err)
		}
		inv.PaidAt = &t
	}
	inv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: parsing created_at %q: %w", inv.ID, createdAt, err)
	}
	return &inv, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
