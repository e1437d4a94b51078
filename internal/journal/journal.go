// Package journal keeps a local SQLite record of booking lifecycle
// transitions observed by this process.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one lifecycle transition.
type Entry struct {
	ID         int64     `json:"id"`
	BookingID  string    `json:"booking_id,omitempty"`
	DraftKey   string    `json:"draft_key"`
	CustomerID string    `json:"customer_id"`
	ResourceID string    `json:"resource_id"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Reason     string    `json:"reason,omitempty"`
	StartsAt   string    `json:"starts_at,omitempty"`
	EndsAt     string    `json:"ends_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DB wraps sql.DB for the journal.
type DB struct {
	*sql.DB
	path string
}

// Open opens the journal at path and runs migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS booking_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id TEXT,
			draft_key TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			reason TEXT,
			starts_at TEXT,
			ends_at TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_customer ON booking_journal(customer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_booking ON booking_journal(booking_id)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

// Record appends an entry. CreatedAt defaults to now.
func (db *DB) Record(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO booking_journal
			(booking_id, draft_key, customer_id, resource_id, from_state, to_state, reason, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BookingID, e.DraftKey, e.CustomerID, e.ResourceID, e.FromState, e.ToState,
		e.Reason, e.StartsAt, e.EndsAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListByCustomer returns the newest entries of a customer first.
func (db *DB) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.query(ctx, `
		SELECT id, COALESCE(booking_id, ''), draft_key, customer_id, resource_id, from_state, to_state,
			COALESCE(reason, ''), COALESCE(starts_at, ''), COALESCE(ends_at, ''), created_at
		FROM booking_journal
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, customerID, limit)
}

// ListByBooking returns the transitions of one booking in order.
func (db *DB) ListByBooking(ctx context.Context, bookingID string) ([]Entry, error) {
	return db.query(ctx, `
		SELECT id, COALESCE(booking_id, ''), draft_key, customer_id, resource_id, from_state, to_state,
			COALESCE(reason, ''), COALESCE(starts_at, ''), COALESCE(ends_at, ''), created_at
		FROM booking_journal
		WHERE booking_id = ?
		ORDER BY id`, bookingID)
}

func (db *DB) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.DraftKey, &e.CustomerID, &e.ResourceID,
			&e.FromState, &e.ToState, &e.Reason, &e.StartsAt, &e.EndsAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
