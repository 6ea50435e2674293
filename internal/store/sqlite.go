package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS resets (
	id            TEXT PRIMARY KEY,
	reset_date    TEXT NOT NULL,
	fired_at      TEXT NOT NULL,
	scheduled_for TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_resets_fired_at ON resets(fired_at);
`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const upsertPreference = `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

const deleteLastSignal = `DELETE FROM preferences WHERE key = ?`

// SQLite is the durable store, one database file on the device.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn.
// Writes are serialized through a single connection.
func Open(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", dsn, err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate creates the tables. Safe to run on every start.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// ClearLastSignal removes the last signal type.
func (s *SQLite) ClearLastSignal(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteLastSignal, KeyLastSignalType); err != nil {
		return fmt.Errorf("store: clear last signal: %w", err)
	}
	return nil
}

// SetLastSignal records the most recent signal type.
func (s *SQLite) SetLastSignal(ctx context.Context, signal string) error {
	if err := s.put(ctx, KeyLastSignalType, signal); err != nil {
		return fmt.Errorf("store: set last signal: %w", err)
	}
	return nil
}

// SetLastResetDate records the calendar date of the latest reset.
func (s *SQLite) SetLastResetDate(ctx context.Context, date string) error {
	if err := s.put(ctx, KeyLastResetDate, date); err != nil {
		return fmt.Errorf("store: set last reset date: %w", err)
	}
	return nil
}

// ApplyReset clears the last signal and stamps date as the last reset date
// in one transaction. On error neither write is kept.
func (s *SQLite) ApplyReset(ctx context.Context, date string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: apply reset: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteLastSignal, KeyLastSignalType); err != nil {
		return fmt.Errorf("store: apply reset: clear last signal: %w", err)
	}
	if _, err = tx.ExecContext(ctx, upsertPreference, KeyLastResetDate, date, s.now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("store: apply reset: set last reset date: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: apply reset: commit: %w", err)
	}
	return nil
}

// Record returns the current reset record. Missing keys are left empty;
// ErrNotFound is returned only when neither key has ever been written.
func (s *SQLite) Record(ctx context.Context) (ResetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM preferences WHERE key IN (?, ?)`,
		KeyLastSignalType, KeyLastResetDate)
	if err != nil {
		return ResetRecord{}, fmt.Errorf("store: read record: %w", err)
	}
	defer rows.Close()

	var rec ResetRecord
	found := false
	for rows.Next() {
		var key, value, updated string
		if err := rows.Scan(&key, &value, &updated); err != nil {
			return ResetRecord{}, fmt.Errorf("store: scan record: %w", err)
		}
		found = true

		switch key {
		case KeyLastSignalType:
			rec.LastSignalType = value
		case KeyLastResetDate:
			rec.LastResetDate = value
		}
		if t, err := time.Parse(timeLayout, updated); err == nil && t.After(rec.UpdatedAt) {
			rec.UpdatedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		return ResetRecord{}, fmt.Errorf("store: read record: %w", err)
	}
	if !found {
		return ResetRecord{}, ErrNotFound
	}
	return rec, nil
}

// BootID returns the host boot id recorded by the last start.
func (s *SQLite) BootID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, KeyBootID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: read boot id: %w", err)
	}
	return id, nil
}

// SetBootID records the host boot id seen by this start.
func (s *SQLite) SetBootID(ctx context.Context, id string) error {
	if err := s.put(ctx, KeyBootID, id); err != nil {
		return fmt.Errorf("store: set boot id: %w", err)
	}
	return nil
}

// AppendReset adds a fired reset to the history.
func (s *SQLite) AppendReset(ctx context.Context, r Reset) error {
	scheduled := ""
	if !r.ScheduledFor.IsZero() {
		scheduled = r.ScheduledFor.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resets (id, reset_date, fired_at, scheduled_for) VALUES (?, ?, ?, ?)`,
		r.ID, r.Date, r.FiredAt.UTC().Format(timeLayout), scheduled)
	if err != nil {
		return fmt.Errorf("store: append reset %s: %w", r.ID, err)
	}
	return nil
}

// RecentResets returns up to limit resets, newest first.
func (s *SQLite) RecentResets(ctx context.Context, limit int) ([]Reset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reset_date, fired_at, scheduled_for FROM resets ORDER BY fired_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list resets: %w", err)
	}
	defer rows.Close()

	var resets []Reset
	for rows.Next() {
		var r Reset
		var fired, scheduled string
		if err := rows.Scan(&r.ID, &r.Date, &fired, &scheduled); err != nil {
			return nil, fmt.Errorf("store: scan reset: %w", err)
		}
		if r.FiredAt, err = time.Parse(timeLayout, fired); err != nil {
			return nil, fmt.Errorf("store: reset %s fired_at: %w", r.ID, err)
		}
		if scheduled != "" {
			if r.ScheduledFor, err = time.Parse(timeLayout, scheduled); err != nil {
				return nil, fmt.Errorf("store: reset %s scheduled_for: %w", r.ID, err)
			}
		}
		resets = append(resets, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list resets: %w", err)
	}
	return resets, nil
}

func (s *SQLite) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, upsertPreference, key, value, s.now().UTC().Format(timeLayout))
	return err
}
