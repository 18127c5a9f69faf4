// Package store keeps a durable audit log of relayed events in SQLite.
// A failed write never fails a relay; the log is diagnostics, not a queue.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RelayRecord is one relayed event and its per-target outcomes.
type RelayRecord struct {
	ID        string
	ChatID    int64
	ChatTitle string
	Sender    string
	Succeeded int
	Failed    int
	CreatedAt time.Time
	Outcomes  []OutcomeRecord
}

// OutcomeRecord is the result of one dispatch POST.
type OutcomeRecord struct {
	Target     string
	StatusCode int
	OK         bool
	Error      string
}

// SQLiteStore implements the relay log on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS relays (
		id          TEXT PRIMARY KEY,
		chat_id     INTEGER NOT NULL,
		chat_title  TEXT,
		sender      TEXT,
		succeeded   INTEGER DEFAULT 0,
		failed      INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_relays_time ON relays(created_at);

	CREATE TABLE IF NOT EXISTS dispatch_outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		relay_id    TEXT NOT NULL REFERENCES relays(id) ON DELETE CASCADE,
		target      TEXT NOT NULL,
		status_code INTEGER DEFAULT 0,
		ok          INTEGER NOT NULL,
		error       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_relay ON dispatch_outcomes(relay_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRelay inserts the event row and its outcome rows.
func (s *SQLiteStore) RecordRelay(ctx context.Context, rec RelayRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO relays (id, chat_id, chat_title, sender, succeeded, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChatID, rec.ChatTitle, rec.Sender, rec.Succeeded, rec.Failed, rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, o := range rec.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dispatch_outcomes (relay_id, target, status_code, ok, error)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, o.Target, o.StatusCode, boolToInt(o.OK), o.Error,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentRelays returns the newest relay rows, outcomes included.
func (s *SQLiteStore) RecentRelays(ctx context.Context, limit int) ([]RelayRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, chat_title, sender, succeeded, failed, created_at
		 FROM relays ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RelayRecord
	for rows.Next() {
		var rec RelayRecord
		if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.ChatTitle, &rec.Sender,
			&rec.Succeeded, &rec.Failed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		outcomes, err := s.outcomes(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Outcomes = outcomes
	}
	return records, nil
}

func (s *SQLiteStore) outcomes(ctx context.Context, relayID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target, status_code, ok, error FROM dispatch_outcomes WHERE relay_id = ? ORDER BY id`,
		relayID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var o OutcomeRecord
		var ok int
		if err := rows.Scan(&o.Target, &o.StatusCode, &ok, &o.Error); err != nil {
			return nil, err
		}
		o.OK = ok != 0
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
