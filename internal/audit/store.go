package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store mirrors audit entries into SQLite so the /audit command and the CLI
// can query recent events without scanning the JSONL file. The JSONL file
// remains the authoritative append-only record.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	identity  INTEGER NOT NULL,
	action    TEXT NOT NULL,
	outcome   TEXT NOT NULL,
	detail    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_events(outcome, id);
`

// OpenStore opens (or creates) the SQLite store at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert appends one (already redacted) entry.
func (s *Store) Insert(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (timestamp, identity, action, outcome, detail) VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Identity, e.Action, string(e.Outcome), e.Detail,
	)
	return err
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	return s.query(
		`SELECT timestamp, identity, action, outcome, detail FROM audit_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

// RecentDenials returns the newest denied entries, newest first.
func (s *Store) RecentDenials(limit int) ([]Entry, error) {
	return s.query(
		`SELECT timestamp, identity, action, outcome, detail FROM audit_events WHERE outcome = 'denied' ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (s *Store) query(q string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit store: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, outcome string
		if err := rows.Scan(&ts, &e.Identity, &e.Action, &outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			e.Timestamp = parsed
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
