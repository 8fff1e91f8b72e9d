// Package audit is a write-only SQLite trail of every decision
// hyperliquidity's emitter and orchestrator make. It is grounded on the
// teacher's storage.EventStore WAL pattern, deliberately trimmed to
// write-only: hyperliquidity never recovers state from this database at
// startup (see SPEC_FULL.md's Non-goals — no crash recovery), so
// LoadEvents/GetLastSeq have no caller and are not carried over.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// EventType discriminates the payload shape in Record.Payload.
type EventType string

const (
	EventPlace     EventType = "place"
	EventModify    EventType = "modify"
	EventCancel    EventType = "cancel"
	EventFill      EventType = "fill"
	EventReject    EventType = "reject"
	EventReconcile EventType = "reconcile"
)

// Record is one row of the audit trail.
type Record struct {
	TS      int64
	Coin    string
	Type    EventType
	Payload any
}

// Trail is an append-only SQLite audit log.
type Trail struct {
	db *sql.DB
}

// Open creates/opens the SQLite file at path in WAL mode and ensures
// the events table exists.
func Open(path string) (*Trail, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: pragma %q: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			coin    TEXT NOT NULL,
			type    TEXT NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create events table: %w", err)
	}

	return &Trail{db: db}, nil
}

// Record appends one event to the trail. It never reads events back —
// this is a forensic log, not a recovery source.
func (t *Trail) Record(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}

	_, err = t.db.ExecContext(ctx,
		"INSERT INTO events (ts, coin, type, payload) VALUES (?, ?, ?, ?)",
		r.TS, r.Coin, string(r.Type), payload,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (t *Trail) Close() error {
	return t.db.Close()
}

// DB exposes the underlying handle for inspection in tests.
func (t *Trail) DB() *sql.DB {
	return t.db
}
