// Package audit provides a SQLite-backed execution log for tool dispatches.
// Every dispatch, successful or not, lands in the tool_audit table so
// "what did the assistant actually do" is answerable after the fact.
// Entries older than 30 days are pruned at startup.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_audit (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	tool          TEXT NOT NULL,
	params        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_audit_created ON tool_audit(created_at);
`

// retention bounds how long audit rows are kept.
const retention = 30 * 24 * time.Hour

// Entry is one recorded tool dispatch.
type Entry struct {
	ID        int64  `json:"id"`
	Tool      string `json:"tool"`
	Params    string `json:"params"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Duration  int64  `json:"duration_ms"`
	CreatedAt string `json:"created_at"`
}

// Store owns the audit database connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the audit database at path and applies
// the schema. WAL keeps writers from blocking the read paths.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating audit db: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "audit")}
	go s.prune()
	return s, nil
}

// Hook returns an assistant.AuditFunc that records every dispatch into the
// store. Write failures are logged and swallowed; auditing never fails a
// tool call.
func (s *Store) Hook() assistant.AuditFunc {
	return func(tool string, params map[string]any, outcome *assistant.Outcome, elapsed time.Duration) {
		s.Record(tool, params, outcome, elapsed)
	}
}

// Record inserts one dispatch row.
func (s *Store) Record(tool string, params map[string]any, outcome *assistant.Outcome, elapsed time.Duration) {
	status := "success"
	errText := ""
	if outcome != nil && outcome.Err != nil {
		status = string(outcome.Err.Kind)
		errText = outcome.Err.Message
	}

	paramsJSON := summarize(params)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.Exec(`
		INSERT INTO tool_audit (tool, params, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tool, paramsJSON, status, errText, elapsed.Milliseconds(), now,
	)
	if err != nil {
		s.logger.Warn("audit write failed", "tool", tool, "error", err)
	}
}

// Recent returns the newest n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, tool, params, status, error, duration_ms, created_at
		FROM tool_audit
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Tool, &e.Params, &e.Status, &e.Error, &e.Duration, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM tool_audit").Scan(&n)
	return n, err
}

func (s *Store) prune() {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	res, err := s.db.Exec("DELETE FROM tool_audit WHERE created_at < ?", cutoff)
	if err != nil {
		s.logger.Warn("audit prune failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("audit log pruned", "removed", n)
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// summarize renders params as JSON, truncated so one oversized call cannot
// bloat the log.
func summarize(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	if len(b) > 500 {
		return string(b[:500]) + "...[truncated]"
	}
	return string(b)
}
