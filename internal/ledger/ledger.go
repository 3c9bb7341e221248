// Package ledger records settlement and trust events durably. The three
// core stores stay in memory; the ledger is an append-only audit artifact
// a later payout reconciliation can replay.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry kinds.
const (
	KindPayout = "payout"
	KindRefund = "refund"
	KindTrust  = "trust"
)

// Entry is one settlement or trust event.
type Entry struct {
	ID          string  `json:"id"`
	TaskID      string  `json:"taskId"`
	AgentID     string  `json:"agentId,omitempty"`
	Kind        string  `json:"kind"`
	Amount      int64   `json:"amount,omitempty"`
	TrustDelta  float64 `json:"trustDelta,omitempty"`
	Reason      string  `json:"reason"`
	Proof       string  `json:"proof,omitempty"`
	TimestampMs int64   `json:"timestampMs"`
}

// Recorder is what the orchestrator writes entries through.
type Recorder interface {
	Record(entry Entry) error
}

// Ledger is a SQLite-backed recorder.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		agent_id TEXT,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		trust_delta REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		proof TEXT,
		timestamp_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_task ON ledger_entries(task_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_agent ON ledger_entries(agent_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends an entry, assigning an id if the caller left it empty.
func (l *Ledger) Record(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := l.db.Exec(`
		INSERT INTO ledger_entries (id, task_id, agent_id, kind, amount, trust_delta, reason, proof, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TaskID, entry.AgentID, entry.Kind, entry.Amount, entry.TrustDelta, entry.Reason, entry.Proof, entry.TimestampMs)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// ListByTask returns entries for a task, newest first.
func (l *Ledger) ListByTask(taskID string) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, task_id, agent_id, kind, amount, trust_delta, reason, proof, timestamp_ms
		FROM ledger_entries WHERE task_id = ? ORDER BY timestamp_ms DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// List returns the most recent entries up to limit (0 means no limit).
func (l *Ledger) List(limit int) ([]Entry, error) {
	q := `
		SELECT id, task_id, agent_id, kind, amount, trust_delta, reason, proof, timestamp_ms
		FROM ledger_entries ORDER BY timestamp_ms DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = l.db.Query(q+" LIMIT ?", limit)
	} else {
		rows, err = l.db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var agentID, proof sql.NullString
		if err := rows.Scan(&e.ID, &e.TaskID, &agentID, &e.Kind, &e.Amount, &e.TrustDelta, &e.Reason, &proof, &e.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.AgentID = agentID.String
		e.Proof = proof.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Discard is a Recorder that drops entries; used when no ledger path is
// configured.
type Discard struct{}

func (Discard) Record(Entry) error { return nil }
