// Package store archives finished runs into a SQLite file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
)

// RunRecord is one finished run plus the workspace state it left behind.
type RunRecord struct {
	Command   string
	Role      model.Role
	Persona   model.Persona
	Result    orchestrator.Result
	Workspace model.Workspace
	SavedAt   time.Time
}

// RunSummary is a row of the runs table.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	Role       string    `json:"role"`
	Persona    string    `json:"persona"`
	State      string    `json:"state"`
	Answer     string    `json:"answer"`
	Rounds     int       `json:"rounds"`
	ModelCalls int       `json:"model_calls"`
	ToolCalls  int       `json:"tool_calls"`
	SavedAt    time.Time `json:"saved_at"`
}

// AuditRow is an archived audit entry; tool payloads stay JSON-encoded.
type AuditRow struct {
	Seq        int       `json:"seq"`
	Step       string    `json:"step"`
	OK         bool      `json:"ok"`
	Detail     string    `json:"detail"`
	ToolCall   string    `json:"tool_call,omitempty"`
	ToolResult string    `json:"tool_result,omitempty"`
	At         time.Time `json:"at"`
}

type SQLiteArchive struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteArchive(path string) *SQLiteArchive {
	return &SQLiteArchive{path: path}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT '',
  persona TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  answer TEXT NOT NULL DEFAULT '',
  rounds INTEGER NOT NULL DEFAULT 0,
  model_calls INTEGER NOT NULL DEFAULT 0,
  tool_calls INTEGER NOT NULL DEFAULT 0,
  saved_unix INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  step TEXT NOT NULL,
  ok INTEGER NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  tool_call TEXT NOT NULL DEFAULT '',
  tool_result TEXT NOT NULL DEFAULT '',
  at_unix_nano INTEGER NOT NULL,
  PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS invoices (
  run_id TEXT NOT NULL,
  invoice_id TEXT NOT NULL,
  number TEXT NOT NULL,
  client_id TEXT NOT NULL,
  date TEXT NOT NULL,
  currency TEXT NOT NULL,
  subtotal REAL NOT NULL,
  vat REAL NOT NULL,
  total REAL NOT NULL,
  status TEXT NOT NULL,
  line_items TEXT NOT NULL,
  PRIMARY KEY (run_id, invoice_id)
);

CREATE TABLE IF NOT EXISTS expenses (
  run_id TEXT NOT NULL,
  expense_id TEXT NOT NULL,
  description TEXT NOT NULL,
  amount REAL NOT NULL,
  currency TEXT NOT NULL,
  date TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL DEFAULT '',
  client_id TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (run_id, expense_id)
);

CREATE TABLE IF NOT EXISTS tasks (
  run_id TEXT NOT NULL,
  task_id TEXT NOT NULL,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL,
  assignee_user_id TEXT NOT NULL DEFAULT '',
  due_date TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (run_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_saved ON runs(saved_unix);
`

func (a *SQLiteArchive) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	return nil
}

// SaveRun writes rec in one transaction. Saving the same run id again
// replaces the earlier copy.
func (a *SQLiteArchive) SaveRun(ctx context.Context, rec RunRecord) error {
	if strings.TrimSpace(rec.Result.RunID) == "" {
		return errors.New("run id is required")
	}
	db, err := a.ensureDB(ctx)
	if err != nil {
		return err
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	runID := rec.Result.RunID
	for _, table := range []string{"audit_entries", "invoices", "expenses", "tasks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	res := rec.Result
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(run_id, command, role, persona, state, answer, rounds, model_calls, tool_calls, saved_unix)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   command=excluded.command, role=excluded.role, persona=excluded.persona,
		   state=excluded.state, answer=excluded.answer, rounds=excluded.rounds,
		   model_calls=excluded.model_calls, tool_calls=excluded.tool_calls,
		   saved_unix=excluded.saved_unix`,
		runID, rec.Command, string(rec.Role), string(rec.Persona), string(res.State), res.Answer,
		res.Rounds, res.ModelCalls, res.ToolCalls, rec.SavedAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertAll(ctx, tx,
		`INSERT INTO audit_entries(run_id, seq, step, ok, detail, tool_call, tool_result, at_unix_nano) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		len(res.Audit), func(i int) ([]interface{}, error) {
			e := res.Audit[i]
			call, err := encodeOptional(e.ToolCall)
			if err != nil {
				return nil, err
			}
			result, err := encodeOptional(e.ToolResult)
			if err != nil {
				return nil, err
			}
			return []interface{}{runID, i + 1, e.Step, boolToInt(e.OK), e.Detail, call, result, e.Time.UnixNano()}, nil
		}); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	ws := rec.Workspace
	if err := insertAll(ctx, tx,
		`INSERT INTO invoices(run_id, invoice_id, number, client_id, date, currency, subtotal, vat, total, status, line_items) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(ws.Invoices), func(i int) ([]interface{}, error) {
			inv := ws.Invoices[i]
			items, err := json.Marshal(inv.LineItems)
			if err != nil {
				return nil, err
			}
			return []interface{}{runID, inv.ID, inv.Number, inv.ClientID, inv.Date, string(inv.Currency),
				inv.Subtotal, inv.VAT, inv.Total, inv.Status, string(items)}, nil
		}); err != nil {
		return fmt.Errorf("insert invoices: %w", err)
	}

	if err := insertAll(ctx, tx,
		`INSERT INTO expenses(run_id, expense_id, description, amount, currency, date, category, project_id, client_id) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(ws.Expenses), func(i int) ([]interface{}, error) {
			e := ws.Expenses[i]
			return []interface{}{runID, e.ID, e.Description, e.Amount, string(e.Currency), e.Date, e.Category, e.ProjectID, e.ClientID}, nil
		}); err != nil {
		return fmt.Errorf("insert expenses: %w", err)
	}

	if err := insertAll(ctx, tx,
		`INSERT INTO tasks(run_id, task_id, project_id, title, status, assignee_user_id, due_date) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		len(ws.Tasks), func(i int) ([]interface{}, error) {
			t := ws.Tasks[i]
			return []interface{}{runID, t.ID, t.ProjectID, t.Title, string(t.Status), t.AssigneeUserID, t.DueDate}, nil
		}); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}

	return tx.Commit()
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) ([]interface{}, error)) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < n; i++ {
		values, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return err
		}
	}
	return nil
}

// Runs lists archived runs, newest first.
func (a *SQLiteArchive) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	db, err := a.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, command, role, persona, state, answer, rounds, model_calls, tool_calls, saved_unix
		 FROM runs ORDER BY saved_unix DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var saved int64
		if err := rows.Scan(&r.RunID, &r.Command, &r.Role, &r.Persona, &r.State, &r.Answer,
			&r.Rounds, &r.ModelCalls, &r.ToolCalls, &saved); err != nil {
			return nil, err
		}
		r.SavedAt = time.Unix(saved, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// AuditEntries returns the archived trail of one run in order.
func (a *SQLiteArchive) AuditEntries(ctx context.Context, runID string) ([]AuditRow, error) {
	db, err := a.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT seq, step, ok, detail, tool_call, tool_result, at_unix_nano
		 FROM audit_entries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var ok int
		var at int64
		if err := rows.Scan(&r.Seq, &r.Step, &ok, &r.Detail, &r.ToolCall, &r.ToolResult, &at); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		r.At = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of rows table holds for runID.
func (a *SQLiteArchive) Count(ctx context.Context, table, runID string) (int, error) {
	switch table {
	case "audit_entries", "invoices", "expenses", "tasks":
	default:
		return 0, fmt.Errorf("unknown archive table %q", table)
	}
	db, err := a.ensureDB(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func (a *SQLiteArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *SQLiteArchive) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, errors.New("sqlite db not initialized")
	}
	return a.db, nil
}

func encodeOptional(v interface{}) (string, error) {
	switch x := v.(type) {
	case *model.ToolCall:
		if x == nil {
			return "", nil
		}
	case *model.ToolResult:
		if x == nil {
			return "", nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
