package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteWriter stores one row per receipt and one row per decision summary
type SQLiteWriter struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the ledger database at path
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open receipt ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &SQLiteWriter{db: db}
	if err := w.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate receipt ledger: %w", err)
	}
	return w, nil
}

func (w *SQLiteWriter) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			op_id TEXT PRIMARY KEY,
			schema_version TEXT NOT NULL,
			command TEXT NOT NULL,
			ts_start TEXT NOT NULL,
			ts_end TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			config_name TEXT NOT NULL DEFAULT '',
			body JSON NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			op_id TEXT NOT NULL REFERENCES receipts(op_id),
			seq INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			verdict TEXT NOT NULL DEFAULT '',
			alignment_value REAL NOT NULL DEFAULT 0,
			digest TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (op_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_request ON decisions(request_id)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write inserts the receipt and its decisions in one transaction
func (w *SQLiteWriter) Write(r Receipt) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx := context.Background()
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	configName := ""
	if r.Config != nil {
		configName = r.Config.Name
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO receipts (op_id, schema_version, command, ts_start, ts_end, status, error, config_name, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OpID, r.SchemaVersion, r.Command, r.TsStart, r.TsEnd, r.Result.Status, r.Result.Error, configName, string(body))
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i, d := range r.Decisions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO decisions (op_id, seq, request_id, verdict, alignment_value, digest, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.OpID, i, d.RequestID, d.Verdict, d.AlignmentValue, d.Digest, d.Error)
		if err != nil {
			return fmt.Errorf("failed to insert decision %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ByRequest returns the receipts that recorded a decision for requestID, oldest first
func (w *SQLiteWriter) ByRequest(ctx context.Context, requestID string) ([]Receipt, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT r.body FROM receipts r
		 JOIN decisions d ON d.op_id = r.op_id
		 WHERE d.request_id = ?
		 GROUP BY r.op_id
		 ORDER BY r.ts_start ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Receipt
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r Receipt
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("corrupt receipt row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Close()
}
