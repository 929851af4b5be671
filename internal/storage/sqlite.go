package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/jeryldev/patingin/internal/ir"
)

// DB is the review history store backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path. The parent
// directory is created when needed.
func OpenSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{conn: c}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id         TEXT PRIMARY KEY,
  started_at TEXT,          -- RFC3339Nano
  scope      TEXT,
  branch     TEXT,
  project    TEXT,
  version    TEXT,
  run_json   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS violations (
  run_id       TEXT NOT NULL,
  seq          INTEGER NOT NULL,
  rule_id      TEXT NOT NULL,
  language     TEXT,
  file_path    TEXT NOT NULL,
  line_number  INTEGER NOT NULL,
  severity     TEXT NOT NULL,
  matched_text TEXT,
  content      TEXT,
  ai_fixable   INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (run_id, seq),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_violations_run ON violations(run_id);
CREATE INDEX IF NOT EXISTS idx_violations_rule ON violations(rule_id);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  actor TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);

CREATE TABLE IF NOT EXISTS waivers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  rule_id     TEXT NOT NULL,
  path        TEXT,              -- doublestar glob; NULL = any file
  contains    TEXT,              -- substring of line content; NULL = any
  reason      TEXT NOT NULL,
  expires_at  TEXT,              -- RFC3339Nano; NULL = never
  created_by  TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  revoked_at  TEXT               -- NULL = active
);
`)
	return err
}

// SaveRun upserts a run JSON and (re)writes its violations.
func (db *DB) SaveRun(run *ir.Run) error {
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	ts := run.StartedAt.UTC().Format(time.RFC3339Nano)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, started_at, scope, branch, project, version, run_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, scope=excluded.scope,
           branch=excluded.branch, project=excluded.project, version=excluded.version, run_json=excluded.run_json`,
		run.ID, ts, run.Scope, run.Branch, run.Project, run.Version, string(b),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM violations WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if len(run.Violations) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO violations
			(run_id, seq, rule_id, language, file_path, line_number, severity, matched_text, content, ai_fixable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, v := range run.Violations {
			if _, err := stmt.Exec(
				run.ID,
				i,
				v.RuleID,
				string(v.Language),
				v.FilePath,
				v.LineNumber,
				v.Severity.String(),
				v.MatchedText,
				v.Content,
				v.AIFixable,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadRun returns the full run (from stored JSON).
func (db *DB) LoadRun(id string) (ir.Run, error) {
	var s string
	row := db.conn.QueryRow(`SELECT run_json FROM runs WHERE id = ?`, id)
	if err := row.Scan(&s); err != nil {
		return ir.Run{}, err
	}
	var run ir.Run
	if err := json.Unmarshal([]byte(s), &run); err != nil {
		return ir.Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

// LoadLatestRun returns the most recently started run.
func (db *DB) LoadLatestRun() (ir.Run, error) {
	rows, err := db.ListRuns(1, 0)
	if err != nil {
		return ir.Run{}, err
	}
	if len(rows) == 0 {
		return ir.Run{}, sql.ErrNoRows
	}
	return db.LoadRun(rows[0].ID)
}

// DeleteRun removes a run and, through the foreign key, its violations.
func (db *DB) DeleteRun(id string) error {
	return execOne(db.conn, `DELETE FROM runs WHERE id = ?`, id)
}

func execOne(db *sql.DB, q string, args ...any) error {
	res, err := db.Exec(q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
