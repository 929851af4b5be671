package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jeryldev/patingin/internal/ir"
)

// ListRuns returns a lightweight list of runs with counts, newest first.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, COALESCE(r.scope,''), COALESCE(r.branch,''), COALESCE(r.project,''),
		       (SELECT COUNT(1) FROM violations v WHERE v.run_id = r.id) AS total,
		       (SELECT COUNT(1) FROM violations v WHERE v.run_id = r.id AND v.severity = 'critical') AS critical
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAtStr string
		if err := rows.Scan(&rr.ID, &startedAtStr, &rr.Scope, &rr.Branch, &rr.Project, &rr.Violations, &rr.Critical); err != nil {
			return nil, err
		}
		rr.StartedAt = parseTime(startedAtStr)
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ListViolations returns violations for a run at or above a minimum severity,
// most severe first.
func (db *DB) ListViolations(runID string, min ir.Severity) ([]ir.Violation, error) {
	const q = `
		SELECT rule_id, COALESCE(language,''), file_path, line_number, severity,
		       COALESCE(matched_text,''), COALESCE(content,''), ai_fixable
		  FROM violations
		 WHERE run_id = ?
		   AND (CASE severity WHEN 'critical' THEN 3 WHEN 'major' THEN 2 ELSE 1 END)
		       >= (CASE ? WHEN 'critical' THEN 3 WHEN 'major' THEN 2 ELSE 1 END)
		 ORDER BY
		       (CASE severity WHEN 'critical' THEN 3 WHEN 'major' THEN 2 ELSE 1 END) DESC,
		       file_path, line_number, rule_id`
	rows, err := db.conn.Query(q, runID, min.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ir.Violation{}
	for rows.Next() {
		var (
			v        ir.Violation
			lang     string
			severity string
		)
		if err := rows.Scan(&v.RuleID, &lang, &v.FilePath, &v.LineNumber, &severity, &v.MatchedText, &v.Content, &v.AIFixable); err != nil {
			return nil, err
		}
		v.Language = ir.Language(lang)
		v.Severity, _ = ir.ParseSeverity(severity)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (db *DB) HasRun(id string) (bool, error) {
	const q = `SELECT 1 FROM runs WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// parseTime accepts RFC3339Nano first, then RFC3339. Unparsable values give
// the zero time.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
