package storage

import (
	"database/sql"
	"time"

	"github.com/jeryldev/patingin/internal/rules"
)

// Waiver is a stored waiver with its bookkeeping columns.
type Waiver struct {
	ID        int64      `json:"id"`
	RuleID    string     `json:"rule_id"`
	Path      string     `json:"path,omitempty"`
	Contains  string     `json:"contains,omitempty"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Rule converts w to the form the review engine applies.
func (w Waiver) Rule() rules.Waiver {
	out := rules.Waiver{RuleID: w.RuleID, Path: w.Path, Contains: w.Contains, Reason: w.Reason}
	if w.ExpiresAt != nil {
		out.Expires = *w.ExpiresAt
	}
	return out
}

// CreateWaiver stores w. A zero Expires never expires.
func (db *DB) CreateWaiver(w rules.Waiver, createdBy string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var exp any
	if !w.Expires.IsZero() {
		exp = w.Expires.UTC().Format(time.RFC3339Nano)
	}
	res, err := db.conn.Exec(`
INSERT INTO waivers(rule_id, path, contains, reason, expires_at, created_by, created_at)
VALUES(?,?,?,?,?,?,?)`,
		w.RuleID, nz(w.Path), nz(w.Contains), w.Reason, exp, createdBy, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, db.LogAudit(createdBy, "waiver:create", "waivers", map[string]any{"id": id, "rule_id": w.RuleID})
}

// RevokeWaiver marks an active waiver revoked. Revoking an unknown or already
// revoked waiver returns sql.ErrNoRows.
func (db *DB) RevokeWaiver(id int64, by string) error {
	if err := execOne(db.conn, `UPDATE waivers SET revoked_at=? WHERE id=? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id); err != nil {
		return err
	}
	return db.LogAudit(by, "waiver:revoke", "waivers", map[string]any{"id": id})
}

func (db *DB) ListWaivers(activeOnly bool) ([]Waiver, error) {
	q := `
SELECT id, rule_id, COALESCE(path,''), COALESCE(contains,''),
       reason, expires_at, created_by, created_at, revoked_at
FROM waivers`
	args := []any{}
	if activeOnly {
		q += ` WHERE (revoked_at IS NULL) AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	}
	q += ` ORDER BY id DESC`
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Waiver{}
	for rows.Next() {
		var (
			w           Waiver
			exp, ca, ra sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.RuleID, &w.Path, &w.Contains, &w.Reason, &exp, &w.CreatedBy, &ca, &ra); err != nil {
			return nil, err
		}
		if exp.Valid {
			t := parseTime(exp.String)
			w.ExpiresAt = &t
		}
		if ca.Valid {
			w.CreatedAt = parseTime(ca.String)
		}
		if ra.Valid {
			t := parseTime(ra.String)
			w.RevokedAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ActiveWaivers returns the unrevoked, unexpired waivers as review waivers.
func (db *DB) ActiveWaivers() ([]rules.Waiver, error) {
	ws, err := db.ListWaivers(true)
	if err != nil {
		return nil, err
	}
	out := make([]rules.Waiver, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Rule())
	}
	return out, nil
}

func nz(s string) any {
	if s == "" {
		return nil
	}
	return s
}
