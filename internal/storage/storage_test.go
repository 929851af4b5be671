package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateSchema())
	return db
}

func sampleRun(id string, at time.Time) *ir.Run {
	return &ir.Run{
		ID:        id,
		StartedAt: at,
		Version:   ir.Version,
		Scope:     "staged",
		Branch:    "main",
		Project:   "shop",
		Violations: []ir.Violation{
			{RuleID: "dynamic_atom_creation", Language: ir.Elixir, FilePath: "lib/a.ex", LineNumber: 12, Severity: ir.SeverityCritical, Content: "String.to_atom(x)", AIFixable: true},
			{RuleID: "console_log", Language: ir.JavaScript, FilePath: "web/app.js", LineNumber: 3, Severity: ir.SeverityWarning, Content: "console.log(x)"},
			{RuleID: "loose_equality", Language: ir.JavaScript, FilePath: "web/app.js", LineNumber: 2, Severity: ir.SeverityMajor, Content: "if (x == 2) {}"},
		},
		Summary: ir.Summary{Total: 3, Critical: 1, Major: 1, Warning: 1, ByRule: map[string]int{}, Files: []string{"lib/a.ex", "web/app.js"}},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTest(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := sampleRun("r1", at)
	require.NoError(t, db.SaveRun(run))

	got, err := db.LoadRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "staged", got.Scope)
	assert.Equal(t, at, got.StartedAt)
	require.Len(t, got.Violations, 3)
	assert.Equal(t, ir.SeverityCritical, got.Violations[0].Severity)

	ok, err := db.HasRun("r1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.HasRun("nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.LoadRun("nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSaveRunIsUpsert(t *testing.T) {
	db := openTest(t)
	run := sampleRun("r1", time.Now())
	require.NoError(t, db.SaveRun(run))
	run.Violations = run.Violations[:1]
	require.NoError(t, db.SaveRun(run))

	rows, err := db.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Violations)
	assert.Equal(t, 1, rows[0].Critical)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}
	rows, err := db.ListRuns(2, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
	assert.Equal(t, "main", rows[0].Branch)

	rows, err = db.ListRuns(2, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)

	latest, err := db.LoadLatestRun()
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestLoadLatestRunEmpty(t *testing.T) {
	db := openTest(t)
	_, err := db.LoadLatestRun()
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListViolationsBySeverity(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.SaveRun(sampleRun("r1", time.Now())))

	all, err := db.ListViolations("r1", ir.SeverityWarning)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "dynamic_atom_creation", all[0].RuleID)
	assert.Equal(t, "loose_equality", all[1].RuleID)
	assert.Equal(t, ir.JavaScript, all[1].Language)

	major, err := db.ListViolations("r1", ir.SeverityMajor)
	require.NoError(t, err)
	assert.Len(t, major, 2)

	none, err := db.ListViolations("missing", ir.SeverityWarning)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDeleteRunCascades(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.SaveRun(sampleRun("r1", time.Now())))
	require.NoError(t, db.DeleteRun("r1"))
	vs, err := db.ListViolations("r1", ir.SeverityWarning)
	require.NoError(t, err)
	assert.Empty(t, vs)
	assert.ErrorIs(t, db.DeleteRun("r1"), sql.ErrNoRows)
}

func TestWaiversLifecycle(t *testing.T) {
	db := openTest(t)
	id, err := db.CreateWaiver(rules.Waiver{RuleID: "console_log", Path: "web/**", Reason: "debug build"}, "dana")
	require.NoError(t, err)
	_, err = db.CreateWaiver(rules.Waiver{RuleID: "eval", Reason: "old", Expires: time.Now().Add(-time.Hour)}, "dana")
	require.NoError(t, err)

	all, err := db.ListWaivers(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := db.ActiveWaivers()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "console_log", active[0].RuleID)
	assert.Equal(t, "web/**", active[0].Path)
	assert.True(t, active[0].Expires.IsZero())

	require.NoError(t, db.RevokeWaiver(id, "lee"))
	assert.ErrorIs(t, db.RevokeWaiver(id, "lee"), sql.ErrNoRows)

	active, err = db.ActiveWaivers()
	require.NoError(t, err)
	assert.Empty(t, active)

	entries, err := db.ListAudit(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "waiver:revoke", entries[0].Action)
	assert.Equal(t, "lee", entries[0].Actor)
	assert.Equal(t, "waiver:create", entries[2].Action)
}
