package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/security"
)

const atomDiff = `diff --git a/lib/user.ex b/lib/user.ex
--- a/lib/user.ex
+++ b/lib/user.ex
@@ -10,2 +10,3 @@
   def parse(params) do
+    String.to_atom(params["key"])
   end
`

const logDiff = `diff --git a/web/app.js b/web/app.js
--- a/web/app.js
+++ b/web/app.js
@@ -1,2 +1,3 @@
 const x = 1;
+console.log(x);
 export default x;
`

type result struct {
	code           int
	stdout, stderr string
}

// sandbox isolates user config and history under a temp dir and returns a
// project dir holding the given diffs.
func sandbox(t *testing.T, diffs map[string]string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("PATINGIN_DB_DSN", filepath.Join(home, "history.db"))
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	for name, body := range diffs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func patingin(t *testing.T, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(args, strings.NewReader(""), &out, &errb)
	return result{code: code, stdout: out.String(), stderr: errb.String()}
}

func TestVersion(t *testing.T) {
	r := patingin(t, "version")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "patingin dev")
	assert.Contains(t, r.stdout, ir.Version)
}

func TestUsageErrors(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": atomDiff})
	cases := [][]string{
		{"frobnicate"},
		{"review", "-C", dir, "--staged", "--since", "main"},
		{"review", "-C", dir, "--diff-file", "a.diff", "--severity", "loud"},
		{"review", "-C", dir, "--diff-file", "a.diff", "--language", "cobol"},
		{"review", "-C", dir, "--diff-file", "a.diff", "--dry-run"},
		{"review", "-C", dir, "--no-such-flag"},
		{"history", "show", "-C", dir},
	}
	for _, args := range cases {
		r := patingin(t, args...)
		assert.Equal(t, 2, r.code, "%v: %s", args, r.stderr)
	}
}

func TestReviewCriticalExitsOne(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": atomDiff})
	r := patingin(t, "review", "-C", dir, "--diff-file", filepath.Join(dir, "a.diff"), "--suggest")
	assert.Equal(t, 1, r.code, r.stderr)
	assert.Contains(t, r.stdout, "lib/user.ex")
	assert.Contains(t, r.stdout, "dynamic_atom_creation")
	assert.Contains(t, r.stdout, "1 critical")
	assert.Contains(t, r.stdout, "fix: ")
}

func TestReviewJSONFromStdin(t *testing.T) {
	sandbox(t, nil)
	var out, errb bytes.Buffer
	code := run([]string{"review", "-C", t.TempDir(), "--diff-file", "-", "--json"}, strings.NewReader(logDiff), &out, &errb)
	require.Equal(t, 0, code, errb.String())

	var run ir.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &run))
	require.Len(t, run.Violations, 1)
	assert.Equal(t, "console_log_production", run.Violations[0].RuleID)
	assert.Equal(t, 2, run.Violations[0].LineNumber)
	assert.Equal(t, "file", run.Scope)
}

func TestReviewSeverityAndLanguageFilters(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": atomDiff + logDiff})
	r := patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--json", "--severity", "major")
	var run ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &run))
	for _, v := range run.Violations {
		assert.NotEqual(t, ir.SeverityWarning, v.Severity)
	}

	r = patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--json", "--language", "js")
	assert.Equal(t, 0, r.code, "elixir file not reviewed, so nothing critical")
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &run))
	for _, v := range run.Violations {
		assert.Equal(t, ir.JavaScript, v.Language)
	}
}

func TestReviewOutsideGitFails(t *testing.T) {
	dir := sandbox(t, nil)
	r := patingin(t, "review", "-C", dir)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "not inside a git repository")
}

func TestRulesListAndDetail(t *testing.T) {
	dir := sandbox(t, nil)
	r := patingin(t, "rules", "-C", dir, "--language", "elixir", "--json")
	require.Equal(t, 0, r.code, r.stderr)
	var list []ruleJSON
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &list))
	require.NotEmpty(t, list)
	ids := map[string]bool{}
	for _, x := range list {
		assert.Equal(t, ir.Elixir, x.Language)
		ids[x.ID] = true
	}
	assert.True(t, ids["dynamic_atom_creation"])

	r = patingin(t, "rules", "-C", dir, "--search", "atom")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "dynamic_atom_creation")

	r = patingin(t, "rules", "-C", dir, "--detail", "dynamic_atom_creation")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "Example 1")
	assert.Contains(t, r.stdout, "String.to_existing_atom")

	r = patingin(t, "rules", "-C", dir, "--detail", "nope")
	assert.Equal(t, 1, r.code)
}

func TestRulesAddThenReview(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": logDiff})

	r := patingin(t, "rules", "-C", dir, "--add", "no_default_x", "--language", "js",
		"--pattern", `export default x`, "--severity", "critical")
	require.Equal(t, 0, r.code, r.stderr)

	r = patingin(t, "rules", "-C", dir, "--project", "--json")
	var list []ruleJSON
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "no_default_x", list[0].ID)
	assert.Contains(t, list[0].Tags, "custom")

	// the custom rule only sees context here, so it must not fire
	r = patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--json")
	assert.Equal(t, 0, r.code)
	assert.NotContains(t, r.stdout, "no_default_x")

	r = patingin(t, "rules", "-C", dir, "--remove", "no_default_x")
	assert.Equal(t, 0, r.code, r.stderr)
	r = patingin(t, "rules", "-C", dir, "--remove", "no_default_x")
	assert.Equal(t, 1, r.code)

	r = patingin(t, "rules", "-C", dir, "--add", "bad", "--language", "js", "--pattern", "(")
	assert.Equal(t, 2, r.code)
}

func TestSaveHistoryAndWaivers(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": atomDiff})

	r := patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--save")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "saved run ")

	r = patingin(t, "history", "list", "-C", dir)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "CRITICAL")
	assert.Contains(t, r.stdout, "file")

	r = patingin(t, "history", "show", "latest", "-C", dir, "--json")
	require.Equal(t, 0, r.code, r.stderr)
	var first ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &first))
	assert.Equal(t, 1, first.Summary.Critical)

	r = patingin(t, "waivers", "add", "dynamic_atom_creation", "-C", dir, "--path", "lib/**", "--reason", "migration", "--expires", "720h")
	require.Equal(t, 0, r.code, r.stderr)
	r = patingin(t, "waivers", "list", "-C", dir)
	assert.Contains(t, r.stdout, "dynamic_atom_creation")
	assert.Contains(t, r.stdout, "migration")

	r = patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--save", "--json")
	assert.Equal(t, 0, r.code, "stored waiver suppresses the critical match")
	var second ir.Run
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &second))
	assert.Empty(t, second.Violations)

	r = patingin(t, "history", "diff", first.ID, second.ID, "-C", dir, "--out", filepath.Join(dir, "reports"))
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "0 new, 1 removed")
	assert.Contains(t, r.stderr, "diff report: ")

	r = patingin(t, "waivers", "revoke", "1", "-C", dir)
	assert.Equal(t, 0, r.code, r.stderr)
	r = patingin(t, "waivers", "revoke", "1", "-C", dir)
	assert.Equal(t, 1, r.code)
	r = patingin(t, "waivers", "list", "-C", dir)
	assert.Contains(t, r.stdout, "No waivers.")
}

func TestAutoFixWithScriptedClaude(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixer")
	}
	dir := sandbox(t, map[string]string{"a.diff": atomDiff})
	src := strings.Repeat("\n", 9) + "  def parse(params) do\n    String.to_atom(params[\"key\"])\n  end\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "user.ex"), []byte(src), 0o644))

	script := filepath.Join(dir, "fake-claude")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'String.to_existing_atom(params[\"key\"])'\n"), 0o755))
	cfg := "fix:\n  backend: claude\n  command: " + script + "\n  timeout: 10s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".patingin.yml"), []byte(cfg), 0o644))

	r := patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--auto-fix", "--dry-run")
	assert.Contains(t, r.stdout, "would_apply")
	b, _ := os.ReadFile(filepath.Join(dir, "lib", "user.ex"))
	assert.Equal(t, src, string(b))

	r = patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--auto-fix", "--no-confirm")
	assert.Contains(t, r.stdout, "1 applied")
	assert.Contains(t, r.stdout, "Modified: lib/user.ex")
	b, _ = os.ReadFile(filepath.Join(dir, "lib", "user.ex"))
	assert.Contains(t, string(b), "\n    String.to_existing_atom(params[\"key\"])\n")
}

func TestAutoFixWithoutBackend(t *testing.T) {
	dir := sandbox(t, map[string]string{"a.diff": atomDiff})
	t.Setenv("PATINGIN_FIX_BACKEND", "none")
	r := patingin(t, "review", "-C", dir, "--diff-file", "a.diff", "--auto-fix")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "no fixer available")
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := parseExpiry("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), got)

	got, err = parseExpiry("2026-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	_, err = parseExpiry("-1h", now)
	assert.Error(t, err)
	_, err = parseExpiry("someday", now)
	assert.Error(t, err)
}

func TestServeNewToken(t *testing.T) {
	dir := sandbox(t, nil)
	r := patingin(t, "serve", "-C", dir, "--new-token")
	require.Equal(t, 0, r.code, r.stderr)

	var tok, hash string
	for _, line := range strings.Split(strings.TrimSpace(r.stdout), "\n") {
		if v, ok := strings.CutPrefix(line, "token: "); ok {
			tok = v
		}
		if v, ok := strings.CutPrefix(line, "token_hash: "); ok {
			hash = v
		}
	}
	require.NotEmpty(t, tok)
	assert.True(t, security.CheckToken(hash, tok))
}
