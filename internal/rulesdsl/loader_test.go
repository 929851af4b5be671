package rulesdsl

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

func TestBuiltin_LoadsEveryLanguageWithoutErrors(t *testing.T) {
	rs, errs := Builtin()
	require.Empty(t, errs)

	reg, berrs := rules.Build(rs, nil)
	require.Empty(t, berrs)
	for _, l := range ir.Languages {
		assert.NotEmpty(t, reg.RulesFor(l), "language %s", l)
	}

	atom, err := reg.Find("dynamic_atom_creation")
	require.NoError(t, err)
	assert.Equal(t, ir.Elixir, atom.Language)
	assert.Equal(t, ir.SeverityCritical, atom.Severity)
	assert.True(t, atom.AIFixable)
	assert.Equal(t, rules.KindRegex, atom.Detection.Kind())
	assert.NotEmpty(t, atom.Examples)

	for _, id := range []string{"long_parameter_list", "sql_injection_ecto", "console_log_production", "eval_usage", "double_equals"} {
		_, err := reg.Find(id)
		assert.NoError(t, err, id)
	}

	unused, err := reg.FindIn(ir.Python, "unused_import")
	require.NoError(t, err)
	assert.False(t, unused.Enabled)
	assert.Equal(t, rules.Custom{Name: "unused_import"}, unused.Detection)
}

func TestParse_BareListAndDefaults(t *testing.T) {
	data := []byte(`
- id: no_dbg
  name: dbg left behind
  language: rust
  severity: warning
  description: dbg! output
  detection_method:
    type: ratio
    pattern: 'dbg!'
  fix_suggestion: remove it
  ai_fixable: true
  examples: []
  tags: [debug]
`)
	rs, errs := Parse(data, "inline", rules.ScopeProject)
	require.Empty(t, errs)
	require.Len(t, rs, 1)
	r := rs[0]
	assert.True(t, r.Enabled, "enabled defaults to true")
	assert.True(t, r.AIFixable)
	assert.Equal(t, rules.ScopeProject, r.Scope)
	ratio, ok := r.Detection.(rules.Ratio)
	require.True(t, ok)
	assert.Equal(t, rules.DefaultRatioThreshold, ratio.Threshold)
}

func TestParse_BadRegexIsDisabledWithWarning(t *testing.T) {
	data := []byte(`rules:
  - id: invalid_regex_rule
    name: Broken
    language: javascript
    severity: major
    detection_method: {type: regex, pattern: '[unclosed'}
  - id: fine
    language: javascript
    severity: warning
    detection_method: {type: regex, pattern: 'debugger'}
`)
	rs, errs := Parse(data, "pack.yml", rules.ScopeGlobal)
	require.Len(t, errs, 1)
	var cerr *rules.RegexCompileError
	require.True(t, errors.As(errs[0], &cerr))
	assert.Equal(t, "invalid_regex_rule", cerr.RuleID)

	require.Len(t, rs, 2)
	assert.False(t, rs[0].Enabled)
	assert.True(t, rs[1].Enabled)

	reg, berrs := rules.Build(rs, nil)
	assert.Empty(t, berrs)
	assert.Len(t, reg.RulesFor(ir.JavaScript), 1)
	assert.Len(t, reg.AllFor(ir.JavaScript), 2)
}

func TestParse_SchemaViolations(t *testing.T) {
	data := []byte(`rules:
  - id: wrong_severity
    language: python
    severity: blocker
    detection_method: {type: regex, pattern: 'x'}
  - id: wrong_kind
    language: python
    severity: major
    detection_method: {type: ast, pattern: 'x'}
  - name: no id
    language: python
    severity: major
    detection_method: {type: regex, pattern: 'x'}
`)
	rs, errs := Parse(data, "pack.yml", rules.ScopeGlobal)
	assert.Len(t, errs, 3)
	require.Len(t, rs, 2)
	for _, r := range rs {
		assert.False(t, r.Enabled, r.ID)
		var lerr *rules.RuleLoadError
		assert.True(t, errors.As(errs[0], &lerr))
	}
}

func TestParse_FractionalLineCountThresholdDisablesRule(t *testing.T) {
	data := []byte(`rules:
  - id: tiny_threshold
    language: python
    severity: major
    detection_method: {type: line_count, pattern: 'x', threshold: 0.5}
`)
	rs, errs := Parse(data, "pack.yml", rules.ScopeGlobal)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "line_count threshold")
	require.Len(t, rs, 1)
	assert.False(t, rs[0].Enabled)
	assert.False(t, rs[0].Detection.Ready())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, errs := Parse([]byte("rules: [::"), "broken.yml", rules.ScopeGlobal)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken.yml")
}

func TestUserRules_AddSaveLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patingin", "rules.yml")

	u, err := LoadUserRules(path)
	require.NoError(t, err)
	assert.Empty(t, u.Projects)

	require.NoError(t, u.Add("shop", "/src/shop", ir.JavaScript, UserRule{
		ID: "no_console_log", Description: "no console.log", Pattern: `console\.log`, Severity: "major", Fix: "remove",
	}))
	require.NoError(t, u.Add("shop", "/src/shop", ir.Elixir, UserRule{
		ID: "dynamic_atom_creation", Pattern: `to_atom`, Severity: "warning",
	}))
	assert.Error(t, u.Add("shop", "/src/shop", ir.Elixir, UserRule{ID: "bad", Pattern: `(`, Severity: "major"}))
	assert.Error(t, u.Add("shop", "/src/shop", ir.Elixir, UserRule{ID: "bad", Pattern: `x`, Severity: "blocker"}))
	require.NoError(t, u.Save(path))

	loaded, err := LoadUserRules(path)
	require.NoError(t, err)
	custom, errs := loaded.RulesFor("", "/src/shop")
	require.Empty(t, errs)
	require.Len(t, custom, 2)
	assert.Equal(t, ir.Elixir, custom[0].Language, "languages are visited in sorted order")
	assert.Contains(t, custom[1].Tags, "custom")

	builtin, _ := Builtin()
	reg, _ := rules.Build(builtin, custom)
	atom, err := reg.FindIn(ir.Elixir, "dynamic_atom_creation")
	require.NoError(t, err)
	assert.Equal(t, ir.SeverityWarning, atom.Severity)
	assert.Equal(t, rules.ScopeProject, atom.Scope)

	assert.True(t, loaded.Remove("shop", "no_console_log"))
	assert.False(t, loaded.Remove("shop", "no_console_log"))
	assert.False(t, loaded.Remove("other", "x"))
	left, _ := loaded.RulesFor("shop", "")
	assert.Len(t, left, 1)
}

func TestDefaultUserRulesPath_HonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "patingin", "rules.yml"), DefaultUserRulesPath())
}
