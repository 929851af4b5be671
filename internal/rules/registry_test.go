package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeryldev/patingin/internal/ir"
)

func regexRule(id string, lang ir.Language, sev ir.Severity, pattern string) Rule {
	return Rule{
		ID:        id,
		Name:      id,
		Language:  lang,
		Severity:  sev,
		Detection: MustRegex(pattern),
		Enabled:   true,
	}
}

func TestBuild_ProjectRuleReplacesBuiltinInPlace(t *testing.T) {
	builtin := []Rule{
		regexRule("dynamic_atom_creation", ir.Elixir, ir.SeverityCritical, `String\.to_atom\(`),
		regexRule("long_parameter_list", ir.Elixir, ir.SeverityMajor, `def\s+\w+\(`),
		regexRule("console_log_production", ir.JavaScript, ir.SeverityWarning, `console\.log`),
	}
	override := regexRule("dynamic_atom_creation", ir.Elixir, ir.SeverityWarning, `to_atom`)
	override.FixSuggestion = "project fix"
	extra := regexRule("no_io_puts", ir.Elixir, ir.SeverityWarning, `IO\.puts`)

	reg, errs := Build(builtin, []Rule{override, extra})
	require.Empty(t, errs)

	ex := reg.RulesFor(ir.Elixir)
	require.Len(t, ex, 3)
	assert.Equal(t, []string{"dynamic_atom_creation", "long_parameter_list", "no_io_puts"},
		[]string{ex[0].ID, ex[1].ID, ex[2].ID})

	got, err := reg.Find("dynamic_atom_creation")
	require.NoError(t, err)
	assert.Equal(t, ir.SeverityWarning, got.Severity)
	assert.Equal(t, "to_atom", got.Detection.Pattern())
	assert.Equal(t, "project fix", got.FixSuggestion)
	assert.Equal(t, ScopeProject, got.Scope)

	js, err := reg.FindIn(ir.JavaScript, "console_log_production")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, js.Scope)
}

func TestBuild_SameIDInOtherLanguageDoesNotReplace(t *testing.T) {
	builtin := []Rule{regexRule("eval_usage", ir.JavaScript, ir.SeverityCritical, `eval\(`)}
	project := []Rule{regexRule("eval_usage", ir.Python, ir.SeverityMajor, `eval\(`)}

	reg, errs := Build(builtin, project)
	require.Empty(t, errs)
	assert.Len(t, reg.RulesFor(ir.JavaScript), 1)
	assert.Len(t, reg.RulesFor(ir.Python), 1)

	js, _ := reg.FindIn(ir.JavaScript, "eval_usage")
	assert.Equal(t, ir.SeverityCritical, js.Severity)
}

func TestRegistry_DisabledRulesAreListedButNotMatched(t *testing.T) {
	off := regexRule("double_equals", ir.JavaScript, ir.SeverityMajor, `==`)
	off.Enabled = false
	reg, errs := Build([]Rule{off, regexRule("eval_usage", ir.JavaScript, ir.SeverityCritical, `eval\(`)}, nil)
	require.Empty(t, errs)

	assert.Len(t, reg.RulesFor(ir.JavaScript), 1)
	assert.Len(t, reg.AllFor(ir.JavaScript), 2)
	_, err := reg.Find("double_equals")
	assert.NoError(t, err)
	assert.Equal(t, 1, reg.Usable())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_BrokenDetectionIsDisabledWithWarning(t *testing.T) {
	broken := Rule{ID: "bad", Language: ir.Rust, Severity: ir.SeverityMajor, Detection: Regex{Source: "("}, Enabled: true}
	reg, errs := Build([]Rule{broken}, nil)
	require.Len(t, errs, 1)

	var lerr *RuleLoadError
	assert.True(t, errors.As(errs[0], &lerr))
	assert.Empty(t, reg.RulesFor(ir.Rust))
	r, err := reg.Find("bad")
	require.NoError(t, err)
	assert.False(t, r.Enabled)
}

func TestRegistry_RejectsMissingIDAndLanguage(t *testing.T) {
	_, errs := Build([]Rule{
		{Language: ir.Zig, Detection: MustRegex("x"), Enabled: true},
		{ID: "x", Language: "cobol", Detection: MustRegex("x"), Enabled: true},
	}, nil)
	assert.Len(t, errs, 2)
}

func TestRegistry_FindMissing(t *testing.T) {
	reg, _ := Build(nil, nil)
	_, err := reg.Find("nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.Zero(t, reg.Usable())
}

func TestRegistry_SearchIsCaseInsensitive(t *testing.T) {
	a := regexRule("dynamic_atom_creation", ir.Elixir, ir.SeverityCritical, `x`)
	a.Name = "Dynamic Atom Creation"
	a.Tags = []string{"Security", "memory"}
	b := regexRule("select_star", ir.SQL, ir.SeverityWarning, `x`)
	b.Description = "Avoid SELECT * in production queries"
	reg, _ := Build([]Rule{a, b}, nil)

	assert.Len(t, reg.Search("ATOM"), 1)
	assert.Len(t, reg.Search("security"), 1)
	found := reg.Search("select *")
	require.Len(t, found, 1)
	assert.Equal(t, "select_star", found[0].ID)
	assert.Len(t, reg.Search(""), 2)
	assert.Empty(t, reg.Search("kubernetes"))
}

func TestRegistry_WithDisabledLeavesOriginalUntouched(t *testing.T) {
	reg, _ := Build([]Rule{regexRule("eval_usage", ir.JavaScript, ir.SeverityCritical, `eval`)}, nil)
	off := reg.WithDisabled([]string{"eval_usage"})

	assert.Len(t, reg.RulesFor(ir.JavaScript), 1)
	assert.Empty(t, off.RulesFor(ir.JavaScript))
}

func TestNewDetection_Defaults(t *testing.T) {
	d, err := NewDetection("ratio", `^\s*#`, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRatioThreshold, d.(Ratio).Threshold)

	d, err = NewDetection("line_count", `\S`, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLineCountThreshold, d.(LineCount).Threshold)

	d, err = NewDetection("regex", `(`, nil)
	var cerr *RegexCompileError
	require.ErrorAs(t, err, &cerr)
	assert.False(t, d.Ready())
	assert.Equal(t, "(", d.Pattern())

	_, err = NewDetection("ast", "x", nil)
	assert.Error(t, err)
}

func TestNewDetection_LineCountThresholdMustBeWhole(t *testing.T) {
	for _, bad := range []float64{0.5, 2.5} {
		d, err := NewDetection("line_count", `\S`, &bad)
		var lerr *RuleLoadError
		require.ErrorAs(t, err, &lerr, "threshold %v", bad)
		assert.Nil(t, d)
	}
	one := 1.0
	d, err := NewDetection("line_count", `\S`, &one)
	require.NoError(t, err)
	assert.Equal(t, 1, d.(LineCount).Threshold)
	assert.True(t, d.Ready())
}

func TestApplyWaivers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vs := []ir.Violation{
		{RuleID: "console_log_production", FilePath: "web/debug/trace.js", Content: "console.log(x)"},
		{RuleID: "console_log_production", FilePath: "web/app.js", Content: "console.log(y)"},
		{RuleID: "eval_usage", FilePath: "web/debug/trace.js", Content: "eval(s)"},
	}
	ws := []Waiver{
		{RuleID: "CONSOLE_LOG_PRODUCTION", Path: "web/debug/**"},
		{RuleID: "eval_usage", Expires: now.Add(-time.Hour)},
	}
	kept, waived := ApplyWaivers(vs, ws, now)
	assert.Equal(t, 1, waived)
	require.Len(t, kept, 2)
	assert.Equal(t, "web/app.js", kept[0].FilePath)
	assert.Equal(t, "eval_usage", kept[1].RuleID)

	kept, waived = ApplyWaivers(vs, []Waiver{{RuleID: "console_log_production", Contains: "LOG(Y"}}, now)
	assert.Equal(t, 1, waived)
	assert.Len(t, kept, 2)
}

func TestSettings_ThresholdFor(t *testing.T) {
	s := DefaultSettings()
	s.LanguageThresholds[ir.JavaScript] = ir.SeverityMajor

	assert.True(t, s.SeverityOK(ir.Violation{Language: ir.Python, Severity: ir.SeverityWarning}))
	assert.False(t, s.SeverityOK(ir.Violation{Language: ir.JavaScript, Severity: ir.SeverityWarning}))
	assert.True(t, s.SeverityOK(ir.Violation{Language: ir.JavaScript, Severity: ir.SeverityCritical}))

	assert.True(t, s.Focused(ir.Zig))
	s.FocusLanguages = []ir.Language{ir.Elixir}
	assert.False(t, s.Focused(ir.Zig))
}
