package rulesdsl

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

//go:embed builtin/*.yml
var builtinFS embed.FS

var validate = validator.New(validator.WithRequiredStructEnabled())

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	ID          string       `yaml:"id" validate:"required"`
	Name        string       `yaml:"name"`
	Language    string       `yaml:"language" validate:"required,oneof=elixir javascript typescript python rust zig sql"`
	Severity    string       `yaml:"severity" validate:"required,oneof=critical major warning"`
	Description string       `yaml:"description"`
	Detection   dslDetection `yaml:"detection_method"`

	FixSuggestion string       `yaml:"fix_suggestion"`
	SourceURL     string       `yaml:"source_url" validate:"omitempty,url"`
	ClaudeFixable *bool        `yaml:"claude_code_fixable"`
	AIFixable     *bool        `yaml:"ai_fixable"`
	Examples      []dslExample `yaml:"examples"`
	Tags          []string     `yaml:"tags"`
	Enabled       *bool        `yaml:"enabled"`
}

type dslDetection struct {
	Type      string   `yaml:"type" validate:"required,oneof=regex ratio line_count custom"`
	Pattern   string   `yaml:"pattern" validate:"required"`
	Threshold *float64 `yaml:"threshold" validate:"omitempty,gt=0"`
}

type dslExample struct {
	Bad         string `yaml:"bad"`
	Good        string `yaml:"good"`
	Explanation string `yaml:"explanation"`
}

// Builtin loads the embedded corpora, one file per language, in canonical
// language order.
func Builtin() ([]rules.Rule, []error) {
	var out []rules.Rule
	var errs []error
	for _, lang := range ir.Languages {
		name := "builtin/" + string(lang) + ".yml"
		b, err := builtinFS.ReadFile(name)
		if err != nil {
			continue
		}
		rs, es := Parse(b, name, rules.ScopeGlobal)
		out = append(out, rs...)
		errs = append(errs, es...)
	}
	return out, errs
}

// LoadFile reads a full-schema rule pack from disk.
func LoadFile(path string, scope rules.Scope) ([]rules.Rule, []error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&rules.RuleLoadError{Origin: path, Reason: "read rules pack", Err: err}}
	}
	return Parse(b, path, scope)
}

// Parse decodes a rule pack, either {rules: [...]} or a bare list. Rules with
// an invalid schema or pattern are returned disabled alongside an error, so
// they stay listable; rules without an id or language are dropped.
func Parse(data []byte, origin string, scope rules.Scope) ([]rules.Rule, []error) {
	docs, err := decode(data)
	if err != nil {
		return nil, []error{&rules.RuleLoadError{Origin: origin, Reason: "parse yaml", Err: err}}
	}
	var out []rules.Rule
	var errs []error
	for _, d := range docs {
		r, err := d.compile(origin, scope)
		if err != nil {
			errs = append(errs, err)
		}
		if r.ID == "" || r.Language == "" {
			continue
		}
		out = append(out, r)
	}
	return out, errs
}

func decode(data []byte) ([]dslRule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '-' || trimmed[0] == '[' {
		var list []dslRule
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var pack dslPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	return pack.Rules, nil
}

func (d dslRule) compile(origin string, scope rules.Scope) (rules.Rule, error) {
	r := rules.Rule{
		ID:            strings.TrimSpace(d.ID),
		Name:          d.Name,
		Description:   strings.TrimSpace(d.Description),
		FixSuggestion: strings.TrimSpace(d.FixSuggestion),
		SourceURL:     d.SourceURL,
		Tags:          d.Tags,
		Enabled:       d.Enabled == nil || *d.Enabled,
		Scope:         scope,
	}
	if r.Name == "" {
		r.Name = r.ID
	}
	if lang, ok := ir.ParseLanguage(d.Language); ok {
		r.Language = lang
	}
	switch {
	case d.AIFixable != nil:
		r.AIFixable = *d.AIFixable
	case d.ClaudeFixable != nil:
		r.AIFixable = *d.ClaudeFixable
	}
	for _, ex := range d.Examples {
		r.Examples = append(r.Examples, rules.Example{Bad: ex.Bad, Good: ex.Good, Explanation: ex.Explanation})
	}
	r.Severity, _ = ir.ParseSeverity(d.Severity)
	if r.Severity == ir.SeverityUnknown {
		r.Severity = ir.SeverityWarning
	}

	var errs []error
	if err := validate.Struct(d); err != nil {
		errs = append(errs, &rules.RuleLoadError{RuleID: r.ID, Origin: origin, Reason: "invalid schema", Err: describe(err)})
	}
	det, err := rules.NewDetection(d.Detection.Type, d.Detection.Pattern, d.Detection.Threshold)
	if err != nil {
		var cerr *rules.RegexCompileError
		if errors.As(err, &cerr) {
			cerr.RuleID = r.ID
			errs = append(errs, cerr)
		} else if len(errs) == 0 {
			errs = append(errs, &rules.RuleLoadError{RuleID: r.ID, Origin: origin, Err: err})
		}
	}
	if det == nil {
		det = rules.Regex{Source: d.Detection.Pattern}
	}
	r.Detection = det
	if len(errs) > 0 {
		r.Enabled = false
		return r, errors.Join(errs...)
	}
	return r, nil
}

// describe flattens validator output into field=tag pairs.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
