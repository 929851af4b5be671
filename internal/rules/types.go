package rules

import (
	"math"
	"regexp"

	"github.com/jeryldev/patingin/internal/ir"
)

type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

type Example struct {
	Bad         string `json:"bad" yaml:"bad"`
	Good        string `json:"good" yaml:"good"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation"`
}

// Rule is one anti-pattern definition. Identity is ID within Language.
type Rule struct {
	ID            string
	Name          string
	Language      ir.Language
	Severity      ir.Severity
	Description   string
	Detection     Detection
	FixSuggestion string
	SourceURL     string
	AIFixable     bool
	Examples      []Example
	Tags          []string
	Enabled       bool
	Scope         Scope
}

// Usable reports whether the rule may take part in matching.
func (r Rule) Usable() bool {
	return r.Enabled && r.Detection != nil && r.Detection.Ready()
}

type DetectionKind string

const (
	KindRegex     DetectionKind = "regex"
	KindRatio     DetectionKind = "ratio"
	KindLineCount DetectionKind = "line_count"
	KindCustom    DetectionKind = "custom"
)

const (
	DefaultRatioThreshold     = 0.3
	DefaultLineCountThreshold = 10
)

// Detection is the closed set of detection variants: Regex, Ratio, LineCount
// and Custom.
type Detection interface {
	Kind() DetectionKind
	Pattern() string
	Ready() bool
	sealed()
}

// Regex fires once per non-overlapping match on an added line.
type Regex struct {
	Source string
	Expr   *regexp.Regexp
}

// Ratio fires when the share of matching lines in a block exceeds Threshold.
type Ratio struct {
	Source    string
	Expr      *regexp.Regexp
	Threshold float64
}

// LineCount fires when pattern occurrences inside one structural region reach
// Threshold.
type LineCount struct {
	Source    string
	Expr      *regexp.Regexp
	Threshold int
}

// Custom names a heuristic implemented in code.
type Custom struct {
	Name string
}

func (Regex) Kind() DetectionKind     { return KindRegex }
func (Ratio) Kind() DetectionKind     { return KindRatio }
func (LineCount) Kind() DetectionKind { return KindLineCount }
func (Custom) Kind() DetectionKind    { return KindCustom }

func (d Regex) Pattern() string     { return d.Source }
func (d Ratio) Pattern() string     { return d.Source }
func (d LineCount) Pattern() string { return d.Source }
func (d Custom) Pattern() string    { return d.Name }

func (d Regex) Ready() bool     { return d.Expr != nil }
func (d Ratio) Ready() bool     { return d.Expr != nil && d.Threshold > 0 }
func (d LineCount) Ready() bool { return d.Expr != nil && d.Threshold > 0 }
func (d Custom) Ready() bool    { return d.Name != "" }

func (Regex) sealed()     {}
func (Ratio) sealed()     {}
func (LineCount) sealed() {}
func (Custom) sealed()    {}

// NewDetection builds a variant from its schema fields. A pattern that does not
// compile still yields a (not Ready) detection alongside a *RegexCompileError,
// so the owning rule can be listed while staying out of matching.
func NewDetection(kind, pattern string, threshold *float64) (Detection, error) {
	switch DetectionKind(kind) {
	case KindCustom:
		return Custom{Name: pattern}, nil
	case KindRegex, KindRatio, KindLineCount:
	default:
		return nil, &RuleLoadError{Reason: "unknown detection type " + kind}
	}
	if DetectionKind(kind) == KindLineCount && threshold != nil &&
		(*threshold < 1 || *threshold != math.Trunc(*threshold)) {
		return nil, &RuleLoadError{Reason: "line_count threshold must be a whole number >= 1"}
	}

	re, err := regexp.Compile(pattern)
	var cerr error
	if err != nil {
		re, cerr = nil, &RegexCompileError{Pattern: pattern, Err: err}
	}
	switch DetectionKind(kind) {
	case KindRatio:
		t := DefaultRatioThreshold
		if threshold != nil {
			t = *threshold
		}
		return Ratio{Source: pattern, Expr: re, Threshold: t}, cerr
	case KindLineCount:
		t := DefaultLineCountThreshold
		if threshold != nil {
			t = int(*threshold)
		}
		return LineCount{Source: pattern, Expr: re, Threshold: t}, cerr
	}
	return Regex{Source: pattern, Expr: re}, cerr
}

// MustRegex is for tests and literals known to compile.
func MustRegex(pattern string) Regex {
	return Regex{Source: pattern, Expr: regexp.MustCompile(pattern)}
}
