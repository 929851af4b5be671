package matcher

import (
	"log/slog"
	"sync"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

// hit is one match before it is turned into a violation. line is always an
// added line.
type hit struct {
	line ir.ChangedLine
	text string
}

// Matcher evaluates a registry's rules against file changes. It holds no
// per-file state and is safe for concurrent use.
type Matcher struct {
	reg    *rules.Registry
	custom map[string]CustomFunc
	logger *slog.Logger

	warnOnce sync.Map // custom names already reported as unknown
}

type Option func(*Matcher)

// WithCustom registers or replaces a named heuristic.
func WithCustom(name string, fn CustomFunc) Option {
	return func(m *Matcher) { m.custom[name] = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

func New(reg *rules.Registry, opts ...Option) *Matcher {
	m := &Matcher{reg: reg, custom: map[string]CustomFunc{}, logger: slog.Default()}
	for name, fn := range builtinCustom {
		m.custom[name] = fn
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match evaluates every enabled rule for the file's language against its added
// lines. Files with no hunks or an unknown extension yield nothing.
func (m *Matcher) Match(fc ir.FileChange) []ir.Violation {
	if len(fc.Hunks) == 0 {
		return nil
	}
	lang, ok := ir.LanguageFromPath(fc.FilePath)
	if !ok {
		return nil
	}
	var out []ir.Violation
	for _, r := range m.reg.RulesFor(lang) {
		for _, h := range m.evaluate(r, lang, fc) {
			out = append(out, violationFor(r, lang, h))
		}
	}
	return out
}

func (m *Matcher) evaluate(r rules.Rule, lang ir.Language, fc ir.FileChange) []hit {
	switch d := r.Detection.(type) {
	case rules.Regex:
		return evalRegex(d, fc)
	case rules.Ratio:
		return evalRatio(d, fc)
	case rules.LineCount:
		return evalLineCount(d, lang, fc)
	case rules.Custom:
		fn, ok := m.custom[d.Name]
		if !ok {
			if _, seen := m.warnOnce.LoadOrStore(d.Name, true); !seen {
				m.logger.Warn("unknown custom detection", "rule", r.ID, "name", d.Name)
			}
			return nil
		}
		return addedOnly(fc, fn(lang, fc))
	}
	return nil
}

func violationFor(r rules.Rule, lang ir.Language, h hit) ir.Violation {
	return ir.Violation{
		RuleID:        r.ID,
		RuleName:      r.Name,
		Language:      lang,
		FilePath:      h.line.FilePath,
		LineNumber:    h.line.NewLineNumber,
		MatchedText:   h.text,
		Content:       h.line.Content,
		Severity:      r.Severity,
		FixSuggestion: r.FixSuggestion,
		AIFixable:     r.AIFixable,
	}
}
