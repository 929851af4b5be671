package fix

import (
	"regexp"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/syntax"
)

const (
	BaseConfidence = 0.7
	// HighConfidence is the lowest score a fix may carry and still be offered
	// for automatic application.
	HighConfidence = 0.7
	// InvalidCap bounds the confidence of a structurally invalid fix.
	InvalidCap = 0.49
)

var (
	proseLead = regexp.MustCompile(`^(?i:here is|here's|note:|this code|the fix)|^I(\s|'(ve|m|ll)\b)`)
	codeChars = regexp.MustCompile("[(){}\\[\\];=<>#/\"'`|&]")
	trailing  = []string{",", "=", "+", "-", "/", "&&", "||", "|>", ".", "(", "["}
)

// Score rates an AI-produced fix. StructurallyValid reflects the structural
// check alone; Confidence stays within [0,1] for any input.
func Score(lang ir.Language, original, fixed string) ir.FixResult {
	res := ir.FixResult{OriginalText: original, FixedText: fixed}
	res.StructurallyValid = structural(lang, fixed)

	c := BaseConfidence
	if res.StructurallyValid {
		c += 0.1
	}
	if !malformed(lang, fixed) {
		c += 0.1
	}
	if prose(fixed) {
		c -= 0.3
	}
	c = clamp(c, 0, 1)
	if !res.StructurallyValid && c > InvalidCap {
		c = InvalidCap
	}
	res.Confidence = c
	return res
}

// Safe reports whether a scored fix may be applied without review.
func Safe(r ir.FixResult, threshold float64) bool {
	return r.StructurallyValid && r.Confidence >= threshold
}

func structural(lang ir.Language, text string) bool {
	if syntax.Blank(text) {
		return false
	}
	if !syntax.Balanced(text, lang) {
		return false
	}
	if lang == ir.Python {
		return consistentIndent(text)
	}
	return true
}

// consistentIndent requires one indentation character, widths that are
// multiples of a single unit, and at most one level of increase per line.
func consistentIndent(text string) bool {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if !syntax.Blank(l) {
			lines = append(lines, l)
		}
	}
	var sawTab, sawSpace bool
	base, unit := -1, 0
	for _, l := range lines {
		lead := syntax.Leading(l)
		sawTab = sawTab || strings.Contains(lead, "\t")
		sawSpace = sawSpace || strings.Contains(lead, " ")
		if w := syntax.IndentWidth(l); base < 0 || w < base {
			base = w
		}
	}
	if sawTab && sawSpace {
		return false
	}
	for _, l := range lines {
		if d := syntax.IndentWidth(l) - base; d > 0 && (unit == 0 || d < unit) {
			unit = d
		}
	}
	if unit == 0 {
		return true
	}
	prev := 0
	for _, l := range lines {
		d := syntax.IndentWidth(l) - base
		if d%unit != 0 || d-prev > unit {
			return false
		}
		prev = d
	}
	return true
}

func malformed(lang ir.Language, text string) bool {
	if syntax.UnbalancedQuotes(text, lang) {
		return true
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		code := strings.TrimSpace(syntax.Code(lines[i], lang))
		if code == "" {
			continue
		}
		for _, op := range trailing {
			if strings.HasSuffix(code, op) {
				return true
			}
		}
		return false
	}
	return false
}

func prose(text string) bool {
	first := true
	for _, l := range strings.Split(text, "\n") {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "```") {
			return true
		}
		if first && proseLead.MatchString(t) {
			return true
		}
		first = false
		if strings.HasSuffix(t, ".") && len(strings.Fields(t)) >= 3 && !codeChars.MatchString(t) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
