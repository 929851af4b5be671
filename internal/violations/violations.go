// Package violations turns raw matcher output into the ordered, deduplicated
// list a review reports, and derives summaries and filters from it.
package violations

import (
	"sort"

	"github.com/jeryldev/patingin/internal/ir"
)

type key struct {
	file string
	line int
	rule string
}

// Aggregate drops repeated (file, line, rule) triples, keeping the first, and
// orders the rest by file, line, severity (highest first) and rule id.
func Aggregate(matches []ir.Violation) []ir.Violation {
	seen := make(map[key]struct{}, len(matches))
	out := make([]ir.Violation, 0, len(matches))
	for _, v := range matches {
		k := key{v.FilePath, v.LineNumber, v.RuleID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.RuleID < b.RuleID
	})
	return out
}

func Summarize(vs []ir.Violation) ir.Summary {
	s := ir.Summary{ByRule: map[string]int{}, Files: []string{}}
	files := map[string]struct{}{}
	for _, v := range vs {
		s.Total++
		switch v.Severity {
		case ir.SeverityCritical:
			s.Critical++
		case ir.SeverityMajor:
			s.Major++
		case ir.SeverityWarning:
			s.Warning++
		}
		s.ByRule[v.RuleID]++
		if v.AIFixable {
			s.AutoFixable++
		}
		if _, ok := files[v.FilePath]; !ok {
			files[v.FilePath] = struct{}{}
			s.Files = append(s.Files, v.FilePath)
		}
	}
	sort.Strings(s.Files)
	s.FilesWithViolations = len(s.Files)
	return s
}

// FilterBySeverity keeps violations at or above min, preserving order.
func FilterBySeverity(vs []ir.Violation, min ir.Severity) []ir.Violation {
	return filter(vs, func(v ir.Violation) bool { return v.Severity.AtLeast(min) })
}

// FilterByLanguageThresholds applies a per-language minimum severity. Languages
// absent from thresholds fall back to def.
func FilterByLanguageThresholds(vs []ir.Violation, thresholds map[ir.Language]ir.Severity, def ir.Severity) []ir.Violation {
	return filter(vs, func(v ir.Violation) bool {
		min, ok := thresholds[v.Language]
		if !ok {
			min = def
		}
		return v.Severity.AtLeast(min)
	})
}

func CriticalPresent(vs []ir.Violation) bool {
	for _, v := range vs {
		if v.Severity == ir.SeverityCritical {
			return true
		}
	}
	return false
}

// FileGroup is one file's violations in report order.
type FileGroup struct {
	FilePath   string         `json:"file_path"`
	Violations []ir.Violation `json:"violations"`
}

// GroupByFile groups an aggregated list by file, keeping its order.
func GroupByFile(vs []ir.Violation) []FileGroup {
	var out []FileGroup
	idx := map[string]int{}
	for _, v := range vs {
		i, ok := idx[v.FilePath]
		if !ok {
			i = len(out)
			idx[v.FilePath] = i
			out = append(out, FileGroup{FilePath: v.FilePath})
		}
		out[i].Violations = append(out[i].Violations, v)
	}
	return out
}

func filter(vs []ir.Violation, keep func(ir.Violation) bool) []ir.Violation {
	out := make([]ir.Violation, 0, len(vs))
	for _, v := range vs {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
