package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
)

// RunDiff compares two runs. Violations are matched by rule, file and trimmed
// line content, so a line that only moved shows up as changed, not new.
type RunDiff struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary diffSummary   `json:"summary"`
	New     []diffFinding `json:"new"`
	Removed []diffFinding `json:"removed"`
	Changed []diffChanged `json:"changed"`
}

type diffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type diffFinding struct {
	RuleID   string `json:"rule_id"`
	File     string `json:"file_path"`
	Line     int    `json:"line_number"`
	Severity string `json:"severity,omitempty"`
	Content  string `json:"content,omitempty"`
}

type diffChanged struct {
	Key     string      `json:"key"`
	Base    diffFinding `json:"base"`
	Head    diffFinding `json:"head"`
	Changed []string    `json:"fields_changed"`
}

func DiffRuns(base, head *ir.Run) RunDiff {
	bm := index(base)
	hm := index(head)

	added := []diffFinding{}
	removed := []diffFinding{}
	changed := []diffChanged{}

	// additions & changes
	for k, hv := range hm {
		bv, ok := bm[k]
		if !ok {
			added = append(added, asDiff(hv))
			continue
		}
		var fields []string
		if bv.Severity != hv.Severity {
			fields = append(fields, "severity")
		}
		if bv.LineNumber != hv.LineNumber {
			fields = append(fields, "line_number")
		}
		if bv.MatchedText != hv.MatchedText {
			fields = append(fields, "matched_text")
		}
		if len(fields) > 0 {
			changed = append(changed, diffChanged{Key: k, Base: asDiff(bv), Head: asDiff(hv), Changed: fields})
		}
	}
	// removals
	for k, bv := range bm {
		if _, ok := hm[k]; !ok {
			removed = append(removed, asDiff(bv))
		}
	}

	// stable sort
	sort.Slice(added, func(i, j int) bool { return less(added[i], added[j]) })
	sort.Slice(removed, func(i, j int) bool { return less(removed[i], removed[j]) })
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	return RunDiff{
		BaseID: base.ID, HeadID: head.ID,
		Summary: diffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
}

func WriteDiffJSON(outDir string, base, head *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, "diff_"+base.ID+"__"+head.ID+".json")
	b, err := json.MarshalIndent(DiffRuns(base, head), "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

// index keys violations; repeated keys (same content on several lines) get
// an ordinal suffix so each occurrence is tracked.
func index(run *ir.Run) map[string]ir.Violation {
	m := map[string]ir.Violation{}
	seen := map[string]int{}
	for _, v := range run.Violations {
		k := keyOf(v)
		seen[k]++
		if n := seen[k]; n > 1 {
			k += "#" + strconv.Itoa(n)
		}
		m[k] = v
	}
	return m
}

func keyOf(v ir.Violation) string {
	sb := strings.Builder{}
	sb.WriteString(v.RuleID)
	sb.WriteByte('|')
	sb.WriteString(v.FilePath)
	sb.WriteByte('|')
	// content drives identity; line numbers shift between runs
	sb.WriteString(strings.Join(strings.Fields(v.Content), " "))
	return sb.String()
}

func asDiff(v ir.Violation) diffFinding {
	return diffFinding{
		RuleID:   v.RuleID,
		File:     v.FilePath,
		Line:     v.LineNumber,
		Severity: v.Severity.String(),
		Content:  v.Content,
	}
}

func less(a, b diffFinding) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.RuleID < b.RuleID
}
