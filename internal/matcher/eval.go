package matcher

import (
	"fmt"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

// MinRatioLines is the smallest block, in non-blank lines, a ratio is taken
// over. Smaller blocks make any single line look like a majority.
const MinRatioLines = 4

func evalRegex(d rules.Regex, fc ir.FileChange) []hit {
	var out []hit
	for _, l := range fc.AddedLines() {
		for _, loc := range d.Expr.FindAllStringIndex(l.Content, -1) {
			out = append(out, hit{line: l, text: l.Content[loc[0]:loc[1]]})
		}
	}
	return out
}

// evalRatio treats each hunk's new side as one block.
func evalRatio(d rules.Ratio, fc ir.FileChange) []hit {
	var out []hit
	for _, h := range fc.Hunks {
		lines := h.NewSide()
		total, matched, first := 0, 0, -1
		for i, l := range lines {
			if strings.TrimSpace(l.Content) == "" {
				continue
			}
			total++
			if d.Expr.MatchString(l.Content) {
				matched++
			}
			if l.Kind == ir.Added && first < 0 {
				first = i
			}
		}
		if first < 0 || total < MinRatioLines {
			continue
		}
		ratio := float64(matched) / float64(total)
		if ratio > d.Threshold {
			out = append(out, hit{line: lines[first], text: fmt.Sprintf("ratio=%.2f (%d/%d)", ratio, matched, total)})
		}
	}
	return out
}

// evalLineCount counts pattern occurrences inside each outermost structural
// region of a hunk. The hit lands on the opening line when it was added,
// otherwise on the first added line of the region.
func evalLineCount(d rules.LineCount, lang ir.Language, fc ir.FileChange) []hit {
	var out []hit
	for _, h := range fc.Hunks {
		lines := h.NewSide()
		for _, reg := range regions(lang, lines) {
			count := 0
			var target *ir.ChangedLine
			for i := reg.start; i <= reg.end; i++ {
				count += len(d.Expr.FindAllStringIndex(lines[i].Content, -1))
				if lines[i].Kind == ir.Added && target == nil {
					target = &lines[i]
				}
			}
			if target == nil || count < d.Threshold {
				continue
			}
			if lines[reg.start].Kind == ir.Added {
				target = &lines[reg.start]
			}
			out = append(out, hit{line: *target, text: fmt.Sprintf("count=%d threshold=%d", count, d.Threshold)})
		}
	}
	return out
}

// Match is a custom heuristic result: a new-side line number and the text that
// triggered it.
type Match struct {
	Line int
	Text string
}

// CustomFunc sees the whole file change and reports matches by line number.
type CustomFunc func(lang ir.Language, fc ir.FileChange) []Match

// addedOnly resolves custom matches to added lines and drops the rest.
func addedOnly(fc ir.FileChange, ms []Match) []hit {
	if len(ms) == 0 {
		return nil
	}
	added := map[int]ir.ChangedLine{}
	for _, l := range fc.AddedLines() {
		added[l.NewLineNumber] = l
	}
	var out []hit
	for _, m := range ms {
		if l, ok := added[m.Line]; ok {
			out = append(out, hit{line: l, text: m.Text})
		}
	}
	return out
}
