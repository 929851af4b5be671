package matcher

import (
	"regexp"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/syntax"
)

// region is an inclusive index range into a hunk's new-side lines.
type region struct{ start, end int }

// regions finds the outermost structural blocks of lines. A block still open
// at the end of the hunk runs to its last line.
func regions(lang ir.Language, lines []ir.ChangedLine) []region {
	switch lang {
	case ir.Python:
		return indentRegions(lines)
	case ir.Elixir:
		return doEndRegions(lines)
	case ir.SQL:
		return statementRegions(lines)
	}
	return braceRegions(lang, lines)
}

func braceRegions(lang ir.Language, lines []ir.ChangedLine) []region {
	var out []region
	depth, open := 0, -1
	for i, l := range lines {
		for _, c := range syntax.Code(l.Content, lang) {
			switch c {
			case '{':
				if depth == 0 {
					open = i
				}
				depth++
			case '}':
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					out = append(out, region{open, i})
				}
			}
		}
	}
	if depth > 0 {
		out = append(out, region{open, len(lines) - 1})
	}
	return out
}

var (
	doOpener = regexp.MustCompile(`\bdo\s*$`)
	endLine  = regexp.MustCompile(`^\s*end\b`)
)

func doEndRegions(lines []ir.ChangedLine) []region {
	var out []region
	depth, open := 0, -1
	for i, l := range lines {
		code := strings.TrimRight(syntax.Code(l.Content, ir.Elixir), " \t")
		switch {
		case doOpener.MatchString(code):
			if depth == 0 {
				open = i
			}
			depth++
		case endLine.MatchString(code) && depth > 0:
			depth--
			if depth == 0 {
				out = append(out, region{open, i})
			}
		}
	}
	if depth > 0 {
		out = append(out, region{open, len(lines) - 1})
	}
	return out
}

func indentRegions(lines []ir.ChangedLine) []region {
	var out []region
	for i := 0; i < len(lines); {
		code := strings.TrimSpace(syntax.Code(lines[i].Content, ir.Python))
		if !strings.HasSuffix(code, ":") {
			i++
			continue
		}
		indent := syntax.IndentWidth(lines[i].Content)
		end := i
		for k := i + 1; k < len(lines); k++ {
			if syntax.Blank(lines[k].Content) {
				continue
			}
			if syntax.IndentWidth(lines[k].Content) <= indent {
				break
			}
			end = k
		}
		if end == i {
			i++
			continue
		}
		out = append(out, region{i, end})
		i = end + 1
	}
	return out
}

func statementRegions(lines []ir.ChangedLine) []region {
	var out []region
	start := -1
	for i, l := range lines {
		if start < 0 {
			if syntax.Blank(l.Content) {
				continue
			}
			start = i
		}
		if strings.HasSuffix(strings.TrimSpace(syntax.Code(l.Content, ir.SQL)), ";") {
			out = append(out, region{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, region{start, len(lines) - 1})
	}
	return out
}
