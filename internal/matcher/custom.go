package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/syntax"
)

var builtinCustom = map[string]CustomFunc{
	"unused_import":        unusedImports,
	"excessive_extraction": excessiveExtraction,
	"mixed_indentation":    mixedIndentation,
	"always_true_function": alwaysTrue,
}

// ExtractionLimit is the number of variables a function head may bind from a
// map before excessive_extraction fires.
const ExtractionLimit = 3

var (
	pyImport = regexp.MustCompile(`^\s*import\s+(.+)$`)
	pyFrom   = regexp.MustCompile(`^\s*from\s+\S+\s+import\s+(.+)$`)
	jsImport = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(.+?)\s+from\s+['"]`)
	exAlias  = regexp.MustCompile(`^\s*alias\s+([\w.]+)(?:\s*,\s*as:\s*(\w+))?\s*$`)

	defHead   = regexp.MustCompile(`^\s*defp?\s+\w+[?!]?\s*\((.*)`)
	extracted = regexp.MustCompile(`(?:\b[a-z_]\w*:|"[^"]*"\s*=>)\s*[a-z_]\w*\b`)
)

// unusedImports reports imports on added lines whose bound names never appear
// on a later new-side line. Only lines visible in the diff are considered.
func unusedImports(lang ir.Language, fc ir.FileChange) []Match {
	lines := fc.NewSideLines()
	var out []Match
	for i, l := range lines {
		if l.Kind != ir.Added {
			continue
		}
		for _, name := range importedNames(lang, l.Content) {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
			used := false
			for _, later := range lines[i+1:] {
				if re.MatchString(syntax.Code(later.Content, lang)) {
					used = true
					break
				}
			}
			if !used {
				out = append(out, Match{Line: l.NewLineNumber, Text: name})
			}
		}
	}
	return out
}

func importedNames(lang ir.Language, line string) []string {
	code := line
	if lang == ir.Python || lang == ir.Elixir {
		code = syntax.Code(line, lang)
	}
	switch lang {
	case ir.Python:
		if m := pyFrom.FindStringSubmatch(code); m != nil {
			return aliasList(strings.Trim(strings.TrimSpace(m[1]), "()"), true)
		}
		if m := pyImport.FindStringSubmatch(code); m != nil {
			return aliasList(m[1], false)
		}
	case ir.JavaScript, ir.TypeScript:
		if m := jsImport.FindStringSubmatch(code); m != nil {
			return jsClauseNames(m[1])
		}
	case ir.Elixir:
		if m := exAlias.FindStringSubmatch(code); m != nil {
			if m[2] != "" {
				return []string{m[2]}
			}
			parts := strings.Split(m[1], ".")
			return []string{parts[len(parts)-1]}
		}
	}
	return nil
}

// aliasList splits "a, b as c" into bound names. Dotted module paths bind
// their first segment unless members is set.
func aliasList(list string, members bool) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" {
			continue
		}
		if i := strings.Index(part, " as "); i >= 0 {
			out = append(out, strings.TrimSpace(part[i+4:]))
			continue
		}
		if !members {
			part = strings.Split(part, ".")[0]
		}
		out = append(out, part)
	}
	return out
}

func jsClauseNames(clause string) []string {
	var out []string
	head := clause
	if open := strings.Index(clause, "{"); open >= 0 {
		head = clause[:open]
		inner := clause[open+1:]
		if end := strings.Index(inner, "}"); end >= 0 {
			inner = inner[:end]
		}
		for _, name := range aliasList(inner, true) {
			out = append(out, strings.TrimPrefix(name, "type "))
		}
	}
	head = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(head), ","))
	switch {
	case strings.HasPrefix(head, "* as "):
		out = append(out, strings.TrimSpace(head[5:]))
	case head != "":
		out = append(out, head)
	}
	return out
}

// excessiveExtraction flags Elixir function heads that bind more than
// ExtractionLimit variables out of map patterns.
func excessiveExtraction(lang ir.Language, fc ir.FileChange) []Match {
	if lang != ir.Elixir {
		return nil
	}
	var out []Match
	for _, l := range fc.AddedLines() {
		m := defHead.FindStringSubmatch(l.Content)
		if m == nil {
			continue
		}
		if n := len(extracted.FindAllString(params(m[1]), -1)); n > ExtractionLimit {
			out = append(out, Match{Line: l.NewLineNumber, Text: fmt.Sprintf("%d extracted variables", n)})
		}
	}
	return out
}

// params cuts s at the parenthesis closing the function head.
func params(s string) string {
	depth := 0
	for i, c := range s {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return s[:i]
			}
			depth--
		}
	}
	return s
}

// mixedIndentation flags added lines that mix tabs and spaces in their
// indentation, or that use the minority style of the visible new-side lines.
func mixedIndentation(_ ir.Language, fc ir.FileChange) []Match {
	lines := fc.NewSideLines()
	tabs, spaces := 0, 0
	for _, l := range lines {
		switch style(l.Content) {
		case '\t':
			tabs++
		case ' ':
			spaces++
		}
	}
	var dominant byte
	switch {
	case tabs > spaces:
		dominant = '\t'
	case spaces > tabs:
		dominant = ' '
	}

	var out []Match
	for _, l := range lines {
		if l.Kind != ir.Added {
			continue
		}
		switch s := style(l.Content); {
		case s == 'm':
			out = append(out, Match{Line: l.NewLineNumber, Text: "tabs and spaces mixed"})
		case s != 0 && dominant != 0 && s != dominant:
			out = append(out, Match{Line: l.NewLineNumber, Text: "indentation differs from the rest of the file"})
		}
	}
	return out
}

// style classifies indentation: '\t', ' ', 'm' for mixed, 0 for none.
func style(line string) byte {
	if syntax.Blank(line) {
		return 0
	}
	lead := syntax.Leading(line)
	hasTab, hasSpace := strings.Contains(lead, "\t"), strings.Contains(lead, " ")
	switch {
	case hasTab && hasSpace:
		return 'm'
	case hasTab:
		return '\t'
	case hasSpace:
		return ' '
	}
	return 0
}

var (
	fnHead = map[ir.Language]*regexp.Regexp{
		ir.Python:     regexp.MustCompile(`^\s*def\s+\w+\s*\(.*\)\s*(?:->\s*[\w\[\], .]+)?:\s*$`),
		ir.JavaScript: regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\w*\s*\(.*\)\s*\{\s*$`),
		ir.TypeScript: regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\w*\s*\(.*\)\s*(?::\s*\w+\s*)?\{\s*$`),
		ir.Elixir:     regexp.MustCompile(`^\s*defp?\s+\w+[?!]?\s*(?:\(.*\))?\s+do\s*$`),
		ir.Rust:       regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+\w+.*->\s*bool\s*\{\s*$`),
	}
	exOneLiner = regexp.MustCompile(`^\s*defp?\s+\w+[?!]?\s*(?:\(.*\))?\s*,\s*do:\s*true\s*$`)
	trueBody   = regexp.MustCompile(`^\s*(?:return\s+)?(?:true|True)\s*;?\s*$`)
)

// alwaysTrue flags added function heads whose first body line returns a
// literal true.
func alwaysTrue(lang ir.Language, fc ir.FileChange) []Match {
	head, ok := fnHead[lang]
	if !ok {
		return nil
	}
	lines := fc.NewSideLines()
	var out []Match
	for i, l := range lines {
		if l.Kind != ir.Added {
			continue
		}
		code := syntax.Code(l.Content, lang)
		if lang == ir.Elixir && exOneLiner.MatchString(code) {
			out = append(out, Match{Line: l.NewLineNumber, Text: strings.TrimSpace(l.Content)})
			continue
		}
		if !head.MatchString(code) {
			continue
		}
		for _, next := range lines[i+1:] {
			if syntax.Blank(next.Content) {
				continue
			}
			if trueBody.MatchString(syntax.Code(next.Content, lang)) {
				out = append(out, Match{Line: l.NewLineNumber, Text: strings.TrimSpace(l.Content)})
			}
			break
		}
	}
	return out
}
