package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/jeryldev/patingin/internal/ir"
)

const gitHeader = "diff --git "

// DiffParseError is scoped to one file of a multi-file diff.
type DiffParseError struct {
	File string
	Line int // line of the diff text where the file section starts
	Err  error
}

func (e *DiffParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("diff parse (line %d): %v", e.Line, e.Err)
	}
	return fmt.Sprintf("diff parse %s (line %d): %v", e.File, e.Line, e.Err)
}

func (e *DiffParseError) Unwrap() error { return e.Err }

type Diagnostics struct {
	Errors []error
}

func (d Diagnostics) Warnings() []string {
	out := make([]string, 0, len(d.Errors))
	for _, err := range d.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Parse turns unified diff text into ordered file changes. A file whose hunks
// cannot be parsed is reported in Diagnostics and skipped; the rest continue.
func Parse(text string) ([]ir.FileChange, Diagnostics) {
	var diags Diagnostics
	if strings.TrimSpace(text) == "" {
		return nil, diags
	}

	sections := splitSections(text)
	if len(sections) == 0 {
		sections = splitPlainSections(text)
	}

	var out []ir.FileChange
	for _, sec := range sections {
		fc, err := sec.parse()
		if err != nil {
			diags.Errors = append(diags.Errors, err)
			continue
		}
		out = append(out, fc)
	}
	return out, diags
}

type section struct {
	start int // 1-based
	lines []string
	plain bool // starts at "--- " instead of "diff --git"
}

func splitSections(text string) []section {
	lines := strings.Split(text, "\n")
	var out []section
	for i, l := range lines {
		if strings.HasPrefix(l, gitHeader) {
			out = append(out, section{start: i + 1})
		}
		if len(out) > 0 {
			cur := &out[len(out)-1]
			cur.lines = append(cur.lines, l)
		}
	}
	return out
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// splitPlainSections cuts a diff without git headers at each "--- "/"+++ "
// pair found outside a hunk body. Lines outside any file section are dropped.
func splitPlainSections(text string) []section {
	lines := strings.Split(text, "\n")
	var out []section
	oldLeft, newLeft := 0, 0
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		inHunk := oldLeft > 0 || newLeft > 0
		switch {
		case !inHunk && strings.HasPrefix(l, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			out = append(out, section{start: i + 1, plain: true, lines: []string{untimed(l), untimed(lines[i+1])}})
			i++
			continue
		case len(out) == 0:
			continue
		case inHunk:
			switch {
			case strings.HasPrefix(l, "-"):
				oldLeft--
			case strings.HasPrefix(l, "+"):
				newLeft--
			case strings.HasPrefix(l, "\\"):
			default:
				oldLeft--
				newLeft--
			}
		case strings.HasPrefix(l, "@@"):
			oldLeft, newLeft = hunkCounts(l)
		case strings.HasPrefix(l, "\\"):
		default:
			continue
		}
		cur := &out[len(out)-1]
		cur.lines = append(cur.lines, l)
	}
	return out
}

// hunkCounts reads the old and new line counts of a hunk header. A header
// that does not parse counts as empty; ParseFileDiff reports it later.
func hunkCounts(line string) (int, int) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return 0, 0
	}
	count := func(s string) int {
		if s == "" {
			return 1
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	return count(m[1]), count(m[2])
}

// untimed drops the tab-separated timestamp diff(1) writes after a file name.
// go-diff only accepts one timestamp layout.
func untimed(header string) string {
	if i := strings.Index(header, "\t"); i >= 0 {
		return header[:i]
	}
	return header
}

func plainPaths(minus, plus string) (string, string) {
	return stripPrefix(strings.TrimPrefix(minus, "--- ")), stripPrefix(strings.TrimPrefix(plus, "+++ "))
}

func (s section) parse() (ir.FileChange, error) {
	var oldPath, newPath string
	if s.plain {
		oldPath, newPath = plainPaths(s.lines[0], s.lines[1])
		switch {
		case newPath == "/dev/null":
			newPath = oldPath
		case oldPath == "/dev/null":
			oldPath = newPath
		}
	} else {
		oldPath, newPath = headerPaths(s.lines[0])
	}
	var hasHunk, binary, renamed, deleted bool
	for _, l := range s.lines[1:] {
		switch {
		case strings.HasPrefix(l, "@@"):
			hasHunk = true
		case strings.HasPrefix(l, "Binary files ") || strings.HasPrefix(l, "GIT binary patch"):
			binary = true
		case strings.HasPrefix(l, "rename from ") || strings.HasPrefix(l, "copy from "):
			renamed = true
		case strings.HasPrefix(l, "deleted file mode"):
			deleted = true
		}
	}

	if !hasHunk {
		fc := ir.FileChange{FilePath: newPath, Binary: binary, Deleted: deleted}
		if renamed || oldPath != newPath {
			fc.OldPath, fc.Renamed = oldPath, true
		}
		return fc, nil
	}

	body := strings.Join(s.lines, "\n")
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	fd, err := diff.ParseFileDiff([]byte(body))
	if err != nil {
		return ir.FileChange{}, &DiffParseError{File: newPath, Line: s.start, Err: err}
	}
	fc := convert(fd)
	if fc.FilePath == "" {
		fc.FilePath = newPath
	}
	return fc, nil
}

// headerPaths reads "diff --git a/x b/y". Paths containing " b/" are ambiguous
// in this header; the ---/+++ lines win when hunks exist.
func headerPaths(line string) (string, string) {
	rest := strings.TrimPrefix(line, gitHeader)
	if i := strings.Index(rest, " b/"); i >= 0 {
		return stripPrefix(rest[:i]), stripPrefix(rest[i+1:])
	}
	parts := strings.Fields(rest)
	if len(parts) == 2 {
		return stripPrefix(parts[0]), stripPrefix(parts[1])
	}
	return rest, rest
}

func stripPrefix(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func convert(fd *diff.FileDiff) ir.FileChange {
	oldName, newName := stripPrefix(fd.OrigName), stripPrefix(fd.NewName)
	fc := ir.FileChange{FilePath: newName}
	if newName == "/dev/null" || newName == "" {
		fc.FilePath, fc.Deleted = oldName, true
	}
	if oldName != "/dev/null" && oldName != "" && oldName != fc.FilePath {
		fc.OldPath, fc.Renamed = oldName, true
	}
	for _, h := range fd.Hunks {
		fc.Hunks = append(fc.Hunks, convertHunk(fc.FilePath, h))
	}
	return fc
}

// convertHunk walks the hunk body with the new-side counter seeded from the
// header. Removed lines only advance the old side and are not emitted.
func convertHunk(path string, h *diff.Hunk) ir.Hunk {
	out := ir.Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
		Section:  h.Section,
	}
	newNo := out.NewStart
	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return out
	}
	for _, raw := range strings.Split(body, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if raw == "" {
			out.Lines = append(out.Lines, ir.ChangedLine{FilePath: path, NewLineNumber: newNo, Kind: ir.Context})
			newNo++
			continue
		}
		switch raw[0] {
		case '+':
			out.Lines = append(out.Lines, ir.ChangedLine{FilePath: path, NewLineNumber: newNo, Content: raw[1:], Kind: ir.Added})
			newNo++
		case '-':
			// old side only
		case '\\':
			// "\ No newline at end of file"
		default:
			content := raw
			if raw[0] == ' ' {
				content = raw[1:]
			}
			out.Lines = append(out.Lines, ir.ChangedLine{FilePath: path, NewLineNumber: newNo, Content: content, Kind: ir.Context})
			newNo++
		}
	}
	return out
}

// FilterByLanguage drops files whose extension maps to no supported language,
// or to a language outside keep when keep is non-empty.
func FilterByLanguage(files []ir.FileChange, keep []ir.Language) []ir.FileChange {
	allowed := map[ir.Language]bool{}
	for _, l := range keep {
		allowed[l] = true
	}
	var out []ir.FileChange
	for _, fc := range files {
		lang, ok := ir.LanguageFromPath(fc.FilePath)
		if !ok {
			continue
		}
		if len(allowed) > 0 && !allowed[lang] {
			continue
		}
		out = append(out, fc)
	}
	return out
}
