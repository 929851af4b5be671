package fix

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrLineDrifted reports that the file no longer holds the line a fix was
// generated for.
var ErrLineDrifted = errors.New("line changed since review")

// Edit replaces one 1-based line of a file with Text, which may span lines.
// A non-empty Original must equal the current line, ignoring surrounding
// whitespace.
type Edit struct {
	Line     int
	Original string
	Text     string
}

// ApplyFile writes edits into path, highest line first so earlier line numbers
// stay valid. Out-of-range or drifted edits are reported and nothing is written.
func ApplyFile(path string, edits []Edit) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(b)
	trailingNL := strings.HasSuffix(content, "\n")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line > sorted[j].Line })
	for _, e := range sorted {
		if e.Line < 1 || e.Line > len(lines) {
			return fmt.Errorf("%s: line %d out of range (1..%d)", path, e.Line, len(lines))
		}
		if e.Original != "" && strings.TrimSpace(lines[e.Line-1]) != strings.TrimSpace(e.Original) {
			return fmt.Errorf("%s:%d: %w", path, e.Line, ErrLineDrifted)
		}
	}
	for _, e := range sorted {
		repl := strings.Split(reindent(lines[e.Line-1], e.Text), "\n")
		lines = append(lines[:e.Line-1], append(repl, lines[e.Line:]...)...)
	}

	out := strings.Join(lines, "\n")
	if trailingNL {
		out += "\n"
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), info.Mode().Perm())
}

// ReadContext returns up to n lines on each side of line in path.
func ReadContext(path string, line, n int) (before, after []string, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if line < 1 || line > len(lines) {
		return nil, nil, fmt.Errorf("%s: line %d out of range", path, line)
	}
	lo := max(0, line-1-n)
	hi := min(len(lines), line+n)
	return lines[lo : line-1], lines[line:hi], nil
}

// reindent gives an unindented fix the indentation of the line it replaces.
func reindent(original, fixed string) string {
	lead := original[:len(original)-len(strings.TrimLeft(original, " \t"))]
	if lead == "" || strings.HasPrefix(fixed, " ") || strings.HasPrefix(fixed, "\t") {
		return fixed
	}
	ls := strings.Split(fixed, "\n")
	for i, l := range ls {
		if strings.TrimSpace(l) != "" {
			ls[i] = lead + l
		}
	}
	return strings.Join(ls, "\n")
}

func resolve(root, file string) string {
	if root == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(root, file)
}
