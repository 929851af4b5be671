package ir

import (
	"path/filepath"
	"sort"
	"strings"
)

type Language string

const (
	Elixir     Language = "elixir"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
	Rust       Language = "rust"
	Zig        Language = "zig"
	SQL        Language = "sql"
)

// Languages lists every supported language in canonical order.
var Languages = []Language{Elixir, JavaScript, TypeScript, Python, Rust, Zig, SQL}

var extensions = map[string]Language{
	".ex":    Elixir,
	".exs":   Elixir,
	".js":    JavaScript,
	".jsx":   JavaScript,
	".mjs":   JavaScript,
	".cjs":   JavaScript,
	".ts":    TypeScript,
	".tsx":   TypeScript,
	".py":    Python,
	".pyw":   Python,
	".pyi":   Python,
	".rs":    Rust,
	".zig":   Zig,
	".sql":   SQL,
	".psql":  SQL,
	".mysql": SQL,
}

var aliases = map[string]Language{
	"ex":  Elixir,
	"js":  JavaScript,
	"ts":  TypeScript,
	"py":  Python,
	"rs":  Rust,
	"pg":  SQL,
	"sql": SQL,
}

// LanguageFromPath resolves a language from the file extension. Unknown
// extensions report false.
func LanguageFromPath(path string) (Language, bool) {
	l, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// ParseLanguage accepts canonical names and short aliases ("js", "py").
func ParseLanguage(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range Languages {
		if string(l) == s {
			return l, true
		}
	}
	l, ok := aliases[s]
	return l, ok
}

// Extensions returns the extensions mapped to l.
func (l Language) Extensions() []string {
	var out []string
	for ext, lang := range extensions {
		if lang == l {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// BraceDelimited reports whether blocks are delimited by brackets rather than
// indentation.
func (l Language) BraceDelimited() bool { return l != Python }
