// Package syntax holds the small line-level lexing helpers shared by the
// matcher and the fix scorer. Nothing here parses a language; it only strips
// string literals and comments well enough to count brackets and indentation.
package syntax

import (
	"strings"
	"unicode/utf8"

	"github.com/jeryldev/patingin/internal/ir"
)

// LineComment returns the single-line comment marker of lang.
func LineComment(lang ir.Language) string {
	switch lang {
	case ir.Python, ir.Elixir:
		return "#"
	case ir.SQL:
		return "--"
	}
	return "//"
}

// singleQuoted reports whether ' delimits strings in lang. Rust lifetimes and
// Elixir charlists make it unreliable there.
func singleQuoted(lang ir.Language) bool {
	switch lang {
	case ir.JavaScript, ir.TypeScript, ir.Python, ir.SQL:
		return true
	}
	return false
}

// charLiteral returns the byte length of a character literal starting at
// line[i], or 0. It covers Rust 'x', '\n' and '\u{..}' (lifetimes like 'a are
// not literals) and Elixir ?x and ?\x.
func charLiteral(line string, i int, lang ir.Language) int {
	switch {
	case lang == ir.Rust && line[i] == '\'':
		if i+1 >= len(line) {
			return 0
		}
		if line[i+1] == '\\' {
			for j := i + 3; j < len(line) && j <= i+11; j++ {
				if line[j] == '\'' {
					return j - i + 1
				}
			}
			return 0
		}
		_, n := utf8.DecodeRuneInString(line[i+1:])
		if line[i+1] != '\'' && i+1+n < len(line) && line[i+1+n] == '\'' {
			return n + 2
		}
	case lang == ir.Elixir && line[i] == '?':
		if i+1 >= len(line) || (i > 0 && identByte(line[i-1])) {
			return 0
		}
		if line[i+1] == '\\' && i+2 < len(line) {
			_, n := utf8.DecodeRuneInString(line[i+2:])
			return n + 2
		}
		_, n := utf8.DecodeRuneInString(line[i+1:])
		return n + 1
	}
	return 0
}

func identByte(c byte) bool {
	return c == '_' || c == '?' || c == '!' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// Code drops string literal contents and the trailing line comment.
func Code(line string, lang ir.Language) string {
	comment := LineComment(lang)
	var b strings.Builder
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch {
			case c == '\\':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		if n := charLiteral(line, i, lang); n > 0 {
			i += n - 1
			continue
		}
		if strings.HasPrefix(line[i:], comment) {
			break
		}
		if c == '"' || c == '`' || (c == '\'' && singleQuoted(lang)) {
			quote = c
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnbalancedQuotes reports a string literal left open at the end of text.
func UnbalancedQuotes(text string, lang ir.Language) bool {
	comment := LineComment(lang)
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, `"""`) || strings.Contains(line, "'''") {
			continue
		}
		var quote byte
		for i := 0; i < len(line); i++ {
			c := line[i]
			if quote != 0 {
				switch {
				case c == '\\':
					i++
				case c == quote:
					quote = 0
				}
				continue
			}
			if n := charLiteral(line, i, lang); n > 0 {
				i += n - 1
				continue
			}
			if strings.HasPrefix(line[i:], comment) {
				break
			}
			if c == '"' || (c == '\'' && singleQuoted(lang)) {
				quote = c
			}
		}
		// Template literals may span lines.
		if quote != 0 && quote != '`' {
			return true
		}
	}
	return false
}

var pairs = map[byte]byte{')': '(', ']': '[', '}': '{'}

// Balanced reports whether (), [] and {} nest correctly outside strings and
// comments.
func Balanced(text string, lang ir.Language) bool {
	var stack []byte
	for _, line := range strings.Split(text, "\n") {
		for _, c := range []byte(Code(line, lang)) {
			switch c {
			case '(', '[', '{':
				stack = append(stack, c)
			case ')', ']', '}':
				if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
					return false
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
	return len(stack) == 0
}

// IndentWidth measures leading whitespace, a tab counting as four columns.
func IndentWidth(line string) int {
	w := 0
	for _, c := range line {
		switch c {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// Leading returns the leading whitespace of line.
func Leading(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func Blank(line string) bool { return strings.TrimSpace(line) == "" }
