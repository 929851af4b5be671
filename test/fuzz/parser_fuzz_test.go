package fuzz

import (
	"testing"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/parser"
	"github.com/jeryldev/patingin/internal/syntax"
)

// Fuzz the diff parser with arbitrary hunk bodies to ensure we never panic.
// Data is wrapped in a file header so most inputs reach hunk parsing.
func FuzzParseNoPanic(f *testing.F) {
	seeds := []string{
		"@@ -1,2 +1,3 @@\n a\n+b\n c\n",
		"@@ -x,3 +zz @@\n+eval(x)\n",
		"@@ -0,0 +1 @@\n+\\ No newline at end of file\n",
		"garbage-but-should-not-panic\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data string) {
		text := "diff --git a/f.py b/f.py\n--- a/f.py\n+++ b/f.py\n" + data
		files, _ := parser.Parse(text)
		for _, fc := range files {
			for _, l := range fc.AddedLines() {
				_ = syntax.Balanced(l.Content, ir.Python)
			}
		}
	})
}

func FuzzParseRawNoPanic(f *testing.F) {
	f.Add("diff --git a/a.js b/a.js\n--- a/a.js\n+++ b/a.js\n@@ -1 +1 @@\n-x\n+y\n")
	f.Add("--- /dev/null\n+++ b/new.rs\n@@ -0,0 +1,1 @@\n+fn main() {}\n")
	f.Fuzz(func(t *testing.T, data string) {
		_, _ = parser.Parse(data)
	})
}
