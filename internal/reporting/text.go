package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/violations"
)

type TextOptions struct {
	Color bool
	// Suggest prints each violation's fix suggestion.
	Suggest bool
}

type palette struct {
	critical, major, warning, file, dim, ok *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		critical: color.New(color.FgRed, color.Bold),
		major:    color.New(color.FgYellow, color.Bold),
		warning:  color.New(color.FgCyan),
		file:     color.New(color.Bold, color.Underline),
		dim:      color.New(color.Faint),
		ok:       color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{p.critical, p.major, p.warning, p.file, p.dim, p.ok} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s ir.Severity) *color.Color {
	switch s {
	case ir.SeverityCritical:
		return p.critical
	case ir.SeverityMajor:
		return p.major
	}
	return p.warning
}

// WriteText renders a run for humans, grouped by file.
func WriteText(w io.Writer, run *ir.Run, opts TextOptions) error {
	p := newPalette(opts.Color)
	var err error
	printf := func(c *color.Color, format string, a ...any) {
		if err != nil {
			return
		}
		if c == nil {
			_, err = fmt.Fprintf(w, format, a...)
			return
		}
		_, err = c.Fprintf(w, format, a...)
	}

	header := "Reviewing changes"
	if run.Scope != "" {
		header += " (" + run.Scope + ")"
	}
	if run.Branch != "" {
		header += " on " + run.Branch
	}
	printf(p.dim, "%s: %d file(s) scanned\n", header, run.FilesScanned)

	for _, warn := range run.Warnings {
		printf(p.major, "warning: %s\n", warn)
	}

	if len(run.Violations) == 0 {
		printf(p.ok, "\nNo violations found.\n")
		return err
	}

	for _, g := range violations.GroupByFile(run.Violations) {
		printf(nil, "\n")
		printf(p.file, "%s", g.FilePath)
		printf(nil, "\n")
		for _, v := range g.Violations {
			printf(p.severity(v.Severity), "  %-8s", strings.ToUpper(v.Severity.String()))
			printf(nil, " %4d  %s", v.LineNumber, v.RuleID)
			if v.AIFixable {
				printf(p.dim, "  [fixable]")
			}
			printf(nil, "\n")
			printf(p.dim, "         %s\n", strings.TrimSpace(v.Content))
			if opts.Suggest && v.FixSuggestion != "" {
				printf(p.ok, "         fix: %s\n", v.FixSuggestion)
			}
		}
	}

	s := run.Summary
	printf(nil, "\n%d violation(s) in %d file(s): ", s.Total, s.FilesWithViolations)
	printf(p.critical, "%d critical", s.Critical)
	printf(nil, ", ")
	printf(p.major, "%d major", s.Major)
	printf(nil, ", ")
	printf(p.warning, "%d warning", s.Warning)
	printf(nil, "\n")
	if s.AutoFixable > 0 {
		printf(p.dim, "%d can be fixed with `patingin review --fix`\n", s.AutoFixable)
	}
	return err
}
