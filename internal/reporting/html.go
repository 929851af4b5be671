package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/jeryldev/patingin/internal/ir"
)

func WriteHTML(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Head + styles
	fmt.Fprintf(f, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(runID))
	fmt.Fprint(f, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace} .critical{color:#b00020;font-weight:bold} .major{color:#b36b00} .warning{color:#00639b}</style>")
	fmt.Fprint(f, "</head><body>")

	// Title + summary
	s := run.Summary
	fmt.Fprintf(f, "<h1>patingin review – <span class='mono'>%s</span></h1>", html.EscapeString(runID))
	fmt.Fprintf(f, "<p class='dim'>%s", html.EscapeString(run.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if run.Project != "" {
		fmt.Fprintf(f, " &nbsp; Project: %s", html.EscapeString(run.Project))
	}
	if run.Branch != "" {
		fmt.Fprintf(f, " &nbsp; Branch: %s", html.EscapeString(run.Branch))
	}
	if run.Scope != "" {
		fmt.Fprintf(f, " &nbsp; Scope: %s", html.EscapeString(run.Scope))
	}
	fmt.Fprint(f, "</p>")
	fmt.Fprintf(f, "<p>Files scanned: %d &nbsp; Violations: %d &nbsp; Files affected: %d</p>", run.FilesScanned, s.Total, s.FilesWithViolations)
	fmt.Fprintf(f, "<p><span class='critical'>%d critical</span> &nbsp; <span class='major'>%d major</span> &nbsp; <span class='warning'>%d warning</span> &nbsp; <span class='dim'>%d AI-fixable</span></p>",
		s.Critical, s.Major, s.Warning, s.AutoFixable)

	// Per-rule counts
	if len(s.ByRule) > 0 {
		fmt.Fprint(f, "<h2>By Rule</h2><table><tr><th>Rule</th><th>Count</th></tr>")
		for _, id := range s.RuleIDs() {
			fmt.Fprintf(f, "<tr><td class='mono'>%s</td><td>%d</td></tr>", html.EscapeString(id), s.ByRule[id])
		}
		fmt.Fprint(f, "</table>")
	}

	// All violations
	if len(run.Violations) > 0 {
		fmt.Fprint(f, "<h2>All Violations</h2><table><tr><th>Severity</th><th>Rule</th><th>File</th><th>Line</th><th>Code</th><th>Suggestion</th></tr>")
		for _, v := range run.Violations {
			sev := v.Severity.String()
			fmt.Fprintf(f, "<tr><td class='%s'>%s</td><td>%s</td><td class='mono'>%s</td><td>%d</td><td class='mono'>%s</td><td>%s</td></tr>",
				sev, sev,
				html.EscapeString(v.RuleID),
				html.EscapeString(v.FilePath),
				v.LineNumber,
				html.EscapeString(v.Content),
				html.EscapeString(v.FixSuggestion),
			)
		}
		fmt.Fprint(f, "</table>")
	} else {
		fmt.Fprint(f, "<h2>All Violations</h2><p class='dim'>No violations at or above the configured threshold.</p>")
	}

	if len(run.Warnings) > 0 {
		fmt.Fprint(f, "<h2>Warnings</h2><ul>")
		for _, w := range run.Warnings {
			fmt.Fprintf(f, "<li class='dim'>%s</li>", html.EscapeString(w))
		}
		fmt.Fprint(f, "</ul>")
	}

	fmt.Fprint(f, "</body></html>")
	return path, nil
}
