package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/fix"
	"github.com/jeryldev/patingin/internal/gitx"
	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/reporting"
	"github.com/jeryldev/patingin/internal/review"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/storage"
	"github.com/jeryldev/patingin/internal/violations"
)

type reviewFlags struct {
	staged, uncommitted bool
	since               string
	diffFile            string

	json, noColor, suggest bool
	severity               string
	languages              []string
	html                   string
	save                   bool

	fix, autoFix, noConfirm, dryRun bool
}

func newReviewCmd(a *app) *cobra.Command {
	var f reviewFlags
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review changed lines for anti-patterns",
		Long: `Review the lines added by a git diff. Without a scope flag the diff is
taken against HEAD. Exits 1 when a critical violation is found.`,
		Example: `  patingin review --staged
  patingin review --since main --json
  patingin review --auto-fix --dry-run
  git diff | patingin review --diff-file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.review(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.staged, "staged", false, "review staged changes (git diff --cached)")
	fl.BoolVar(&f.uncommitted, "uncommitted", false, "review unstaged changes (git diff)")
	fl.StringVar(&f.since, "since", "", "review changes since `REF`")
	fl.StringVar(&f.diffFile, "diff-file", "", "read a unified diff from `FILE` instead of git (- for stdin)")
	fl.BoolVar(&f.json, "json", false, "print the run as JSON")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fl.BoolVar(&f.suggest, "suggest", false, "show fix suggestions")
	fl.StringVar(&f.severity, "severity", "", "minimum severity to report (critical, major, warning)")
	fl.StringSliceVar(&f.languages, "language", nil, "only review these languages")
	fl.StringVar(&f.html, "html", "", "also write an HTML report into `DIR`")
	fl.BoolVar(&f.save, "save", false, "store the run in the history database")
	fl.BoolVar(&f.fix, "fix", false, "fix violations interactively")
	fl.BoolVar(&f.autoFix, "auto-fix", false, "apply high-confidence fixes in one batch")
	fl.BoolVar(&f.noConfirm, "no-confirm", false, "with --auto-fix, do not ask before writing")
	fl.BoolVar(&f.dryRun, "dry-run", false, "with --fix or --auto-fix, show fixes without writing")
	cmd.MarkFlagsMutuallyExclusive("fix", "auto-fix")
	return cmd
}

func (a *app) review(ctx context.Context, f reviewFlags) error {
	scope, err := gitx.ScopeFromFlags(f.staged, f.uncommitted, f.since)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if f.diffFile != "" && (f.staged || f.uncommitted || f.since != "") {
		return usageErr("--diff-file cannot be combined with a scope flag")
	}
	if (f.noConfirm || f.dryRun) && !f.fix && !f.autoFix {
		return usageErr("--no-confirm and --dry-run need --fix or --auto-fix")
	}

	settings := a.cfg.ReviewSettings()
	if f.severity != "" {
		sev, err := ir.ParseSeverity(f.severity)
		if err != nil {
			return &exitError{code: 2, err: err}
		}
		settings.SeverityThreshold = sev
	}
	if len(f.languages) > 0 {
		settings.FocusLanguages = nil
		for _, name := range f.languages {
			l, ok := ir.ParseLanguage(name)
			if !ok {
				return usageErr("unknown language %q", name)
			}
			settings.FocusLanguages = append(settings.FocusLanguages, l)
		}
	}

	in := review.Input{Project: a.project.Name, Root: a.project.Root}
	if f.diffFile != "" {
		in.Diff, err = a.readDiff(f.diffFile)
		if err != nil {
			return &exitError{code: 1, err: err}
		}
		in.Scope = "file"
	} else {
		repo := gitx.Open(a.project.Root, a.logger)
		if !repo.IsRepo(ctx) {
			return &exitError{code: 1, err: fmt.Errorf("%s is not inside a git repository", a.project.Root)}
		}
		in.Diff, err = repo.Diff(ctx, scope)
		if err != nil {
			return &exitError{code: 1, err: err}
		}
		in.Scope = scope.String()
		in.Branch = repo.CurrentBranch(ctx)
	}

	reg, _ := a.registry()
	engine := review.New(reg, review.Options{
		Settings: settings,
		Ignore:   a.cfg.Settings.Ignore,
		Waivers:  a.cfg.Waivers,
		Workers:  a.cfg.Settings.Workers,
		Logger:   a.logger,
	})

	var db *storage.DB
	if f.save || a.historyExists() {
		db, err = a.openDB()
		if err != nil {
			if f.save {
				return &exitError{code: 1, err: err}
			}
			a.logger.Warn("history db unavailable", "err", err)
		} else {
			defer db.Close()
			if in.Waivers, err = db.ActiveWaivers(); err != nil {
				a.logger.Warn("load stored waivers", "err", err)
			}
		}
	}

	run, err := engine.Review(ctx, in)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if f.save && db != nil {
		if err := db.SaveRun(run); err != nil {
			return &exitError{code: 1, err: fmt.Errorf("save run: %w", err)}
		}
		fmt.Fprintf(a.stderr, "saved run %s\n", run.ID)
	}
	return a.report(ctx, f, reg, run)
}

func (a *app) readDiff(path string) (string, error) {
	var r io.Reader = a.stdin
	if path != "-" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.dir, path)
		}
		file, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("read diff: %w", err)
		}
		defer file.Close()
		r = file
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return string(b), nil
}

// report prints the run, runs any fix flow, and turns critical violations
// into exit code 1.
func (a *app) report(ctx context.Context, f reviewFlags, reg *rules.Registry, run *ir.Run) error {
	var err error
	if f.json {
		err = reporting.EncodeJSON(a.stdout, run)
	} else {
		err = reporting.WriteText(a.stdout, run, reporting.TextOptions{Color: a.colorEnabled(f.noColor), Suggest: f.suggest})
	}
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if f.html != "" {
		path, err := reporting.WriteHTML(run.ID, f.html, run)
		if err != nil {
			return &exitError{code: 1, err: fmt.Errorf("html report: %w", err)}
		}
		fmt.Fprintf(a.stderr, "html report: %s\n", path)
	}

	if f.fix || f.autoFix {
		if err := a.runFixes(ctx, f, reg, run); err != nil {
			return err
		}
	}

	if violations.CriticalPresent(run.Violations) {
		return &exitError{code: 1}
	}
	return nil
}

func (a *app) runFixes(ctx context.Context, f reviewFlags, reg *rules.Registry, run *ir.Run) error {
	var fixable []ir.Violation
	for _, v := range run.Violations {
		if v.AIFixable {
			fixable = append(fixable, v)
		}
	}
	out := a.stdout
	if f.json {
		out = a.stderr
	}
	if len(fixable) == 0 {
		fmt.Fprintln(out, "No fixable violations.")
		return nil
	}

	fixer, err := a.fixer()
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	opts := fix.Options{
		Root:      a.project.Root,
		Timeout:   a.cfg.Fix.Timeout.Duration,
		Threshold: a.cfg.Fix.ConfidenceThreshold,
		DryRun:    f.dryRun,
		Describe:  describer(reg),
		Logger:    a.logger,
	}

	var res fix.Result
	switch {
	case f.fix:
		if !a.interactive() {
			return usageErr("--fix needs an interactive terminal; use --auto-fix")
		}
		s := &fix.Session{
			Fixer:    fixer,
			Prompter: fix.NewSurveyPrompter(a.stderr, survey.WithStdio(os.Stdin, os.Stderr, os.Stderr)),
			Options:  opts,
		}
		res, err = s.Run(ctx, fixable)
	case f.dryRun || f.noConfirm || !a.interactive():
		res, err = fix.Batch(ctx, fixer, fixable, opts)
	default:
		opts.DryRun = true
		res, err = fix.Batch(ctx, fixer, fixable, opts)
		if err == nil {
			printFixResult(out, res)
			n := res.Count(fix.StatusWouldApply)
			if n == 0 {
				return nil
			}
			ok := false
			prompt := &survey.Confirm{Message: fmt.Sprintf("Apply %d fix(es)?", n), Default: true}
			if err := survey.AskOne(prompt, &ok, survey.WithStdio(os.Stdin, os.Stderr, os.Stderr)); err != nil || !ok {
				fmt.Fprintln(out, "No files changed.")
				return nil
			}
			opts.DryRun = false
			res = fix.Commit(res, opts)
		}
	}
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	printFixResult(out, res)
	return nil
}

// fixer builds the configured backend.
func (a *app) fixer() (fix.Fixer, error) {
	switch a.cfg.Fix.Backend {
	case "openai":
		f, err := fix.NewOpenAIFixer(os.Getenv("OPENAI_API_KEY"), a.cfg.Fix.BaseURL, a.cfg.Fix.Model, a.logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "claude":
		f, err := fix.NewClaudeFixer(a.cfg.Fix.Command, a.logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: fix.backend is %q", fix.ErrFixerUnavailable, a.cfg.Fix.Backend)
}

func describer(reg *rules.Registry) func(ir.Violation) string {
	return func(v ir.Violation) string {
		r, err := reg.FindIn(v.Language, v.RuleID)
		if err != nil {
			return v.RuleID
		}
		return r.Description
	}
}

func printFixResult(w io.Writer, res fix.Result) {
	for _, o := range res.Outcomes {
		v := o.Violation
		line := fmt.Sprintf("  %-14s %s:%d %s", o.Status, v.FilePath, v.LineNumber, v.RuleID)
		if o.Status == fix.StatusWouldApply || o.Status == fix.StatusApplied || o.Status == fix.StatusLowConfidence {
			line += fmt.Sprintf(" (confidence %.2f)", o.Result.Confidence)
		}
		if o.Err != "" {
			line += ": " + o.Err
		}
		fmt.Fprintln(w, line)
	}
	parts := []string{
		fmt.Sprintf("%d applied", res.Count(fix.StatusApplied)),
		fmt.Sprintf("%d would apply", res.Count(fix.StatusWouldApply)),
		fmt.Sprintf("%d low confidence", res.Count(fix.StatusLowConfidence)),
		fmt.Sprintf("%d invalid", res.Count(fix.StatusInvalid)),
		fmt.Sprintf("%d failed", res.Count(fix.StatusFailed)),
		fmt.Sprintf("%d skipped", res.Count(fix.StatusSkipped)+res.Count(fix.StatusUnchanged)),
	}
	fmt.Fprintf(w, "Fixes: %s\n", strings.Join(parts, ", "))
	if len(res.FilesModified) > 0 {
		fmt.Fprintf(w, "Modified: %s\n", strings.Join(res.FilesModified, ", "))
	}
}
