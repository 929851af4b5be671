// Package review runs a full diff review: parse, filter, match in parallel,
// aggregate, then apply thresholds and waivers.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/matcher"
	"github.com/jeryldev/patingin/internal/parser"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/violations"
)

type Options struct {
	Settings rules.Settings
	// Ignore holds doublestar globs matched against repo-relative paths.
	Ignore  []string
	Waivers []rules.Waiver
	Workers int
	Logger  *slog.Logger
	Now     func() time.Time
}

// Input is one diff plus the metadata stamped onto the resulting run.
type Input struct {
	Diff    string
	Scope   string
	Branch  string
	Project string
	Root    string
	// Waivers apply to this run on top of Options.Waivers, e.g. the ones
	// kept in the history database.
	Waivers []rules.Waiver
}

type Engine struct {
	reg     *rules.Registry
	matcher *matcher.Matcher
	opts    Options
}

func New(reg *rules.Registry, opts Options, mopts ...matcher.Option) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings.LanguageThresholds == nil {
		opts.Settings.LanguageThresholds = map[ir.Language]ir.Severity{}
	}
	mopts = append([]matcher.Option{matcher.WithLogger(opts.Logger)}, mopts...)
	return &Engine{reg: reg, matcher: matcher.New(reg, mopts...), opts: opts}
}

func (e *Engine) Registry() *rules.Registry { return e.reg }

// Review parses in.Diff and reviews the result. Per-file parse problems become
// run warnings; only an empty usable registry is fatal.
func (e *Engine) Review(ctx context.Context, in Input) (*ir.Run, error) {
	if e.reg == nil || e.reg.Usable() == 0 {
		return nil, rules.ErrEmptyRegistry
	}
	files, diags := parser.Parse(in.Diff)
	run := e.newRun(in)
	for _, w := range diags.Warnings() {
		e.opts.Logger.Warn("diff parse", "err", w)
		run.Warnings = append(run.Warnings, w)
	}
	if err := e.scan(ctx, files, run, in.Waivers); err != nil {
		return nil, err
	}
	return run, nil
}

// ReviewFiles reviews already parsed changes.
func (e *Engine) ReviewFiles(ctx context.Context, files []ir.FileChange, in Input) (*ir.Run, error) {
	if e.reg == nil || e.reg.Usable() == 0 {
		return nil, rules.ErrEmptyRegistry
	}
	run := e.newRun(in)
	if err := e.scan(ctx, files, run, in.Waivers); err != nil {
		return nil, err
	}
	return run, nil
}

func (e *Engine) newRun(in Input) *ir.Run {
	return &ir.Run{
		ID:        uuid.NewString(),
		StartedAt: e.opts.Now().UTC(),
		Version:   ir.Version,
		Scope:     in.Scope,
		Branch:    in.Branch,
		Project:   in.Project,
		Root:      in.Root,
	}
}

func (e *Engine) scan(ctx context.Context, files []ir.FileChange, run *ir.Run, extra []rules.Waiver) error {
	selected := e.selectFiles(files)
	run.FilesScanned = len(selected)

	// One slot per file; workers never share a slice.
	results := make([][]ir.Violation, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, fc := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.matcher.Match(fc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("review: %w", err)
	}

	var all []ir.Violation
	for _, r := range results {
		all = append(all, r...)
	}
	vs := violations.Aggregate(all)

	kept := vs[:0]
	for _, v := range vs {
		if e.opts.Settings.SeverityOK(v) {
			kept = append(kept, v)
		}
	}
	kept, waived := rules.ApplyWaivers(kept, append(slices.Clone(e.opts.Waivers), extra...), e.opts.Now())
	if waived > 0 {
		e.opts.Logger.Info("violations waived", "count", waived)
	}
	if kept == nil {
		kept = []ir.Violation{}
	}
	run.Violations = kept
	run.Summary = violations.Summarize(kept)

	e.opts.Logger.Debug("review finished", "run", run.ID, "files", run.FilesScanned,
		"violations", run.Summary.Total, "critical", run.Summary.Critical)
	return nil
}

// selectFiles drops binaries, deletions, ignored paths, unknown languages and
// languages outside the focus list.
func (e *Engine) selectFiles(files []ir.FileChange) []ir.FileChange {
	var out []ir.FileChange
	for _, fc := range files {
		if fc.Binary || fc.Deleted || len(fc.Hunks) == 0 {
			continue
		}
		if e.ignored(fc.FilePath) {
			e.opts.Logger.Debug("ignored", "file", fc.FilePath)
			continue
		}
		lang, ok := ir.LanguageFromPath(fc.FilePath)
		if !ok || !e.opts.Settings.Focused(lang) {
			continue
		}
		out = append(out, fc)
	}
	return out
}

func (e *Engine) ignored(path string) bool {
	for _, pat := range e.opts.Ignore {
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}
	return false
}
