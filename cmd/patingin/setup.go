package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/fix"
	"github.com/jeryldev/patingin/internal/gitx"
	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rulesdsl"
)

func newSetupCmd(a *app) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Check the environment patingin runs in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = !a.colorEnabled(noColor)
			a.setup(cmd.Context())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func (a *app) setup(ctx context.Context) {
	ok := color.New(color.FgGreen).Sprint("ok")
	no := color.New(color.FgRed).Sprint("--")
	check := func(good bool, label, detail string) {
		mark := no
		if good {
			mark = ok
		}
		fmt.Fprintf(a.stdout, "  [%s] %-14s %s\n", mark, label, detail)
	}
	w := a.stdout

	color.New(color.Bold).Fprintln(w, "Environment")
	repo := gitx.Open(a.project.Root, a.logger)
	inRepo := repo.IsRepo(ctx)
	if inRepo {
		check(true, "git", "repository at "+a.project.Root)
		check(true, "branch", repo.CurrentBranch(ctx))
	} else {
		check(false, "git", "not a git repository (use review --diff-file)")
	}
	check(a.project.Name != "", "project", a.project.Describe())
	if a.cfg.Path != "" {
		check(true, "config", a.cfg.Path)
	} else {
		check(false, "config", "none found, using defaults")
	}

	fmt.Fprintln(w)
	color.New(color.Bold).Fprintln(w, "AI fixers")
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if cf, err := fix.NewClaudeFixer(a.cfg.Fix.Command, a.logger); err == nil {
		detail := cf.Command
		if v := cf.Version(cctx); v != "" {
			detail += " (" + v + ")"
		}
		check(true, "claude", detail)
	} else {
		check(false, "claude", err.Error())
	}
	check(os.Getenv("OPENAI_API_KEY") != "", "openai", "OPENAI_API_KEY "+setOrNot(os.Getenv("OPENAI_API_KEY")))
	check(a.cfg.Fix.Backend != "none", "backend", a.cfg.Fix.Backend)

	fmt.Fprintln(w)
	color.New(color.Bold).Fprintln(w, "Rules")
	reg, warns := a.registry()
	for _, l := range ir.Languages {
		enabled := len(reg.RulesFor(l))
		total := len(reg.AllFor(l))
		mark := ""
		if a.project.Uses(l) {
			mark = " (used by project)"
		}
		check(enabled > 0, string(l), fmt.Sprintf("%d of %d enabled%s", enabled, total, mark))
	}
	if len(warns) > 0 {
		check(false, "warnings", fmt.Sprintf("%d rule load problem(s), run with -v for details", len(warns)))
	}
	check(true, "user rules", rulesdsl.DefaultUserRulesPath())
	check(a.historyExists(), "history", a.cfg.Database.DSN)
}

func setOrNot(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
