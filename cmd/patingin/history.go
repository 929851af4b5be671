package main

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/reporting"
	"github.com/jeryldev/patingin/internal/violations"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse runs saved with review --save",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()
			rows, err := db.ListRuns(limit, offset)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if len(rows) == 0 {
				fmt.Fprintln(a.stdout, "No saved runs.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSCOPE\tBRANCH\tPROJECT\tVIOLATIONS\tCRITICAL")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Scope, r.Branch, r.Project, r.Violations, r.Critical)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "rows to show")
	list.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	var asJSON, noColor bool
	var minSeverity string
	show := &cobra.Command{
		Use:   "show RUN",
		Short: "Print a saved run (RUN may be \"latest\")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()

			var run ir.Run
			if args[0] == "latest" {
				run, err = db.LoadLatestRun()
			} else {
				run, err = db.LoadRun(args[0])
			}
			if errors.Is(err, sql.ErrNoRows) {
				return &exitError{code: 1, err: fmt.Errorf("run %s not found", args[0])}
			}
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if minSeverity != "" {
				sev, err := ir.ParseSeverity(minSeverity)
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				run.Violations = violations.FilterBySeverity(run.Violations, sev)
				run.Summary = violations.Summarize(run.Violations)
			}
			if asJSON {
				return reporting.EncodeJSON(a.stdout, &run)
			}
			return reporting.WriteText(a.stdout, &run, reporting.TextOptions{Color: a.colorEnabled(noColor)})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	show.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	show.Flags().StringVar(&minSeverity, "severity", "", "only violations at or above this severity")

	var outDir string
	diff := &cobra.Command{
		Use:   "diff BASE HEAD",
		Short: "Compare two saved runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()
			base, err := db.LoadRun(args[0])
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("base run %s: %w", args[0], err)}
			}
			head, err := db.LoadRun(args[1])
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("head run %s: %w", args[1], err)}
			}

			d := reporting.DiffRuns(&base, &head)
			fmt.Fprintf(a.stdout, "%s -> %s: %d new, %d removed, %d changed\n",
				d.BaseID, d.HeadID, d.Summary.NewCount, d.Summary.RemovedCount, d.Summary.ChangedCount)
			for _, n := range d.New {
				fmt.Fprintf(a.stdout, "  + %s %s:%d\n", n.RuleID, n.File, n.Line)
			}
			for _, r := range d.Removed {
				fmt.Fprintf(a.stdout, "  - %s %s:%d\n", r.RuleID, r.File, r.Line)
			}
			for _, c := range d.Changed {
				fmt.Fprintf(a.stdout, "  ~ %s %s:%d (%v)\n", c.Head.RuleID, c.Head.File, c.Head.Line, c.Changed)
			}
			if outDir != "" {
				path, err := reporting.WriteDiffJSON(outDir, &base, &head)
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				fmt.Fprintf(a.stderr, "diff report: %s\n", path)
			}
			return nil
		},
	}
	diff.Flags().StringVar(&outDir, "out", "", "also write the diff as JSON into `DIR`")

	cmd.AddCommand(list, show, diff)
	return cmd
}
