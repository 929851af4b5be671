package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/rules"
)

func newWaiversCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waivers",
		Short: "Manage waivers stored in the history database",
		Long: `Waivers suppress matches of one rule, optionally limited to a path glob
and a content substring. Waivers in the config file apply as well; these
commands only manage the stored ones.`,
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List waivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()
			ws, err := db.ListWaivers(!all)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if len(ws) == 0 {
				fmt.Fprintln(a.stdout, "No waivers.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRULE\tPATH\tCONTAINS\tEXPIRES\tBY\tREASON")
			for _, w := range ws {
				exp := "never"
				if w.ExpiresAt != nil {
					exp = w.ExpiresAt.Local().Format("2006-01-02")
				}
				if w.RevokedAt != nil {
					exp = "revoked"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					w.ID, w.RuleID, dash(w.Path), dash(w.Contains), exp, w.CreatedBy, w.Reason)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include revoked and expired waivers")

	var wv rules.Waiver
	var expires string
	add := &cobra.Command{
		Use:   "add RULE_ID",
		Short: "Store a waiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wv.RuleID = args[0]
			if strings.TrimSpace(wv.Reason) == "" {
				return usageErr("--reason is required")
			}
			if wv.Path != "" && !doublestar.ValidatePattern(wv.Path) {
				return usageErr("bad --path glob %q", wv.Path)
			}
			if expires != "" {
				t, err := parseExpiry(expires, time.Now())
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				wv.Expires = t
			}
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()
			id, err := db.CreateWaiver(wv, currentUser())
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			fmt.Fprintf(a.stdout, "Waiver %d added for %s\n", id, wv.RuleID)
			return nil
		},
	}
	add.Flags().StringVar(&wv.Path, "path", "", "limit to files matching this glob")
	add.Flags().StringVar(&wv.Contains, "contains", "", "limit to lines containing this text")
	add.Flags().StringVar(&wv.Reason, "reason", "", "why the rule is waived")
	add.Flags().StringVar(&expires, "expires", "", "expiry as a duration (720h) or date (2026-12-31)")

	revoke := &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke a stored waiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return usageErr("invalid waiver id %q", args[0])
			}
			db, err := a.openDB()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer db.Close()
			if err := db.RevokeWaiver(id, currentUser()); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("revoke waiver %d: %w", id, err)}
			}
			fmt.Fprintf(a.stdout, "Waiver %d revoked\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, revoke)
	return cmd
}

// parseExpiry accepts a Go duration, a date, or an RFC3339 timestamp.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("expiry %q is not in the future", s)
		}
		return now.Add(d), nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad expiry %q: use a duration like 720h or a date like 2026-12-31", s)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
