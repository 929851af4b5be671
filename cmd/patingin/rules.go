package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/rulesdsl"
)

type rulesFlags struct {
	language        string
	global, project bool
	search          string
	detail          string
	json            bool
	noColor         bool

	add, remove          string
	pattern, description string
	severity, fixHint    string
}

func newRulesCmd(a *app) *cobra.Command {
	var f rulesFlags
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, search and manage anti-pattern rules",
		Example: `  patingin rules --language elixir
  patingin rules --search atom
  patingin rules --detail dynamic_atom_creation
  patingin rules --add no_debugger --language js --pattern 'debugger;' --severity major`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case f.add != "":
				return a.addRule(f)
			case f.remove != "":
				return a.removeRule(f.remove)
			case f.detail != "":
				return a.ruleDetail(f)
			}
			return a.listRules(f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.language, "language", "l", "", "only rules for this language")
	fl.BoolVar(&f.global, "global", false, "only built-in rules")
	fl.BoolVar(&f.project, "project", false, "only project rules")
	fl.StringVar(&f.search, "search", "", "match `KEYWORD` against id, name, description and tags")
	fl.StringVar(&f.detail, "detail", "", "show one rule with its examples")
	fl.BoolVar(&f.json, "json", false, "print as JSON")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fl.StringVar(&f.add, "add", "", "add a project rule with this `ID` to the user rules file")
	fl.StringVar(&f.remove, "remove", "", "remove the project rule `ID` from the user rules file")
	fl.StringVar(&f.pattern, "pattern", "", "regex for --add")
	fl.StringVar(&f.description, "description", "", "description for --add")
	fl.StringVar(&f.severity, "severity", "warning", "severity for --add")
	fl.StringVar(&f.fixHint, "fix", "", "fix suggestion for --add")
	cmd.MarkFlagsMutuallyExclusive("global", "project")
	cmd.MarkFlagsMutuallyExclusive("add", "remove", "detail")
	return cmd
}

func (a *app) listRules(f rulesFlags) error {
	var lang ir.Language
	if f.language != "" {
		l, ok := ir.ParseLanguage(f.language)
		if !ok {
			return usageErr("unknown language %q", f.language)
		}
		lang = l
	}
	reg, _ := a.registry()

	var list []rules.Rule
	for _, r := range reg.Search(f.search) {
		switch {
		case lang != "" && r.Language != lang:
		case f.global && r.Scope != rules.ScopeGlobal:
		case f.project && r.Scope != rules.ScopeProject:
		default:
			list = append(list, r)
		}
	}

	if f.json {
		return writeRulesJSON(a.stdout, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No rules match.")
		return nil
	}
	color.NoColor = !a.colorEnabled(f.noColor)
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	var cur ir.Language
	for _, r := range list {
		if r.Language != cur {
			cur = r.Language
			fmt.Fprintln(a.stdout)
			bold.Fprintf(a.stdout, "%s (%d)\n", cur, countLang(list, cur))
		}
		severityColor(r.Severity).Fprintf(a.stdout, "  %-8s", strings.ToUpper(r.Severity.String()))
		fmt.Fprintf(a.stdout, " %s", r.ID)
		if r.Scope == rules.ScopeProject {
			dim.Fprint(a.stdout, " [project]")
		}
		if !r.Usable() {
			dim.Fprint(a.stdout, " [disabled]")
		}
		fmt.Fprintln(a.stdout)
		if r.Name != "" && r.Name != r.ID {
			dim.Fprintf(a.stdout, "           %s\n", r.Name)
		}
	}
	fmt.Fprintf(a.stdout, "\n%d rule(s)\n", len(list))
	return nil
}

func (a *app) ruleDetail(f rulesFlags) error {
	reg, _ := a.registry()
	var (
		r   rules.Rule
		err error
	)
	if f.language != "" {
		l, ok := ir.ParseLanguage(f.language)
		if !ok {
			return usageErr("unknown language %q", f.language)
		}
		r, err = reg.FindIn(l, f.detail)
	} else {
		r, err = reg.Find(f.detail)
	}
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if f.json {
		return writeRulesJSON(a.stdout, []rules.Rule{r})
	}

	color.NoColor = !a.colorEnabled(f.noColor)
	w := a.stdout
	color.New(color.Bold).Fprintf(w, "%s", r.ID)
	if r.Name != "" {
		fmt.Fprintf(w, " - %s", r.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  language:   %s\n", r.Language)
	fmt.Fprintf(w, "  severity:   %s\n", severityColor(r.Severity).Sprint(r.Severity))
	fmt.Fprintf(w, "  scope:      %s\n", r.Scope)
	fmt.Fprintf(w, "  enabled:    %t\n", r.Usable())
	fmt.Fprintf(w, "  ai fixable: %t\n", r.AIFixable)
	if r.Detection != nil {
		fmt.Fprintf(w, "  detection:  %s %s\n", r.Detection.Kind(), r.Detection.Pattern())
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(w, "  tags:       %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", r.Description)
	}
	if r.FixSuggestion != "" {
		fmt.Fprintf(w, "\n  Fix: %s\n", r.FixSuggestion)
	}
	for i, ex := range r.Examples {
		fmt.Fprintf(w, "\n  Example %d\n", i+1)
		color.New(color.FgRed).Fprintf(w, "    - %s\n", ex.Bad)
		color.New(color.FgGreen).Fprintf(w, "    + %s\n", ex.Good)
		if ex.Explanation != "" {
			fmt.Fprintf(w, "    %s\n", ex.Explanation)
		}
	}
	if r.SourceURL != "" {
		fmt.Fprintf(w, "\n  See %s\n", r.SourceURL)
	}
	return nil
}

func (a *app) addRule(f rulesFlags) error {
	if f.language == "" || f.pattern == "" {
		return usageErr("--add needs --language and --pattern")
	}
	lang, ok := ir.ParseLanguage(f.language)
	if !ok {
		return usageErr("unknown language %q", f.language)
	}
	path := rulesdsl.DefaultUserRulesPath()
	user, err := rulesdsl.LoadUserRules(path)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	ur := rulesdsl.UserRule{
		ID:          f.add,
		Description: f.description,
		Pattern:     f.pattern,
		Severity:    strings.ToLower(f.severity),
		Fix:         f.fixHint,
	}
	if err := user.Add(a.project.Name, a.project.Root, lang, ur); err != nil {
		return &exitError{code: 2, err: err}
	}
	if err := user.Save(path); err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Fprintf(a.stdout, "Added %s rule %s to project %s (%s)\n", lang, f.add, a.project.Name, path)
	return nil
}

func (a *app) removeRule(id string) error {
	path := rulesdsl.DefaultUserRulesPath()
	user, err := rulesdsl.LoadUserRules(path)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if !user.Remove(a.project.Name, id) {
		return &exitError{code: 1, err: fmt.Errorf("%w: %s in project %s", rules.ErrRuleNotFound, id, a.project.Name)}
	}
	if err := user.Save(path); err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Fprintf(a.stdout, "Removed rule %s from project %s\n", id, a.project.Name)
	return nil
}

func countLang(list []rules.Rule, l ir.Language) int {
	n := 0
	for _, r := range list {
		if r.Language == l {
			n++
		}
	}
	return n
}

func severityColor(s ir.Severity) *color.Color {
	switch s {
	case ir.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case ir.SeverityMajor:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgCyan)
}

type ruleJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Language      ir.Language     `json:"language"`
	Severity      ir.Severity     `json:"severity"`
	Description   string          `json:"description,omitempty"`
	Detection     string          `json:"detection,omitempty"`
	Pattern       string          `json:"pattern,omitempty"`
	FixSuggestion string          `json:"fix_suggestion,omitempty"`
	AIFixable     bool            `json:"ai_fixable"`
	Enabled       bool            `json:"enabled"`
	Scope         rules.Scope     `json:"scope"`
	Tags          []string        `json:"tags,omitempty"`
	Examples      []rules.Example `json:"examples,omitempty"`
}

func writeRulesJSON(w io.Writer, list []rules.Rule) error {
	out := make([]ruleJSON, 0, len(list))
	for _, r := range list {
		j := ruleJSON{
			ID: r.ID, Name: r.Name, Language: r.Language, Severity: r.Severity,
			Description: r.Description, FixSuggestion: r.FixSuggestion, AIFixable: r.AIFixable,
			Enabled: r.Usable(), Scope: r.Scope, Tags: r.Tags, Examples: r.Examples,
		}
		if r.Detection != nil {
			j.Detection = string(r.Detection.Kind())
			j.Pattern = r.Detection.Pattern()
		}
		out = append(out, j)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
