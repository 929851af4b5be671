package rulesdsl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

// UserRules is the per-user custom rules file, keyed by project name.
type UserRules struct {
	Projects map[string]ProjectRules `yaml:"projects"`
}

type ProjectRules struct {
	Path    string                `yaml:"path"`
	GitRoot string                `yaml:"git_root,omitempty"`
	Rules   map[string][]UserRule `yaml:"rules"` // language -> rules
}

// UserRule is the short form written by `patingin rules --add`; it always
// detects by regex.
type UserRule struct {
	ID          string `yaml:"id" validate:"required"`
	Description string `yaml:"description"`
	Pattern     string `yaml:"pattern" validate:"required"`
	Severity    string `yaml:"severity" validate:"required,oneof=critical major warning"`
	Fix         string `yaml:"fix"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

// DefaultUserRulesPath honors XDG_CONFIG_HOME, falling back to ~/.config.
func DefaultUserRulesPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".patingin", "rules.yml")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "patingin", "rules.yml")
}

// LoadUserRules returns an empty set when the file does not exist.
func LoadUserRules(path string) (UserRules, error) {
	u := UserRules{Projects: map[string]ProjectRules{}}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("read user rules: %w", err)
	}
	if err := yaml.Unmarshal(b, &u); err != nil {
		return u, fmt.Errorf("parse user rules %s: %w", path, err)
	}
	if u.Projects == nil {
		u.Projects = map[string]ProjectRules{}
	}
	return u, nil
}

func (u UserRules) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(u)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Add validates r and stores it under project and lang, replacing a rule with
// the same id.
func (u *UserRules) Add(project, projectPath string, lang ir.Language, r UserRule) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("custom rule %s: %w", r.ID, describe(err))
	}
	if _, err := rules.NewDetection(string(rules.KindRegex), r.Pattern, nil); err != nil {
		return err
	}
	if u.Projects == nil {
		u.Projects = map[string]ProjectRules{}
	}
	p := u.Projects[project]
	if p.Path == "" {
		p.Path = projectPath
	}
	if p.Rules == nil {
		p.Rules = map[string][]UserRule{}
	}
	list := p.Rules[string(lang)]
	replaced := false
	for i := range list {
		if list[i].ID == r.ID {
			list[i], replaced = r, true
		}
	}
	if !replaced {
		list = append(list, r)
	}
	p.Rules[string(lang)] = list
	u.Projects[project] = p
	return nil
}

// Remove deletes the rule id from every language of project.
func (u *UserRules) Remove(project, id string) bool {
	p, ok := u.Projects[project]
	if !ok {
		return false
	}
	removed := false
	for lang, list := range p.Rules {
		kept := list[:0]
		for _, r := range list {
			if r.ID == id {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		p.Rules[lang] = kept
	}
	u.Projects[project] = p
	return removed
}

// RulesFor converts the rules of the project matching name or root. Languages
// are visited in sorted order so the merge order is stable.
func (u UserRules) RulesFor(name, root string) ([]rules.Rule, []error) {
	p, ok := u.Projects[name]
	if !ok && root != "" {
		for _, cand := range u.Projects {
			if filepath.Clean(cand.Path) == filepath.Clean(root) {
				p, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return nil, nil
	}
	langs := make([]string, 0, len(p.Rules))
	for l := range p.Rules {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	var out []rules.Rule
	var errs []error
	for _, l := range langs {
		lang, ok := ir.ParseLanguage(l)
		if !ok {
			errs = append(errs, &rules.RuleLoadError{Origin: "user rules", Reason: fmt.Sprintf("unsupported language %q", l)})
			continue
		}
		for _, ur := range p.Rules[l] {
			r, err := ur.toRule(lang)
			if err != nil {
				errs = append(errs, err)
			}
			out = append(out, r)
		}
	}
	return out, errs
}

func (ur UserRule) toRule(lang ir.Language) (rules.Rule, error) {
	sev, err := ir.ParseSeverity(ur.Severity)
	if err != nil {
		sev = ir.SeverityWarning
	}
	r := rules.Rule{
		ID:            strings.TrimSpace(ur.ID),
		Name:          ur.ID,
		Language:      lang,
		Severity:      sev,
		Description:   ur.Description,
		FixSuggestion: ur.Fix,
		AIFixable:     true,
		Tags:          []string{"custom"},
		Enabled:       ur.Enabled == nil || *ur.Enabled,
		Scope:         rules.ScopeProject,
	}
	det, derr := rules.NewDetection(string(rules.KindRegex), ur.Pattern, nil)
	if det == nil {
		det = rules.Regex{Source: ur.Pattern}
	}
	r.Detection = det
	switch {
	case err != nil:
		r.Enabled = false
		return r, &rules.RuleLoadError{RuleID: r.ID, Origin: "user rules", Err: err}
	case derr != nil:
		r.Enabled = false
		return r, derr
	}
	return r, nil
}
