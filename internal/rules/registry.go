package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
)

// Registry is the merged, language-indexed rule set. It is built once and never
// mutated; every accessor hands out copies, so it is safe to share across
// goroutines without locking.
type Registry struct {
	byLang map[ir.Language][]Rule
}

// Build merges built-in and project rules per language. A project rule whose ID
// matches an existing rule of the same language replaces it in place; new IDs
// are appended in the order given. Rules that cannot take part in matching are
// kept, disabled, and reported.
func Build(builtin, project []Rule) (*Registry, []error) {
	reg := &Registry{byLang: map[ir.Language][]Rule{}}
	var errs []error
	for _, r := range builtin {
		if r.Scope == "" {
			r.Scope = ScopeGlobal
		}
		errs = append(errs, reg.put(r)...)
	}
	for _, r := range project {
		r.Scope = ScopeProject
		errs = append(errs, reg.put(r)...)
	}
	return reg, errs
}

func (reg *Registry) put(r Rule) []error {
	var errs []error
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return []error{&RuleLoadError{Reason: "missing id"}}
	}
	lang, ok := ir.ParseLanguage(string(r.Language))
	if !ok {
		return []error{&RuleLoadError{RuleID: r.ID, Reason: fmt.Sprintf("unsupported language %q", r.Language)}}
	}
	r.Language = lang
	if r.Enabled && !r.Usable() {
		r.Enabled = false
		errs = append(errs, &RuleLoadError{RuleID: r.ID, Reason: "detection method is not usable, rule disabled"})
	}

	list := reg.byLang[r.Language]
	if i := slices.IndexFunc(list, func(x Rule) bool { return x.ID == r.ID }); i >= 0 {
		list[i] = r
	} else {
		list = append(list, r)
	}
	reg.byLang[r.Language] = list
	return errs
}

// RulesFor returns the enabled rules of lang in merge order.
func (reg *Registry) RulesFor(lang ir.Language) []Rule {
	var out []Rule
	for _, r := range reg.byLang[lang] {
		if r.Usable() {
			out = append(out, r)
		}
	}
	return out
}

// AllFor includes disabled rules, for listing.
func (reg *Registry) AllFor(lang ir.Language) []Rule {
	return slices.Clone(reg.byLang[lang])
}

// All returns every rule, languages in canonical order.
func (reg *Registry) All() []Rule {
	var out []Rule
	for _, l := range ir.Languages {
		out = append(out, reg.byLang[l]...)
	}
	return out
}

// Find returns the first rule with id, searching languages in canonical order.
func (reg *Registry) Find(id string) (Rule, error) {
	for _, l := range ir.Languages {
		if r, err := reg.FindIn(l, id); err == nil {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

func (reg *Registry) FindIn(lang ir.Language, id string) (Rule, error) {
	id = strings.TrimSpace(id)
	for _, r := range reg.byLang[lang] {
		if r.ID == id {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %s/%s", ErrRuleNotFound, lang, id)
}

// Search matches keyword case-insensitively against id, name, description and
// tags. Disabled rules are included.
func (reg *Registry) Search(keyword string) []Rule {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	var out []Rule
	for _, r := range reg.All() {
		if kw == "" || matchesKeyword(r, kw) {
			out = append(out, r)
		}
	}
	return out
}

func matchesKeyword(r Rule, kw string) bool {
	if strings.Contains(strings.ToLower(r.ID), kw) ||
		strings.Contains(strings.ToLower(r.Name), kw) ||
		strings.Contains(strings.ToLower(r.Description), kw) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), kw) {
			return true
		}
	}
	return false
}

// Languages lists the languages that have at least one rule.
func (reg *Registry) Languages() []ir.Language {
	var out []ir.Language
	for _, l := range ir.Languages {
		if len(reg.byLang[l]) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func (reg *Registry) Len() int {
	n := 0
	for _, rs := range reg.byLang {
		n += len(rs)
	}
	return n
}

// Usable counts the rules that can produce matches.
func (reg *Registry) Usable() int {
	n := 0
	for _, l := range ir.Languages {
		n += len(reg.RulesFor(l))
	}
	return n
}

// WithDisabled returns a copy of the registry with the given ids disabled in
// every language. The receiver is left untouched.
func (reg *Registry) WithDisabled(ids []string) *Registry {
	off := map[string]bool{}
	for _, id := range ids {
		off[strings.TrimSpace(id)] = true
	}
	cp := &Registry{byLang: make(map[ir.Language][]Rule, len(reg.byLang))}
	for l, rs := range reg.byLang {
		out := slices.Clone(rs)
		for i := range out {
			if off[out[i].ID] {
				out[i].Enabled = false
			}
		}
		cp.byLang[l] = out
	}
	return cp
}
