package rules

import (
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jeryldev/patingin/internal/ir"
)

// Waiver suppresses matches of one rule. Path is a doublestar glob; Contains
// is a case-insensitive substring of the line content.
type Waiver struct {
	RuleID   string    `yaml:"rule_id" toml:"rule_id" json:"rule_id" validate:"required"`
	Path     string    `yaml:"path" toml:"path" json:"path,omitempty"`
	Contains string    `yaml:"contains" toml:"contains" json:"contains,omitempty"`
	Reason   string    `yaml:"reason" toml:"reason" json:"reason,omitempty"`
	Expires  time.Time `yaml:"expires" toml:"expires" json:"expires,omitempty"`
}

func (w Waiver) Active(now time.Time) bool {
	return w.Expires.IsZero() || now.Before(w.Expires)
}

func (w Waiver) Matches(v ir.Violation) bool {
	if !eqCI(v.RuleID, w.RuleID) {
		return false
	}
	if w.Path != "" {
		ok, err := doublestar.Match(w.Path, v.FilePath)
		if err != nil || !ok {
			return false
		}
	}
	if w.Contains != "" && !strings.Contains(strings.ToLower(v.Content), strings.ToLower(w.Contains)) {
		return false
	}
	return true
}

// ApplyWaivers filters out violations matching any active waiver.
// Returns (kept, waivedCount).
func ApplyWaivers(in []ir.Violation, waivers []Waiver, now time.Time) ([]ir.Violation, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	var active []Waiver
	for _, w := range waivers {
		if w.Active(now) {
			active = append(active, w)
		}
	}
	var out []ir.Violation
	waived := 0
next:
	for _, v := range in {
		for _, w := range active {
			if w.Matches(v) {
				waived++
				continue next
			}
		}
		out = append(out, v)
	}
	return out, waived
}

func eqCI(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }
