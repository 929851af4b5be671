package rules

import (
	"github.com/jeryldev/patingin/internal/ir"
)

// Settings are the review-time filters applied after matching.
type Settings struct {
	SeverityThreshold  ir.Severity
	LanguageThresholds map[ir.Language]ir.Severity
	FocusLanguages     []ir.Language
}

func DefaultSettings() Settings {
	return Settings{
		SeverityThreshold:  ir.SeverityWarning,
		LanguageThresholds: map[ir.Language]ir.Severity{},
	}
}

// ThresholdFor returns the language override when present, else the global
// threshold.
func (s Settings) ThresholdFor(lang ir.Language) ir.Severity {
	if t, ok := s.LanguageThresholds[lang]; ok && t != ir.SeverityUnknown {
		return t
	}
	if s.SeverityThreshold == ir.SeverityUnknown {
		return ir.SeverityWarning
	}
	return s.SeverityThreshold
}

func (s Settings) SeverityOK(v ir.Violation) bool {
	return v.Severity.AtLeast(s.ThresholdFor(v.Language))
}

// Focused reports whether lang is in scope; an empty focus list means all.
func (s Settings) Focused(lang ir.Language) bool {
	if len(s.FocusLanguages) == 0 {
		return true
	}
	for _, l := range s.FocusLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
