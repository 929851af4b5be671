package ir

import (
	"sort"
	"time"
)

const Version = "1.0"

type ChangeKind string

const (
	Added   ChangeKind = "added"
	Context ChangeKind = "context"
	Removed ChangeKind = "removed"
)

// ChangedLine is one line of a hunk. NewLineNumber is 0 for removed lines.
type ChangedLine struct {
	FilePath      string     `json:"file_path"`
	NewLineNumber int        `json:"new_line_number,omitempty"`
	Content       string     `json:"content"`
	Kind          ChangeKind `json:"change_kind"`
}

type Hunk struct {
	OldStart int           `json:"old_start"`
	OldLines int           `json:"old_lines"`
	NewStart int           `json:"new_start"`
	NewLines int           `json:"new_lines"`
	Section  string        `json:"section,omitempty"`
	Lines    []ChangedLine `json:"lines"`
}

// NewSide returns the added and context lines of the hunk in order.
func (h Hunk) NewSide() []ChangedLine {
	out := make([]ChangedLine, 0, len(h.Lines))
	for _, l := range h.Lines {
		if l.Kind != Removed {
			out = append(out, l)
		}
	}
	return out
}

type FileChange struct {
	FilePath string `json:"file_path"`
	OldPath  string `json:"old_path,omitempty"`
	Binary   bool   `json:"binary,omitempty"`
	Renamed  bool   `json:"renamed,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Hunks    []Hunk `json:"hunks"`
}

func (fc FileChange) AddedLines() []ChangedLine {
	var out []ChangedLine
	for _, h := range fc.Hunks {
		for _, l := range h.Lines {
			if l.Kind == Added {
				out = append(out, l)
			}
		}
	}
	return out
}

// NewSideLines flattens every hunk's new-side view, in file order.
func (fc FileChange) NewSideLines() []ChangedLine {
	var out []ChangedLine
	for _, h := range fc.Hunks {
		out = append(out, h.NewSide()...)
	}
	return out
}

type Violation struct {
	RuleID        string   `json:"rule_id"`
	RuleName      string   `json:"rule_name,omitempty"`
	Language      Language `json:"language"`
	FilePath      string   `json:"file_path"`
	LineNumber    int      `json:"line_number"`
	MatchedText   string   `json:"matched_text,omitempty"`
	Content       string   `json:"content"`
	Severity      Severity `json:"severity"`
	FixSuggestion string   `json:"fix_suggestion,omitempty"`
	AIFixable     bool     `json:"ai_fixable"`
}

type Summary struct {
	Total               int            `json:"total_violations"`
	Critical            int            `json:"critical_count"`
	Major               int            `json:"major_count"`
	Warning             int            `json:"warning_count"`
	ByRule              map[string]int `json:"by_rule"`
	FilesWithViolations int            `json:"files_affected"`
	Files               []string       `json:"files"`
	AutoFixable         int            `json:"auto_fixable_count"`
}

// RuleIDs returns the rule ids present in the summary, sorted.
func (s Summary) RuleIDs() []string {
	ids := make([]string, 0, len(s.ByRule))
	for id := range s.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run is one review invocation as persisted and reported.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Project   string    `json:"project,omitempty"`
	Root      string    `json:"root,omitempty"`

	FilesScanned int         `json:"files_scanned"`
	Violations   []Violation `json:"violations"`
	Summary      Summary     `json:"summary"`
	Warnings     []string    `json:"warnings,omitempty"`
}

type FixRequest struct {
	Violation     Violation `json:"violation"`
	Language      Language  `json:"language"`
	Description   string    `json:"description,omitempty"`
	ContextBefore []string  `json:"context_before,omitempty"`
	ContextAfter  []string  `json:"context_after,omitempty"`
}

type FixResult struct {
	OriginalText      string  `json:"original_text"`
	FixedText         string  `json:"fixed_text"`
	Confidence        float64 `json:"confidence"`
	StructurallyValid bool    `json:"structurally_valid"`
}
