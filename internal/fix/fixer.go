// Package fix drives AI-assisted correction of violations: building requests,
// talking to a fixer backend, scoring what comes back and applying the fixes
// that pass.
package fix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeryldev/patingin/internal/ir"
)

var (
	ErrFixTimeout       = errors.New("fix timed out")
	ErrFixerUnavailable = errors.New("no fixer available")
)

// FixerError wraps a backend failure for one violation.
type FixerError struct {
	Backend string
	Err     error
}

func (e *FixerError) Error() string { return fmt.Sprintf("%s fixer: %v", e.Backend, e.Err) }
func (e *FixerError) Unwrap() error { return e.Err }

// Fixer proposes replacement text for the line a violation sits on.
type Fixer interface {
	Fix(ctx context.Context, req ir.FixRequest) (string, error)
}

type FixerFunc func(ctx context.Context, req ir.FixRequest) (string, error)

func (f FixerFunc) Fix(ctx context.Context, req ir.FixRequest) (string, error) { return f(ctx, req) }

// NewRequest builds a request for v. description is the rule description.
func NewRequest(v ir.Violation, description string, before, after []string) ir.FixRequest {
	return ir.FixRequest{
		Violation:     v,
		Language:      v.Language,
		Description:   description,
		ContextBefore: before,
		ContextAfter:  after,
	}
}

// BuildPrompt renders the instruction sent to text-in/text-out backends.
func BuildPrompt(req ir.FixRequest) string {
	v := req.Violation
	var b strings.Builder
	fmt.Fprintf(&b, "Fix this %s code violation:\n\n", req.Language)
	fmt.Fprintf(&b, "File: %s\nLine: %d\n", v.FilePath, v.LineNumber)
	fmt.Fprintf(&b, "Issue: %s\n", firstNonEmpty(req.Description, v.RuleName, v.RuleID))
	if v.FixSuggestion != "" {
		fmt.Fprintf(&b, "Suggestion: %s\n", v.FixSuggestion)
	}
	if len(req.ContextBefore) > 0 || len(req.ContextAfter) > 0 {
		fmt.Fprintf(&b, "\nSurrounding code (do not return it):\n```%s\n", req.Language)
		for _, l := range req.ContextBefore {
			b.WriteString(l + "\n")
		}
		b.WriteString(">>> " + v.Content + "\n")
		for _, l := range req.ContextAfter {
			b.WriteString(l + "\n")
		}
		b.WriteString("```\n")
	}
	fmt.Fprintf(&b, "\nOriginal code:\n```%s\n%s\n```\n\n", req.Language, v.Content)
	b.WriteString("Please provide ONLY the fixed code without explanations. ")
	b.WriteString("Return the corrected line(s) that should replace the original code.")
	return b.String()
}

// ExtractCode returns the body of the first fenced block in resp, or the
// trimmed response when it has none.
func ExtractCode(resp string) string {
	resp = strings.TrimSpace(resp)
	if !strings.Contains(resp, "```") {
		return resp
	}
	var code []string
	in := false
	for _, l := range strings.Split(resp, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			if in {
				break
			}
			in = true
			continue
		}
		if in {
			code = append(code, l)
		}
	}
	if len(code) == 0 {
		return resp
	}
	return strings.Join(code, "\n")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
