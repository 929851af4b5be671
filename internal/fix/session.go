package fix

import (
	"context"
	"sort"

	"github.com/jeryldev/patingin/internal/ir"
)

type Decision int

const (
	DecisionSkip Decision = iota
	DecisionApply
	DecisionApplyAll
	DecisionQuit
)

// Proposal is what a Prompter is shown for one violation.
type Proposal struct {
	Index, Total int
	Violation    ir.Violation
	Result       ir.FixResult
	Status       Status
}

type Prompter interface {
	Decide(p Proposal) (Decision, error)
}

// Session walks violations one at a time and applies each accepted fix right
// away. Quitting leaves fixes already written in place.
type Session struct {
	Fixer    Fixer
	Prompter Prompter
	Options  Options
}

// Run processes violations file by file, bottom line first, so applied fixes
// never shift the lines still to come. After apply-all only safe fixes are
// written without asking.
func (s *Session) Run(ctx context.Context, vs []ir.Violation) (Result, error) {
	opts := s.Options.withDefaults()
	ordered := append([]ir.Violation(nil), vs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber > b.LineNumber
		}
		return a.Severity > b.Severity
	})

	var res Result
	modified := map[string]bool{}
	claimed := map[lineKey]bool{}
	applyAll := false

	for i, v := range ordered {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		k := lineKey{v.FilePath, v.LineNumber}
		if claimed[k] {
			res.Outcomes = append(res.Outcomes, Outcome{Violation: v, Status: StatusSkipped, Err: "line already fixed"})
			continue
		}

		r, status, msg := propose(ctx, s.Fixer, v, opts)
		out := Outcome{Violation: v, Result: r, Status: status, Err: msg}
		if status == StatusFailed || status == StatusUnchanged {
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		var d Decision
		switch {
		case applyAll && status == StatusWouldApply:
			d = DecisionApply
		case applyAll:
			d = DecisionSkip
		default:
			var err error
			d, err = s.Prompter.Decide(Proposal{Index: i + 1, Total: len(ordered), Violation: v, Result: r, Status: status})
			if err != nil {
				return res, err
			}
		}

		switch d {
		case DecisionQuit:
			res.Outcomes = append(res.Outcomes, Outcome{Violation: v, Result: r, Status: StatusSkipped})
			return res.finish(modified), nil
		case DecisionApplyAll:
			applyAll = true
			if status != StatusWouldApply {
				out.Status = StatusSkipped
				break
			}
			fallthrough
		case DecisionApply:
			out.Status = s.write(opts, v, r, &out)
			if out.Status == StatusApplied {
				modified[v.FilePath] = true
				claimed[k] = true
			}
		default:
			out.Status = StatusSkipped
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res.finish(modified), nil
}

// write applies an accepted fix. An explicit apply overrides the confidence
// gate but never structural invalidity.
func (s *Session) write(opts Options, v ir.Violation, r ir.FixResult, out *Outcome) Status {
	if !r.StructurallyValid {
		out.Err = "structurally invalid fix not applied"
		return StatusInvalid
	}
	if opts.DryRun {
		return StatusWouldApply
	}
	if err := ApplyFile(resolve(opts.Root, v.FilePath), []Edit{{Line: v.LineNumber, Original: v.Content, Text: r.FixedText}}); err != nil {
		out.Err = err.Error()
		return StatusFailed
	}
	return StatusApplied
}

func (r Result) finish(modified map[string]bool) Result {
	for f := range modified {
		r.FilesModified = append(r.FilesModified, f)
	}
	sort.Strings(r.FilesModified)
	return r
}
