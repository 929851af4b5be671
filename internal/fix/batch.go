package fix

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jeryldev/patingin/internal/ir"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultContextLines = 3
)

type Status string

const (
	StatusApplied       Status = "applied"
	StatusWouldApply    Status = "would_apply"
	StatusLowConfidence Status = "low_confidence"
	StatusInvalid       Status = "invalid"
	StatusUnchanged     Status = "unchanged"
	StatusFailed        Status = "failed"
	StatusSkipped       Status = "skipped"
)

type Options struct {
	Root         string
	Timeout      time.Duration
	Threshold    float64
	DryRun       bool
	ContextLines int
	// Describe supplies the rule description for a request.
	Describe func(ir.Violation) string
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Threshold <= 0 {
		o.Threshold = HighConfidence
	}
	if o.ContextLines <= 0 {
		o.ContextLines = DefaultContextLines
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type Outcome struct {
	Violation ir.Violation `json:"violation"`
	Result    ir.FixResult `json:"result"`
	Status    Status       `json:"status"`
	Err       string       `json:"error,omitempty"`
}

type Result struct {
	Outcomes      []Outcome `json:"outcomes"`
	FilesModified []string  `json:"files_modified"`
}

func (r Result) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// BySeverity orders violations for fixing: severity desc, then file and line.
func BySeverity(vs []ir.Violation) []ir.Violation {
	out := append([]ir.Violation(nil), vs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.LineNumber < b.LineNumber
	})
	return out
}

// Batch fixes violations one at a time in severity order. Backend failures and
// timeouts mark the violation failed and the batch moves on. Fixes that pass
// the confidence gate are written per file at the end unless DryRun is set.
func Batch(ctx context.Context, f Fixer, vs []ir.Violation, opts Options) (Result, error) {
	opts = opts.withDefaults()
	var res Result
	claimed := map[lineKey]bool{}

	for _, v := range BySeverity(vs) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out := Outcome{Violation: v}
		k := lineKey{v.FilePath, v.LineNumber}
		if claimed[k] {
			out.Status = StatusSkipped
			out.Err = "line already fixed"
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		out.Result, out.Status, out.Err = propose(ctx, f, v, opts)
		if out.Status == StatusWouldApply {
			claimed[k] = true
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	if opts.DryRun {
		return res, nil
	}
	return Commit(res, opts), nil
}

// Commit writes every would-apply outcome of res, grouped per file. A file
// that cannot be written marks all of its outcomes failed.
func Commit(res Result, opts Options) Result {
	opts = opts.withDefaults()
	pending := map[string][]Edit{}
	pendingIdx := map[string][]int{}
	for i, o := range res.Outcomes {
		if o.Status != StatusWouldApply {
			continue
		}
		v := o.Violation
		pending[v.FilePath] = append(pending[v.FilePath], Edit{Line: v.LineNumber, Original: v.Content, Text: o.Result.FixedText})
		pendingIdx[v.FilePath] = append(pendingIdx[v.FilePath], i)
	}

	files := make([]string, 0, len(pending))
	for file := range pending {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		err := ApplyFile(resolve(opts.Root, file), pending[file])
		for _, i := range pendingIdx[file] {
			if err != nil {
				res.Outcomes[i].Status = StatusFailed
				res.Outcomes[i].Err = err.Error()
			} else {
				res.Outcomes[i].Status = StatusApplied
			}
		}
		if err != nil {
			opts.Logger.Warn("applying fixes failed", "file", file, "err", err)
			continue
		}
		res.FilesModified = append(res.FilesModified, file)
	}
	return res
}

type lineKey struct {
	file string
	line int
}

// propose asks the fixer for one violation and grades the answer. A passing
// fix comes back as StatusWouldApply.
func propose(ctx context.Context, f Fixer, v ir.Violation, opts Options) (ir.FixResult, Status, string) {
	before, after, err := ReadContext(resolve(opts.Root, v.FilePath), v.LineNumber, opts.ContextLines)
	if err != nil {
		opts.Logger.Debug("no context for fix", "file", v.FilePath, "err", err)
	}
	desc := ""
	if opts.Describe != nil {
		desc = opts.Describe(v)
	}

	fctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	fixed, err := f.Fix(fctx, NewRequest(v, desc, before, after))
	if err == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
		err = ErrFixTimeout
	}
	if err != nil {
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrFixTimeout) {
			err = errors.Join(ErrFixTimeout, err)
		}
		opts.Logger.Warn("fix failed", "rule", v.RuleID, "file", v.FilePath, "line", v.LineNumber, "err", err)
		return ir.FixResult{OriginalText: v.Content}, StatusFailed, err.Error()
	}

	r := Score(v.Language, v.Content, fixed)
	switch {
	case strings.TrimSpace(fixed) == strings.TrimSpace(v.Content):
		return r, StatusUnchanged, ""
	case !r.StructurallyValid:
		return r, StatusInvalid, ""
	case r.Confidence < opts.Threshold:
		return r, StatusLowConfidence, ""
	}
	return r, StatusWouldApply, ""
}
