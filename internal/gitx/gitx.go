// Package gitx runs the git CLI to collect the diff a review works on.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

type ScopeKind string

const (
	ScopeHead     ScopeKind = "head"
	ScopeStaged   ScopeKind = "staged"
	ScopeUnstaged ScopeKind = "unstaged"
	ScopeSinceRef ScopeKind = "since"
)

// Scope selects which changes are reviewed.
type Scope struct {
	Kind ScopeKind
	Ref  string
}

// DefaultScope covers every uncommitted change, staged or not.
func DefaultScope() Scope { return Scope{Kind: ScopeHead} }

func Staged() Scope          { return Scope{Kind: ScopeStaged} }
func Unstaged() Scope        { return Scope{Kind: ScopeUnstaged} }
func Since(ref string) Scope { return Scope{Kind: ScopeSinceRef, Ref: ref} }

// ScopeFromFlags resolves CLI flags. At most one may be set.
func ScopeFromFlags(staged, uncommitted bool, since string) (Scope, error) {
	n := 0
	for _, set := range []bool{staged, uncommitted, since != ""} {
		if set {
			n++
		}
	}
	switch {
	case n > 1:
		return Scope{}, errors.New("--staged, --uncommitted and --since are mutually exclusive")
	case staged:
		return Staged(), nil
	case uncommitted:
		return Unstaged(), nil
	case since != "":
		return Since(since), nil
	}
	return DefaultScope(), nil
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeStaged:
		return "staged"
	case ScopeUnstaged:
		return "unstaged"
	case ScopeSinceRef:
		return "since " + s.Ref
	}
	return "HEAD"
}

// DiffArgs returns the git arguments producing this scope's diff.
func (s Scope) DiffArgs() []string {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	switch s.Kind {
	case ScopeStaged:
		return append(args, "--cached")
	case ScopeUnstaged:
		return args
	case ScopeSinceRef:
		return append(args, s.Ref)
	}
	return append(args, "HEAD")
}

// GitError is a failed git invocation.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error { return e.Err }

// Repo runs git in Dir.
type Repo struct {
	Dir    string
	Binary string
	Logger *slog.Logger
}

func Open(dir string, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{Dir: dir, Binary: "git", Logger: logger}
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	r.Logger.Debug("git", "args", args, "dir", r.Dir)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &GitError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

func (r *Repo) Diff(ctx context.Context, s Scope) (string, error) {
	return r.run(ctx, s.DiffArgs()...)
}

// CurrentBranch returns the short branch name, "HEAD" when detached and
// "(no branch)" when it cannot be resolved.
func (r *Repo) CurrentBranch(ctx context.Context) string {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		if out, err = r.run(ctx, "symbolic-ref", "--short", "HEAD"); err != nil {
			return "(no branch)"
		}
	}
	return strings.TrimSpace(out)
}

func (r *Repo) Root(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) IsRepo(ctx context.Context) bool {
	_, err := r.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}
