package gitx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffArgs(t *testing.T) {
	tests := []struct {
		scope Scope
		want  []string
		name  string
	}{
		{DefaultScope(), []string{"diff", "--no-color", "--no-ext-diff", "HEAD"}, "HEAD"},
		{Staged(), []string{"diff", "--no-color", "--no-ext-diff", "--cached"}, "staged"},
		{Unstaged(), []string{"diff", "--no-color", "--no-ext-diff"}, "unstaged"},
		{Since("main~3"), []string{"diff", "--no-color", "--no-ext-diff", "main~3"}, "since main~3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.scope.DiffArgs())
		assert.Equal(t, tt.name, tt.scope.String())
	}
}

func TestScopeFromFlags(t *testing.T) {
	s, err := ScopeFromFlags(false, false, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultScope(), s)

	s, err = ScopeFromFlags(true, false, "")
	require.NoError(t, err)
	assert.Equal(t, Staged(), s)

	s, err = ScopeFromFlags(false, false, "v1.2.0")
	require.NoError(t, err)
	assert.Equal(t, Since("v1.2.0"), s)

	_, err = ScopeFromFlags(true, true, "")
	assert.Error(t, err)
}

func gitRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	r := Open(dir, nil)
	ctx := context.Background()
	for _, args := range [][]string{
		{"init", "-q", "-b", "main"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "Dev"},
		{"config", "commit.gpgsign", "false"},
	} {
		_, err := r.run(ctx, args...)
		require.NoError(t, err)
	}
	path := filepath.Join(dir, "user.ex")
	require.NoError(t, os.WriteFile(path, []byte("defmodule User do\nend\n"), 0o644))
	_, err := r.run(ctx, "add", ".")
	require.NoError(t, err)
	_, err = r.run(ctx, "commit", "-q", "-m", "init")
	require.NoError(t, err)
	return r, path
}

func TestRepo_DiffScopes(t *testing.T) {
	r, path := gitRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(path, []byte("defmodule User do\n  def a(x), do: String.to_atom(x)\nend\n"), 0o644))
	_, err := r.run(ctx, "add", "user.ex")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("defmodule User do\n  def a(x), do: String.to_atom(x)\n  def b, do: :ok\nend\n"), 0o644))

	head, err := r.Diff(ctx, DefaultScope())
	require.NoError(t, err)
	assert.Contains(t, head, "+  def a(x), do: String.to_atom(x)")
	assert.Contains(t, head, "+  def b, do: :ok")

	staged, err := r.Diff(ctx, Staged())
	require.NoError(t, err)
	assert.Contains(t, staged, "String.to_atom")
	assert.NotContains(t, staged, "def b")

	unstaged, err := r.Diff(ctx, Unstaged())
	require.NoError(t, err)
	assert.Contains(t, unstaged, "+  def b, do: :ok")
	assert.NotContains(t, unstaged, "+  def a")

	assert.Equal(t, "main", r.CurrentBranch(ctx))
	assert.True(t, r.IsRepo(ctx))

	root, err := r.Root(ctx)
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(r.Dir)
	got, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, want, got)
}

func TestRepo_BadRef(t *testing.T) {
	r, _ := gitRepo(t)
	_, err := r.Diff(context.Background(), Since("no-such-ref"))
	var gerr *GitError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Error(), "no-such-ref")
}

func TestRepo_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	r := Open(t.TempDir(), nil)
	assert.False(t, r.IsRepo(context.Background()))
	assert.Equal(t, "(no branch)", r.CurrentBranch(context.Background()))
}
