package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeryldev/patingin/internal/ir"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAnalyze_NamesFromPackageFiles(t *testing.T) {
	tests := []struct {
		file, content, name string
		typ                 Type
		lang                ir.Language
	}{
		{"mix.exs", "defmodule MyApp.MixProject do\n  def project, do: [app: :my_app, version: \"0.1.0\"]\nend\n", "my_app", TypeElixir, ir.Elixir},
		{"package.json", `{"name": "web-client", "version": "1.0.0"}`, "web-client", TypeJavaScript, ir.JavaScript},
		{"Cargo.toml", "[package]\nname = \"crab\"\nversion = \"0.1.0\"\n", "crab", TypeRust, ir.Rust},
		{"pyproject.toml", "[project]\nname = \"snake\"\n", "snake", TypePython, ir.Python},
		{"pyproject.toml", "[tool.poetry]\nname = \"poet\"\n", "poet", TypePython, ir.Python},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, filepath.Join(dir, tt.file), tt.content)
			info, err := Analyze(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, tt.typ, info.Type)
			assert.Equal(t, []ir.Language{tt.lang}, info.Languages)
			assert.Equal(t, []string{tt.file}, info.PackageFiles)
		})
	}
}

func TestAnalyze_MultiLanguageAndFallbacks(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "package.json"), `{"name": "multi"}`)
	write(t, filepath.Join(dir, "tsconfig.json"), `{}`)
	write(t, filepath.Join(dir, "requirements.txt"), "flask\n")
	info, err := Analyze(dir)
	require.NoError(t, err)
	assert.Equal(t, "multi", info.Name)
	assert.Equal(t, TypeJavaScript, info.Type)
	assert.Equal(t, []ir.Language{ir.JavaScript, ir.TypeScript, ir.Python}, info.Languages)
	assert.True(t, info.Uses(ir.Python))
	assert.False(t, info.Uses(ir.Rust))
	assert.Equal(t, "multi (javascript project with javascript, typescript, python)", info.Describe())

	plain := filepath.Join(t.TempDir(), "scripts")
	write(t, filepath.Join(plain, "load.sql"), "select 1;")
	write(t, filepath.Join(plain, "run.py"), "print(1)")
	info, err = Analyze(plain)
	require.NoError(t, err)
	assert.Equal(t, "scripts", info.Name)
	assert.Equal(t, TypeGeneric, info.Type)
	assert.Equal(t, []ir.Language{ir.Python, ir.SQL}, info.Languages)
}

func TestDetect_WalksUpToRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	write(t, filepath.Join(root, "mix.exs"), "[app: :repo_app]")
	deep := filepath.Join(root, "lib", "repo", "web")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	info, err := Detect(deep)
	require.NoError(t, err)
	assert.Equal(t, root, info.Root)
	assert.Equal(t, "repo_app", info.Name)

	pkg := filepath.Join(t.TempDir(), "svc")
	write(t, filepath.Join(pkg, "Cargo.toml"), "[package]\nname = \"svc\"\n")
	src := filepath.Join(pkg, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	info, err = Detect(src)
	require.NoError(t, err)
	assert.Equal(t, pkg, info.Root)
	assert.Equal(t, TypeRust, info.Type)
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file.txt")
	write(t, f, "x")
	_, err = Analyze(f)
	assert.Error(t, err)
}
