// Package project works out which project a working directory belongs to and
// which languages it uses.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/jeryldev/patingin/internal/ir"
)

type Type string

const (
	TypeGeneric    Type = "generic"
	TypeGit        Type = "git"
	TypeElixir     Type = "elixir"
	TypeJavaScript Type = "javascript"
	TypeTypeScript Type = "typescript"
	TypePython     Type = "python"
	TypeRust       Type = "rust"
	TypeZig        Type = "zig"
)

type Info struct {
	Name         string        `json:"name"`
	Root         string        `json:"root"`
	Languages    []ir.Language `json:"languages"`
	Type         Type          `json:"type"`
	PackageFiles []string      `json:"package_files"`
}

type marker struct {
	file string
	lang ir.Language
	typ  Type
}

// First match decides the project type.
var markers = []marker{
	{"mix.exs", ir.Elixir, TypeElixir},
	{"package.json", ir.JavaScript, TypeJavaScript},
	{"tsconfig.json", ir.TypeScript, TypeTypeScript},
	{"pyproject.toml", ir.Python, TypePython},
	{"requirements.txt", ir.Python, TypePython},
	{"Cargo.toml", ir.Rust, TypeRust},
	{"build.zig", ir.Zig, TypeZig},
}

// Detect resolves the project root from start (git root, else the nearest
// directory holding a package file, else start) and analyzes it.
func Detect(start string) (Info, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return Info{}, err
	}
	root := abs
	if r, ok := findUp(abs, func(dir string) bool { return exists(filepath.Join(dir, ".git")) }); ok {
		root = r
	} else if r, ok := findUp(abs, hasMarker); ok {
		root = r
	}
	return Analyze(root)
}

// Analyze inspects dir without walking up.
func Analyze(dir string) (Info, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return Info{}, err
	}
	if !st.IsDir() {
		return Info{}, fmt.Errorf("%s is not a directory", dir)
	}
	info := Info{Name: name(dir), Root: dir, Type: TypeGeneric, Languages: []ir.Language{}, PackageFiles: []string{}}
	for _, m := range markers {
		if !exists(filepath.Join(dir, m.file)) {
			continue
		}
		info.PackageFiles = append(info.PackageFiles, m.file)
		if !info.Uses(m.lang) {
			info.Languages = append(info.Languages, m.lang)
		}
		if info.Type == TypeGeneric {
			info.Type = m.typ
		}
	}
	if info.Type == TypeGeneric && exists(filepath.Join(dir, ".git")) {
		info.Type = TypeGit
	}
	if len(info.Languages) == 0 {
		info.Languages = scanExtensions(dir)
	}
	return info, nil
}

func (i Info) Uses(lang ir.Language) bool {
	for _, l := range i.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (i Info) Describe() string {
	langs := "unknown"
	if len(i.Languages) > 0 {
		ss := make([]string, len(i.Languages))
		for k, l := range i.Languages {
			ss[k] = string(l)
		}
		langs = strings.Join(ss, ", ")
	}
	return fmt.Sprintf("%s (%s project with %s)", i.Name, i.Type, langs)
}

var mixApp = regexp.MustCompile(`app:\s*:(\w+)`)

// name prefers package metadata over the directory name.
func name(dir string) string {
	if b, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(b, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}
	if b, err := os.ReadFile(filepath.Join(dir, "mix.exs")); err == nil {
		if m := mixApp.FindSubmatch(b); m != nil {
			return string(m[1])
		}
	}
	if b, err := os.ReadFile(filepath.Join(dir, "Cargo.toml")); err == nil {
		var cargo struct {
			Package struct {
				Name string `toml:"name"`
			} `toml:"package"`
		}
		if toml.Unmarshal(b, &cargo) == nil && cargo.Package.Name != "" {
			return cargo.Package.Name
		}
	}
	if b, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		var py struct {
			Project struct {
				Name string `toml:"name"`
			} `toml:"project"`
			Tool struct {
				Poetry struct {
					Name string `toml:"name"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if toml.Unmarshal(b, &py) == nil {
			if py.Project.Name != "" {
				return py.Project.Name
			}
			if py.Tool.Poetry.Name != "" {
				return py.Tool.Poetry.Name
			}
		}
	}
	return filepath.Base(dir)
}

// scanExtensions looks at the files directly inside dir.
func scanExtensions(dir string) []ir.Language {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []ir.Language{}
	}
	seen := map[ir.Language]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if l, ok := ir.LanguageFromPath(e.Name()); ok {
			seen[l] = true
		}
	}
	out := []ir.Language{}
	for _, l := range ir.Languages {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}

func hasMarker(dir string) bool {
	for _, m := range markers {
		if exists(filepath.Join(dir, m.file)) {
			return true
		}
	}
	return false
}

func findUp(start string, match func(string) bool) (string, bool) {
	dir := start
	for {
		if match(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
