package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"

	"github.com/mattn/go-isatty"

	"github.com/jeryldev/patingin/internal/project"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/rulesdsl"
	"github.com/jeryldev/patingin/internal/shared"
	"github.com/jeryldev/patingin/internal/storage"
)

// app is the state shared by every command: resolved config, logger and
// the detected project.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath string
	dir        string
	verbose    bool

	cfg     shared.Config
	logger  *slog.Logger
	project project.Info
}

// init detects the project and loads config. Precedence is flags > config >
// defaults, so commands apply their own flags after this.
func (a *app) init() error {
	info, err := project.Detect(a.dir)
	if err != nil {
		return usageErr("project: %v", err)
	}
	a.project = info

	path := a.configPath
	if path == "" {
		path = shared.FindConfig(info.Root)
	}
	cfg, err := shared.LoadConfig(path)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	a.logger = shared.InitLoggerTo(a.stderr, cfg.Logging.Format, level)
	a.logger.Debug("config loaded", "path", cfg.Path, "project", info.Name, "root", info.Root)
	return nil
}

// registry merges the embedded rules, the config's rule files and the user's
// project rules, then applies disabled_rules. Load problems are returned as
// warnings; only the caller decides whether an empty registry is fatal.
func (a *app) registry() (*rules.Registry, []error) {
	builtin, warns := rulesdsl.Builtin()

	var extra []rules.Rule
	for _, p := range a.cfg.RulePaths() {
		rs, errs := rulesdsl.LoadFile(p, rules.ScopeProject)
		extra = append(extra, rs...)
		warns = append(warns, errs...)
	}

	user, err := rulesdsl.LoadUserRules(rulesdsl.DefaultUserRulesPath())
	if err != nil {
		warns = append(warns, err)
	} else {
		rs, errs := user.RulesFor(a.project.Name, a.project.Root)
		extra = append(extra, rs...)
		warns = append(warns, errs...)
	}

	reg, errs := rules.Build(builtin, extra)
	warns = append(warns, errs...)
	for _, w := range warns {
		a.logger.Warn("rule load", "err", w)
	}
	return reg.WithDisabled(a.cfg.DisabledRules), warns
}

// openDB opens the history database and ensures its schema.
func (a *app) openDB() (*storage.DB, error) {
	db, err := storage.OpenSQLite(a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history db schema: %w", err)
	}
	return db, nil
}

// historyExists avoids creating a database just to read waivers from it.
func (a *app) historyExists() bool {
	_, err := os.Stat(a.cfg.Database.DSN)
	return !errors.Is(err, os.ErrNotExist)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) colorEnabled(noColor bool) bool {
	return !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(a.stdout)
}

// interactive reports whether prompts can be shown.
func (a *app) interactive() bool {
	return isTerminal(a.stdin) && isTerminal(a.stderr)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "cli"
}
