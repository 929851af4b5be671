package shared

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

// ConfigNames are searched in order at the project root.
var ConfigNames = []string{".patingin.yml", ".patingin.yaml", ".patingin.toml"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Duration reads "30s" style values from YAML and TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type Config struct {
	Version string `yaml:"version" toml:"version"`

	Settings struct {
		SeverityThreshold  string            `yaml:"severity_threshold" toml:"severity_threshold" validate:"omitempty,oneof=critical major warning"`
		FocusLanguages     []string          `yaml:"focus_languages" toml:"focus_languages" validate:"dive,oneof=elixir javascript typescript python rust zig sql"`
		LanguageThresholds map[string]string `yaml:"language_thresholds" toml:"language_thresholds" validate:"dive,keys,oneof=elixir javascript typescript python rust zig sql,endkeys,oneof=critical major warning"`
		Ignore             []string          `yaml:"ignore" toml:"ignore"`
		Workers            int               `yaml:"workers" toml:"workers" validate:"gte=0"`
	} `yaml:"settings" toml:"settings"`

	Fix struct {
		Backend             string   `yaml:"backend" toml:"backend" validate:"oneof=claude openai none"`
		Command             string   `yaml:"command" toml:"command"`
		Model               string   `yaml:"model" toml:"model"`
		BaseURL             string   `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
		Timeout             Duration `yaml:"timeout" toml:"timeout"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold" toml:"confidence_threshold" validate:"gte=0,lte=1"`
	} `yaml:"fix" toml:"fix"`

	// RuleFiles are full-schema rule corpora, relative to the config file.
	RuleFiles     []string       `yaml:"rule_files" toml:"rule_files"`
	DisabledRules []string       `yaml:"disabled_rules" toml:"disabled_rules"`
	Waivers       []rules.Waiver `yaml:"waivers" toml:"waivers" validate:"dive"`

	Database struct {
		DSN string `yaml:"dsn" toml:"dsn"`
	} `yaml:"database" toml:"database"`

	API struct {
		Addr           string   `yaml:"addr" toml:"addr" validate:"omitempty,hostname_port"`
		AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
		// TokenHash is a bcrypt hash; see `patingin serve --new-token`.
		TokenHash string `yaml:"token_hash" toml:"token_hash"`
	} `yaml:"api" toml:"api"`

	Logging struct {
		Format string `yaml:"format" toml:"format" validate:"oneof=text json"`
		Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	} `yaml:"logging" toml:"logging"`

	// Path is the file the config was read from, if any.
	Path string `yaml:"-" toml:"-"`
}

func DefaultConfig() Config {
	var c Config
	c.Version = "1.0"
	c.Settings.SeverityThreshold = "warning"
	c.Fix.Backend = "claude"
	c.Fix.Timeout = Duration{30 * time.Second}
	c.Fix.ConfidenceThreshold = 0.7
	c.Database.DSN = DefaultDBPath()
	c.API.Addr = "127.0.0.1:8484"
	c.Logging.Format = "text"
	c.Logging.Level = "warn"
	return c
}

// DefaultDBPath keeps history next to the user rules file.
func DefaultDBPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "patingin-history.db"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "patingin", "history.db")
}

// FindConfig returns the first config file present in dir, or "".
func FindConfig(dir string) string {
	for _, n := range ConfigNames {
		p := filepath.Join(dir, n)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfig applies defaults, then the file at path (YAML, or TOML by
// extension), then environment overrides. A missing path is not an error.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("read config: %w", err)
		default:
			if strings.EqualFold(filepath.Ext(path), ".toml") {
				err = toml.Unmarshal(b, &c)
			} else {
				err = yaml.Unmarshal(b, &c)
			}
			if err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
			c.Path = path
		}
	}

	// Env overrides (simple, explicit)
	if v := os.Getenv("PATINGIN_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PATINGIN_API_TOKEN_HASH"); v != "" {
		c.API.TokenHash = v
	}
	if v := os.Getenv("PATINGIN_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PATINGIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PATINGIN_FIX_BACKEND"); v != "" {
		c.Fix.Backend = v
	}
	if v := os.Getenv("PATINGIN_FIX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Fix.Timeout = Duration{d}
		} else if n, err := strconv.Atoi(v); err == nil {
			c.Fix.Timeout = Duration{time.Duration(n) * time.Second}
		}
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" && c.Fix.Model == "" {
		c.Fix.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && c.Fix.BaseURL == "" {
		c.Fix.BaseURL = v
	}

	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// ReviewSettings converts the validated settings block.
func (c Config) ReviewSettings() rules.Settings {
	s := rules.DefaultSettings()
	if sev, err := ir.ParseSeverity(c.Settings.SeverityThreshold); err == nil {
		s.SeverityThreshold = sev
	}
	for _, name := range c.Settings.FocusLanguages {
		if l, ok := ir.ParseLanguage(name); ok {
			s.FocusLanguages = append(s.FocusLanguages, l)
		}
	}
	for name, sev := range c.Settings.LanguageThresholds {
		l, ok := ir.ParseLanguage(name)
		if !ok {
			continue
		}
		if v, err := ir.ParseSeverity(sev); err == nil {
			s.LanguageThresholds[l] = v
		}
	}
	return s
}

// RulePaths resolves RuleFiles against the config file's directory.
func (c Config) RulePaths() []string {
	base := "."
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	out := make([]string, 0, len(c.RuleFiles))
	for _, p := range c.RuleFiles {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		out = append(out, p)
	}
	return out
}
