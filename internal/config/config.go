// Package config loads process configuration from an optional file,
// NESTCHECK_* environment variables and built-in defaults, in that order of
// precedence (environment wins over the file).
//
// Settings the administrator changes at runtime (save directory, e-mail,
// PINs) live in the store, not here.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/nestcheck/internal/credential"
)

// EnvPrefix prefixes every environment variable, e.g. NESTCHECK_DATA_DIR or
// NESTCHECK_LOG_LEVEL.
const EnvPrefix = "NESTCHECK"

// Config is the process configuration.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	DBPath        string `mapstructure:"db_path"`
	ChecklistPath string `mapstructure:"checklist_path"`
	ReportsDir    string `mapstructure:"reports_dir"`
	PhotosDir     string `mapstructure:"photos_dir"`

	// FontPath names a TrueType font for Unicode text in reports. Empty
	// selects the built-in Helvetica.
	FontPath string `mapstructure:"font_path"`

	Log     LogConfig     `mapstructure:"log"`
	Lockout LockoutConfig `mapstructure:"lockout"`
}

// LogConfig selects the process log handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LockoutConfig mirrors credential.LockoutPolicy.
type LockoutConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("data_dir", filepath.Join(home, ".nestcheck"))
	// Derived from data_dir after unmarshalling.
	v.SetDefault("db_path", "")
	v.SetDefault("checklist_path", "")
	v.SetDefault("reports_dir", "")
	v.SetDefault("photos_dir", "")
	v.SetDefault("font_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("lockout.max_attempts", credential.DefaultLockout.MaxAttempts)
	v.SetDefault("lockout.cooldown", credential.DefaultLockout.Cooldown.String())
}

// Load reads configuration. configFile may be empty; when set it must exist
// and be yaml, toml or json.
func Load(configFile string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDerived() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "app.db")
	}
	if c.ChecklistPath == "" {
		c.ChecklistPath = filepath.Join(c.DataDir, "checklist.yaml")
	}
	if c.ReportsDir == "" {
		c.ReportsDir = filepath.Join(c.DataDir, "reports")
	}
	if c.PhotosDir == "" {
		c.PhotosDir = filepath.Join(c.DataDir, "photos")
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Lockout.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("lockout.max_attempts must be >= 0, got %d", c.Lockout.MaxAttempts))
	}
	if c.Lockout.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("lockout.cooldown must be >= 0, got %s", c.Lockout.Cooldown))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// EnsureDirs creates the data, report and photo directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath), c.ReportsDir, c.PhotosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// LockoutPolicy returns the PIN lockout policy.
func (c *Config) LockoutPolicy() credential.LockoutPolicy {
	return credential.LockoutPolicy{MaxAttempts: c.Lockout.MaxAttempts, Cooldown: c.Lockout.Cooldown}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w. verbose forces debug.
func (c LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
