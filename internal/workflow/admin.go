package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/store"
)

// SettingSaveDir holds the directory reports and log exports are written to.
const SettingSaveDir = "save_dir"

func requireAdmin(op string, g credential.Grant) error {
	if !g.Is(credential.RoleAdmin) {
		return fmt.Errorf("%s: %w", op, credential.ErrGrantRequired)
	}
	return nil
}

// EnsureSettings writes first-run defaults for the save directory and the
// e-mail configuration. Existing values are never touched.
func (e *Engine) EnsureSettings(ctx context.Context) ([]string, error) {
	defaults := notify.Defaults().Settings()
	if e.defaultSaveDir != "" {
		defaults[SettingSaveDir] = e.defaultSaveDir
	}
	written, err := e.store.SetSettingsIfAbsent(ctx, defaults)
	if err != nil {
		return nil, err
	}
	if len(written) > 0 {
		e.logger.Debug("default settings written", "keys", written)
	}
	return written, nil
}

// SaveDir returns the report directory.
func (e *Engine) SaveDir(ctx context.Context) (string, error) {
	dir, ok, err := e.store.GetSetting(ctx, SettingSaveDir)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(dir) == "" {
		dir = e.defaultSaveDir
	}
	if dir == "" {
		return "", &ValidationError{Field: SettingSaveDir, Message: "no report directory configured"}
	}
	return dir, nil
}

// SetSaveDir changes the report directory. The directory is created if
// needed; a directory that cannot be created is an *IOError.
func (e *Engine) SetSaveDir(ctx context.Context, admin credential.Grant, dir string) (string, error) {
	if err := requireAdmin("change save directory", admin); err != nil {
		return "", err
	}
	dir, err := cleanInput("directory", dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &ValidationError{Field: "directory", Message: err.Error()}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", &IOError{Capability: "save_dir", Err: err}
	}

	if err := e.store.SetSettingsWithLog(ctx, map[string]string{SettingSaveDir: abs}, store.LogRecord{
		Level:   store.LevelAudit,
		Action:  "save_dir_change",
		Details: map[string]any{"path": abs},
	}); err != nil {
		return "", err
	}
	e.logger.Info("save directory changed", "path", abs)
	return abs, nil
}

// NotificationConfig returns the stored e-mail configuration.
func (e *Engine) NotificationConfig(ctx context.Context) (notify.Config, error) {
	vals, err := e.store.GetSettings(ctx, notify.SettingKeys...)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.ConfigFromSettings(vals), nil
}

// ConfigureNotification stores cfg. An enabled configuration must be
// complete; otherwise *notify.ConfigError is returned and nothing changes.
func (e *Engine) ConfigureNotification(ctx context.Context, admin credential.Grant, cfg notify.Config) error {
	if err := requireAdmin("configure e-mail", admin); err != nil {
		return err
	}
	if cfg.Enabled {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := e.store.SetSettingsWithLog(ctx, cfg.Settings(), store.LogRecord{
		Level:  store.LevelAudit,
		Action: "email_config",
		Details: map[string]any{
			"host":       cfg.Host,
			"port":       cfg.Port,
			"ssl":        cfg.SSL,
			"starttls":   cfg.StartTLS,
			"recipients": len(cfg.Recipients),
			"enabled":    cfg.Enabled,
		},
	}); err != nil {
		return err
	}
	e.logger.Info("e-mail configured", "server", cfg.String(), "enabled", cfg.Enabled)
	return nil
}

// ExportLogs writes the log stream as semicolon separated CSV into dir (the
// save directory when dir is empty) and returns the file path and row count.
func (e *Engine) ExportLogs(ctx context.Context, admin credential.Grant, dir string) (string, int, error) {
	if err := requireAdmin("export logs", admin); err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(dir) == "" {
		var err error
		if dir, err = e.SaveDir(ctx); err != nil {
			return "", 0, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, &IOError{Capability: "export", Err: err}
	}

	path := filepath.Join(dir, fmt.Sprintf("logs_%d.csv", e.store.Now().Unix()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, &IOError{Capability: "export", Err: err}
	}

	n, err := e.store.ExportLogsCSV(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &IOError{Capability: "export", Err: cerr}
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}

	e.logger.Info("logs exported", "path", path, "rows", n)
	return path, n, nil
}
