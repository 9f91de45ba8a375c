package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nestcheck/internal/checklist"
	"github.com/roach88/nestcheck/internal/config"
	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/report"
	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/workflow"
)

// app is the wired process: configuration, store and the components built
// on top of it. Every command opens one and closes it before returning.
type app struct {
	cfg    *config.Config
	store  *store.Store
	creds  *credential.Store
	engine *workflow.Engine
	out    *OutputFormatter
	logger *slog.Logger
}

// openApp loads configuration, opens the database and provisions defaults
// (PINs and settings) that are still missing.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, failConfig(out, "failed to load config", err)
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	if err := cfg.EnsureDirs(); err != nil {
		return nil, failConfig(out, "failed to create data directories", err)
	}

	def, err := loadChecklist(cfg.ChecklistPath)
	if err != nil {
		return nil, failConfig(out, "failed to load checklist", err)
	}

	renderer, err := report.NewPDFRenderer(cfg.FontPath)
	if err != nil {
		return nil, failConfig(out, "failed to load report font", err)
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		_ = out.Error(ErrCodeStorage, "failed to open database: "+err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{
		cfg:    cfg,
		store:  st,
		creds:  credential.New(st, credential.WithLockout(cfg.LockoutPolicy()), credential.WithLogger(logger)),
		out:    out,
		logger: logger,
	}
	a.engine = workflow.New(st, def,
		workflow.WithRenderer(report.NewPipeline(renderer,
			report.WithLocation(time.Local),
			report.WithLogger(logger),
		)),
		workflow.WithNotifier(notify.NewSMTPSender(notify.WithLogger(logger))),
		workflow.WithDefaultSaveDir(cfg.ReportsDir),
		workflow.WithLogger(logger),
	)

	ctx := commandContext(cmd)
	if _, err := a.creds.EnsureDefaults(ctx); err != nil {
		a.Close()
		return nil, fail(out, err)
	}
	if _, err := a.engine.EnsureSettings(ctx); err != nil {
		a.Close()
		return nil, fail(out, err)
	}
	return a, nil
}

// loadChecklist reads the checklist file, falling back to the built-in
// definition when none has been written yet.
func loadChecklist(path string) (*checklist.Definition, error) {
	def, err := checklist.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("checklist file missing, using built-in definition", "path", path)
		return checklist.Default(), nil
	}
	return def, err
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// authorize checks a PIN flag. A blank PIN yields the zero Grant so the
// engine reports the missing authorisation itself.
func (a *app) authorize(ctx context.Context, role credential.Role, pin, name string) (credential.Grant, error) {
	if pin == "" {
		return credential.Grant{}, nil
	}
	return a.creds.Authorize(ctx, role, pin, name)
}

// session resolves the session a command works on: the given ID, or the
// active session when id is zero.
func (a *app) session(ctx context.Context, id int64) (*store.Session, error) {
	if id != 0 {
		return a.store.GetSession(ctx, id)
	}
	return a.engine.Current(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeIfAbsent writes data to path unless it exists. It reports whether the
// file was written.
func writeIfAbsent(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
