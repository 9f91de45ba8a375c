package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/store"
)

func TestEnsureSettings(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	written, err := env.engine.EnsureSettings(ctx)
	require.NoError(t, err)
	assert.Contains(t, written, SettingSaveDir)
	assert.Contains(t, written, notify.SettingPort)

	written, err = env.engine.EnsureSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, written)

	cfg, err := env.engine.NotificationConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, notify.DefaultPort, cfg.Port)
	assert.True(t, cfg.SSL)
	assert.False(t, cfg.Enabled)
}

func TestSetSaveDir(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out", "reports")

	_, err := env.engine.SetSaveDir(ctx, credential.Grant{}, dir)
	assert.ErrorIs(t, err, credential.ErrGrantRequired)

	master := env.grant(t, credential.RoleMaster, "Ivanov")
	_, err = env.engine.SetSaveDir(ctx, master, dir)
	assert.ErrorIs(t, err, credential.ErrGrantRequired)

	admin := env.grant(t, credential.RoleAdmin, "")
	got, err := env.engine.SetSaveDir(ctx, admin, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)

	saved, err := env.engine.SaveDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, dir, saved)

	logs := env.logs(t, "save_dir_change")
	require.Len(t, logs, 1)
	assert.Equal(t, store.LevelAudit, logs[0].Level)
}

func TestSetSaveDir_Unwritable(t *testing.T) {
	env := createTestEnv(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := env.engine.SetSaveDir(context.Background(), env.grant(t, credential.RoleAdmin, ""), filepath.Join(blocker, "sub"))
	assert.True(t, IsIOError(err))
	assert.Empty(t, env.logs(t, "save_dir_change"))
}

func TestSaveDir_DefaultsAndMissing(t *testing.T) {
	env := createTestEnv(t)
	dir, err := env.engine.SaveDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.saveDir, dir)

	bare := New(env.store, env.engine.Checklist(), WithLogger(discardLogger()))
	_, err = bare.SaveDir(context.Background())
	assert.True(t, IsValidationError(err))
}

func TestConfigureNotification(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	admin := env.grant(t, credential.RoleAdmin, "")

	incomplete := notify.Config{Host: "smtp.example.com", Port: 465, SSL: true, Enabled: true}
	err := env.engine.ConfigureNotification(ctx, admin, incomplete)
	var ce *notify.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Missing, notify.SettingRecipients)
	assert.Empty(t, env.logs(t, "email_config"))

	cfg := notify.Config{
		Host: "smtp.example.com", Port: 587, User: "cnc@example.com", Password: "secret",
		StartTLS: true, Recipients: []string{"qa@example.com", "lead@example.com"}, Enabled: true,
	}
	require.NoError(t, env.engine.ConfigureNotification(ctx, admin, cfg))

	got, err := env.engine.NotificationConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	logs := env.logs(t, "email_config")
	require.Len(t, logs, 1)
	assert.Equal(t, store.LevelAudit, logs[0].Level)
	for _, v := range logs[0].Details {
		assert.NotEqual(t, "secret", v)
	}
}

func TestConfigureNotification_DisabledMayBeIncomplete(t *testing.T) {
	env := createTestEnv(t)
	err := env.engine.ConfigureNotification(context.Background(), env.grant(t, credential.RoleAdmin, ""), notify.Config{Port: 465})
	assert.NoError(t, err)
}

func TestExportLogs(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	env.start(t)
	admin := env.grant(t, credential.RoleAdmin, "")

	_, _, err := env.engine.ExportLogs(ctx, credential.Grant{}, "")
	assert.ErrorIs(t, err, credential.ErrGrantRequired)

	path, n, err := env.engine.ExportLogs(ctx, admin, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.saveDir, "logs_1709283600.csv"), path)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ts;level;action;details_json", lines[0])
	assert.Contains(t, lines[1], ";INFO;session_create;")

	// Same second, same name: the existing export is never overwritten.
	_, _, err = env.engine.ExportLogs(ctx, admin, "")
	assert.True(t, IsIOError(err))
}
