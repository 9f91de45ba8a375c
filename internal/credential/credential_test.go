package credential

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/testutil"
)

func createTestCredentials(t *testing.T, opts ...Option) (*Store, *store.Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(st, opts...), st, clock
}

func TestEnsureDefaults_ProvisionsOnce(t *testing.T) {
	creds, st, _ := createTestCredentials(t)
	ctx := context.Background()

	roles, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Role{RoleMaster, RoleAdmin}, roles)

	keys := []string{HashKey(RoleMaster), SaltKey(RoleMaster), HashKey(RoleAdmin), SaltKey(RoleAdmin)}
	first, err := st.GetSettings(ctx, keys...)
	require.NoError(t, err)
	require.Len(t, first, 4)

	roles, err = creds.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, roles)

	second, err := st.GetSettings(ctx, keys...)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	must, err := creds.PinsMustChange(ctx)
	require.NoError(t, err)
	assert.True(t, must)
}

func TestEnsureDefaults_DefaultPinsWork(t *testing.T) {
	creds, _, _ := createTestCredentials(t)
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	g, err := creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "Ivanov")
	require.NoError(t, err)
	assert.True(t, g.Is(RoleMaster))
	assert.Equal(t, "Ivanov", g.Name())

	g, err = creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)
	assert.True(t, g.Is(RoleAdmin))
	assert.False(t, g.Is(RoleMaster))
}

func TestEnsureDefaults_KeepsChangedPinFlag(t *testing.T) {
	creds, st, _ := createTestCredentials(t)
	ctx := context.Background()
	require.NoError(t, st.SetSetting(ctx, SettingPinsMustChange, "0"))

	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	must, err := creds.PinsMustChange(ctx)
	require.NoError(t, err)
	assert.False(t, must)
}

func TestAuthorize_NotConfigured(t *testing.T) {
	creds, _, _ := createTestCredentials(t)

	_, err := creds.Authorize(context.Background(), RoleAdmin, "8642", "")
	require.Error(t, err)
	assert.True(t, IsNotConfigured(err))
	assert.False(t, IsMismatch(err))
}

func TestAuthorize_Mismatch(t *testing.T) {
	creds, st, _ := createTestCredentials(t)
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)
	before, err := st.ListLogs(ctx, store.LogFilter{})
	require.NoError(t, err)

	g, err := creds.Authorize(ctx, RoleMaster, "0000", "Ivanov")
	require.Error(t, err)
	assert.True(t, IsMismatch(err))
	assert.False(t, g.Valid())

	// A rejected PIN counts toward lockout but leaves the audit log untouched.
	after, err := st.ListLogs(ctx, store.LogFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	vals, err := st.GetSettings(ctx, failuresKey(RoleMaster))
	require.NoError(t, err)
	assert.Equal(t, "1", vals[failuresKey(RoleMaster)])
}

func TestAuthorize_MasterNeedsName(t *testing.T) {
	creds, _, _ := createTestCredentials(t)
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	_, err = creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "   ")
	require.Error(t, err)
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindNameRequired, ae.Kind)
}

func TestAuthorize_UnknownRole(t *testing.T) {
	creds, _, _ := createTestCredentials(t)

	_, err := creds.Authorize(context.Background(), Role("root"), "1234", "x")
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

func TestAuthorize_Lockout(t *testing.T) {
	creds, _, clock := createTestCredentials(t, WithLockout(LockoutPolicy{MaxAttempts: 3, Cooldown: time.Minute}))
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := creds.Authorize(ctx, RoleAdmin, "1111", "")
		assert.True(t, IsMismatch(err), "attempt %d", i+1)
	}

	// Correct PIN is refused while locked
	_, err = creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.Error(t, err)
	assert.True(t, IsLockedOut(err))
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, clock.Now().Add(time.Minute).Unix(), ae.Until.Unix())

	// Other role unaffected
	_, err = creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "Ivanov")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	g, err := creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)
	assert.True(t, g.Is(RoleAdmin))
}

func TestAuthorize_SuccessResetsCounter(t *testing.T) {
	creds, _, _ := createTestCredentials(t, WithLockout(LockoutPolicy{MaxAttempts: 2, Cooldown: time.Hour}))
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	_, err = creds.Authorize(ctx, RoleAdmin, "1111", "")
	require.True(t, IsMismatch(err))
	_, err = creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)

	// Counter was reset, so one more mismatch does not lock
	_, err = creds.Authorize(ctx, RoleAdmin, "1111", "")
	require.True(t, IsMismatch(err))
	_, err = creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)
}

func TestAuthorize_LockoutDisabled(t *testing.T) {
	creds, _, _ := createTestCredentials(t, WithLockout(LockoutPolicy{}))
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := creds.Authorize(ctx, RoleAdmin, "1111", "")
		require.True(t, IsMismatch(err))
	}
	_, err = creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)
}

func TestChangePin(t *testing.T) {
	creds, st, _ := createTestCredentials(t)
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	admin, err := creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)

	require.NoError(t, creds.ChangePin(ctx, admin, RoleMaster, "135790", "135790"))

	_, err = creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "Ivanov")
	assert.True(t, IsMismatch(err))
	_, err = creds.Authorize(ctx, RoleMaster, "135790", "Ivanov")
	require.NoError(t, err)

	must, err := creds.PinsMustChange(ctx)
	require.NoError(t, err)
	assert.False(t, must)

	logs, err := st.ListLogs(ctx, store.LogFilter{Level: store.LevelAudit, Action: "pin_change"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "master", logs[0].Details["role"])
}

func TestChangePin_Rejections(t *testing.T) {
	creds, _, _ := createTestCredentials(t)
	ctx := context.Background()
	_, err := creds.EnsureDefaults(ctx)
	require.NoError(t, err)

	admin, err := creds.Authorize(ctx, RoleAdmin, DefaultAdminPin, "")
	require.NoError(t, err)
	master, err := creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "Ivanov")
	require.NoError(t, err)

	assert.ErrorIs(t, creds.ChangePin(ctx, Grant{}, RoleMaster, "1234", "1234"), ErrGrantRequired)
	assert.ErrorIs(t, creds.ChangePin(ctx, master, RoleMaster, "1234", "1234"), ErrGrantRequired)
	assert.ErrorIs(t, creds.ChangePin(ctx, admin, RoleMaster, "123", "123"), ErrPinFormat)
	assert.ErrorIs(t, creds.ChangePin(ctx, admin, RoleMaster, "123456789", "123456789"), ErrPinFormat)
	assert.ErrorIs(t, creds.ChangePin(ctx, admin, RoleMaster, "12a4", "12a4"), ErrPinFormat)
	assert.ErrorIs(t, creds.ChangePin(ctx, admin, RoleMaster, "1234", "4321"), ErrPinConfirm)

	// Nothing changed
	_, err = creds.Authorize(ctx, RoleMaster, DefaultMasterPin, "Ivanov")
	require.NoError(t, err)
}
