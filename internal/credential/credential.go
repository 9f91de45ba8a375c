// Package credential owns PIN material for the admin and master roles.
//
// PINs are stored as hex PBKDF2-SHA256 digest and salt pairs in the settings
// table under {role}_pin_hash and {role}_pin_salt. A successful check mints a
// Grant; other packages accept grants and never see raw PINs.
package credential

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/nestcheck/internal/store"
)

// Role identifies a credential holder.
type Role string

const (
	// RoleAdmin gates configuration: PIN changes, save location, notification.
	RoleAdmin Role = "admin"

	// RoleMaster gates critical step failures.
	RoleMaster Role = "master"
)

// Roles lists every known role in provisioning order.
var Roles = []Role{RoleMaster, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMaster
}

// Factory PINs written by EnsureDefaults.
const (
	DefaultMasterPin = "2468"
	DefaultAdminPin  = "8642"
)

// SettingPinsMustChange holds "1" until the first PIN change.
const SettingPinsMustChange = "pins_must_change"

// HashKey returns the setting key holding the role's digest.
func HashKey(r Role) string { return string(r) + "_pin_hash" }

// SaltKey returns the setting key holding the role's salt.
func SaltKey(r Role) string { return string(r) + "_pin_salt" }

func failuresKey(r Role) string    { return string(r) + "_pin_failures" }
func lockedUntilKey(r Role) string { return string(r) + "_pin_locked_until" }

// Backend is the settings and log storage the credential store needs.
// *store.Store satisfies it.
type Backend interface {
	Now() time.Time
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
	SetSettings(ctx context.Context, values map[string]string) error
	SetSettingsIfAbsent(ctx context.Context, values map[string]string) ([]string, error)
	SetSettingsWithLog(ctx context.Context, values map[string]string, rec store.LogRecord) error
}

// LockoutPolicy limits consecutive PIN mismatches per role.
type LockoutPolicy struct {
	// MaxAttempts is the number of consecutive mismatches that trigger a
	// lockout. Zero disables lockout.
	MaxAttempts int

	// Cooldown is how long a locked role rejects every attempt.
	Cooldown time.Duration
}

// DefaultLockout allows 5 attempts, then locks the role for 5 minutes.
var DefaultLockout = LockoutPolicy{MaxAttempts: 5, Cooldown: 5 * time.Minute}

// Store checks and changes PINs.
type Store struct {
	backend Backend
	policy  LockoutPolicy
	logger  *slog.Logger

	// mu serialises the failure counter read-modify-write.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLockout sets the lockout policy.
func WithLockout(p LockoutPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a credential store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, policy: DefaultLockout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureDefaults provisions factory PINs for roles that have none and sets
// pins_must_change. Roles that already have a digest are never touched, so
// calling it repeatedly is safe. Returns the roles that were provisioned.
func (s *Store) EnsureDefaults(ctx context.Context) ([]Role, error) {
	defaults := map[Role]string{RoleMaster: DefaultMasterPin, RoleAdmin: DefaultAdminPin}

	var provisioned []Role
	for _, role := range Roles {
		existing, err := s.backend.GetSettings(ctx, HashKey(role))
		if err != nil {
			return nil, err
		}
		if _, ok := existing[HashKey(role)]; ok {
			continue
		}

		digest, salt, err := HashPin(defaults[role])
		if err != nil {
			return nil, err
		}
		written, err := s.backend.SetSettingsIfAbsent(ctx, map[string]string{
			HashKey(role): hex.EncodeToString(digest),
			SaltKey(role): hex.EncodeToString(salt),
		})
		if err != nil {
			return nil, err
		}
		if len(written) > 0 {
			provisioned = append(provisioned, role)
			s.logger.Info("provisioned default PIN", "role", role)
		}
	}

	if _, err := s.backend.SetSettingsIfAbsent(ctx, map[string]string{SettingPinsMustChange: "1"}); err != nil {
		return nil, err
	}
	return provisioned, nil
}

// PinsMustChange reports whether factory PINs are still in use.
func (s *Store) PinsMustChange(ctx context.Context) (bool, error) {
	vals, err := s.backend.GetSettings(ctx, SettingPinsMustChange)
	if err != nil {
		return false, err
	}
	return vals[SettingPinsMustChange] == "1", nil
}

// Configured reports whether role has stored PIN material.
func (s *Store) Configured(ctx context.Context, role Role) (bool, error) {
	vals, err := s.backend.GetSettings(ctx, HashKey(role), SaltKey(role))
	if err != nil {
		return false, err
	}
	return vals[HashKey(role)] != "" && vals[SaltKey(role)] != "", nil
}

// Authorize checks pin for role and returns a Grant on success.
//
// name is the author recorded with the grant; it is required for RoleMaster
// and optional otherwise. Failures are *AuthError values; storage failures
// are returned as-is.
func (s *Store) Authorize(ctx context.Context, role Role, pin, name string) (Grant, error) {
	if !role.Valid() {
		return Grant{}, fmt.Errorf("unknown role %q", role)
	}
	name = strings.TrimSpace(name)
	if role == RoleMaster && name == "" {
		return Grant{}, &AuthError{Role: role, Kind: KindNameRequired}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vals, err := s.backend.GetSettings(ctx, HashKey(role), SaltKey(role), failuresKey(role), lockedUntilKey(role))
	if err != nil {
		return Grant{}, err
	}

	now := s.backend.Now()
	if until, ok := parseUnix(vals[lockedUntilKey(role)]); ok && now.Before(until) {
		s.logger.Warn("PIN check while locked out", "role", role, "until", until)
		return Grant{}, &AuthError{Role: role, Kind: KindLockedOut, Until: until}
	}

	digest, salt := vals[HashKey(role)], vals[SaltKey(role)]
	if digest == "" || salt == "" {
		return Grant{}, &AuthError{Role: role, Kind: KindNotConfigured}
	}

	if !VerifyPin(strings.TrimSpace(pin), digest, salt) {
		return Grant{}, s.recordFailure(ctx, role, vals, now)
	}

	failures := vals[failuresKey(role)]
	if (failures != "" && failures != "0") || vals[lockedUntilKey(role)] != "" {
		if err := s.backend.SetSettings(ctx, map[string]string{
			failuresKey(role):    "0",
			lockedUntilKey(role): "",
		}); err != nil {
			return Grant{}, err
		}
	}

	s.logger.Debug("PIN accepted", "role", role)
	return Grant{role: role, name: name, at: now}, nil
}

// recordFailure bumps the failure counter and arms the lockout. A rejected
// PIN leaves no audit log row; it is reported through the process logger only.
func (s *Store) recordFailure(ctx context.Context, role Role, vals map[string]string, now time.Time) error {
	failures, _ := strconv.Atoi(vals[failuresKey(role)])
	failures++

	update := map[string]string{failuresKey(role): strconv.Itoa(failures), lockedUntilKey(role): ""}
	authErr := &AuthError{Role: role, Kind: KindMismatch}

	if s.policy.MaxAttempts > 0 && failures >= s.policy.MaxAttempts {
		until := now.Add(s.policy.Cooldown)
		update[failuresKey(role)] = "0"
		update[lockedUntilKey(role)] = strconv.FormatInt(until.Unix(), 10)
		s.logger.Warn("PIN locked out", "role", role, "until", until)
	}

	if err := s.backend.SetSettings(ctx, update); err != nil {
		return err
	}
	s.logger.Warn("PIN rejected", "role", role, "failures", failures)
	return authErr
}

// ChangePin replaces role's PIN. admin must be an admin grant; newPin must be
// 4 to 8 digits and equal to confirm. Clears pins_must_change and any lockout,
// and writes an AUDIT pin_change entry in the same transaction.
func (s *Store) ChangePin(ctx context.Context, admin Grant, role Role, newPin, confirm string) error {
	if !admin.Is(RoleAdmin) {
		return fmt.Errorf("change %s PIN: %w", role, ErrGrantRequired)
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	newPin, confirm = strings.TrimSpace(newPin), strings.TrimSpace(confirm)
	if !ValidPinFormat(newPin) {
		return ErrPinFormat
	}
	if newPin != confirm {
		return ErrPinConfirm
	}

	digest, salt, err := HashPin(newPin)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.backend.SetSettingsWithLog(ctx, map[string]string{
		HashKey(role):         hex.EncodeToString(digest),
		SaltKey(role):         hex.EncodeToString(salt),
		SettingPinsMustChange: "0",
		failuresKey(role):     "0",
		lockedUntilKey(role):  "",
	}, store.LogRecord{
		Level:   store.LevelAudit,
		Action:  "pin_change",
		Details: map[string]any{"role": string(role)},
	})
	if err != nil {
		return err
	}
	s.logger.Info("PIN changed", "role", role)
	return nil
}

func parseUnix(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
