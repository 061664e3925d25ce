// Package codes implements attempt-limited, cooldown-protected one-time code
// verification over the shared TTL store.
//
// # Keys
//
//   - {key}            the code itself
//   - {key}:attempts   verify attempts since the last send
//   - {cooldownKey}    presence-only send cooldown
//   - {flagKey}        verified flag consumed by registration
//
// The caller picks the key names (see internal/keys); this package only owns
// the semantics.
package codes

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/MrEthical07/sensorgate/internal/keys"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/sirupsen/logrus"
)

// ErrTooManyAttempts is returned once the attempt ceiling is reached. The
// entry is deleted before it is returned.
var ErrTooManyAttempts = errors.New("too many attempts")

// CooldownError reports an active cooldown and the seconds left on it.
type CooldownError struct {
	Remaining int64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("retry in %d seconds", e.Remaining)
}

// Config bounds verification.
type Config struct {
	MaxAttempts int
	Digits      int
}

// Manager owns VerificationEntry, CooldownMarker and VerifiedFlag entries.
type Manager struct {
	store  store.Store
	config Config
	log    logrus.FieldLogger
}

// New builds a Manager. A nil logger discards output.
func New(s store.Store, cfg Config, log logrus.FieldLogger) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	return &Manager{store: s, config: cfg, log: internal.LoggerOrDiscard(log)}
}

// Generate draws a fresh numeric code.
func (m *Manager) Generate() (string, error) {
	return internal.NewDigits(m.config.Digits)
}

// Send stores code under key with a reset attempt counter. When cooldownKey
// is non-empty a cooldown marker is written in the same transaction. Delivery
// of the code is the caller's concern.
func (m *Manager) Send(ctx context.Context, key, code string, expiry time.Duration, cooldownKey string, cooldown time.Duration) error {
	if key == "" || code == "" || expiry <= 0 {
		return errors.New("codes: key, code and expiry are required")
	}

	entries := []store.Entry{
		{Key: key, Value: code, TTL: expiry},
		{Key: keys.Attempts(key), Value: "0", TTL: expiry},
	}
	if cooldownKey != "" && cooldown > 0 {
		entries = append(entries, store.Entry{Key: cooldownKey, Value: "1", TTL: cooldown})
	}

	if err := m.store.SetMany(ctx, entries...); err != nil {
		return err
	}

	m.log.WithField("key", key).Debug("verification code stored")
	return nil
}

// Revoke removes a code, its attempt counter and an optional cooldown. Used
// to roll back a send whose delivery failed.
func (m *Manager) Revoke(ctx context.Context, key, cooldownKey string) error {
	toDelete := []string{key, keys.Attempts(key)}
	if cooldownKey != "" {
		toDelete = append(toDelete, cooldownKey)
	}
	_, err := m.store.Delete(ctx, toDelete...)
	return err
}

// CheckCooldown returns a *CooldownError while the marker is live.
func (m *Manager) CheckCooldown(ctx context.Context, cooldownKey string) error {
	if cooldownKey == "" {
		return nil
	}

	ttl, err := m.store.TTL(ctx, cooldownKey)
	if err != nil {
		return err
	}
	switch ttl {
	case store.Missing:
		return nil
	case store.NoExpiry:
		// A marker without expiry would block forever; report one second so
		// the caller still backs off.
		return &CooldownError{Remaining: 1}
	}
	return &CooldownError{Remaining: store.RemainingSeconds(ttl)}
}

// Verify redeems submitted against key. Blank input and unknown keys return
// false without touching the store. Every other call consumes one attempt
// before the comparison. A match deletes the entry.
func (m *Manager) Verify(ctx context.Context, key, submitted string) (bool, error) {
	submitted = strings.TrimSpace(submitted)
	if strings.TrimSpace(key) == "" || submitted == "" {
		return false, nil
	}

	stored, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	attemptsKey := keys.Attempts(key)
	attempts, err := m.readAttempts(ctx, attemptsKey)
	if err != nil {
		return false, err
	}
	if attempts >= int64(m.config.MaxAttempts) {
		if _, err := m.store.Delete(ctx, key, attemptsKey); err != nil {
			return false, err
		}
		m.log.WithField("key", key).Warn("verification locked out after max attempts")
		return false, ErrTooManyAttempts
	}

	n, err := m.store.Incr(ctx, attemptsKey)
	if err != nil {
		return false, err
	}
	if n == 1 {
		// The counter vanished before the code did; pin it to the code's lifetime.
		if ttl, err := m.store.TTL(ctx, key); err == nil && ttl > 0 {
			_, _ = m.store.Expire(ctx, attemptsKey, ttl)
		}
	}

	if !equalCode(stored, submitted) {
		m.log.WithFields(logrus.Fields{"key": key, "attempts": n}).Warn("verification code mismatch")
		return false, nil
	}

	if _, err := m.store.Delete(ctx, key, attemptsKey); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) readAttempts(ctx context.Context, key string) (int64, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func equalCode(stored, submitted string) bool {
	a := strings.ToLower(strings.TrimSpace(stored))
	b := strings.ToLower(submitted)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MarkVerified sets the verified flag for ttl.
func (m *Manager) MarkVerified(ctx context.Context, flagKey string, ttl time.Duration) error {
	return m.store.Set(ctx, flagKey, "1", ttl)
}

// IsVerified reports whether the verified flag is present.
func (m *Manager) IsVerified(ctx context.Context, flagKey string) (bool, error) {
	return m.store.Exists(ctx, flagKey)
}

// ClearVerified deletes the flag.
func (m *Manager) ClearVerified(ctx context.Context, flagKey string) error {
	_, err := m.store.Delete(ctx, flagKey)
	return err
}

// ConsumeVerified deletes the flag and reports whether this call was the one
// that removed it. Concurrent callers see true at most once.
func (m *Manager) ConsumeVerified(ctx context.Context, flagKey string) (bool, error) {
	n, err := m.store.Delete(ctx, flagKey)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
