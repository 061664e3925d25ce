package sensorgate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sensorgate/internal/audit"
	"github.com/MrEthical07/sensorgate/internal/captcha"
	"github.com/MrEthical07/sensorgate/internal/codes"
	"github.com/MrEthical07/sensorgate/internal/flows"
	"github.com/MrEthical07/sensorgate/password"
	"github.com/MrEthical07/sensorgate/session"
	"github.com/MrEthical07/sensorgate/store"
	"github.com/sirupsen/logrus"
)

// Engine runs every authentication operation against a shared TTL store.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	config     Config
	store      store.Store
	sessions   *session.Store
	codes      *codes.Manager
	challenges *captcha.Service
	hasher     *password.Hasher
	users      UserStore
	mailer     Mailer
	sms        SMSSender
	audit      *audit.Dispatcher
	metrics    MetricsRecorder
	log        logrus.FieldLogger
	newID      func() string
	now        func() time.Time
}

// Close drains the audit pipeline. The store is left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Ping checks the TTL store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return e.fail("ping", err)
	}
	return nil
}

// Config returns a copy of the running configuration.
func (e *Engine) Config() Config {
	return e.config
}

// CookieName is the name of the session cookie and its header fallback.
func (e *Engine) CookieName() string {
	return e.config.Session.CookieName
}

// SessionWindow is the sliding session lifetime, used as the cookie max-age.
func (e *Engine) SessionWindow() time.Duration {
	return e.config.Session.Window
}

// Validate resolves sessionID, slides its lifetime to the full window and
// returns the cached profile. Missing or expired sessions return
// ErrSessionNotFound.
func (e *Engine) Validate(ctx context.Context, sessionID string) (*Profile, error) {
	rec, err := flows.RunValidate(ctx, sessionID, flows.ValidateDeps{
		Resolve:          e.sessions.Resolve,
		IsNotFound:       func(err error) bool { return errors.Is(err, session.ErrNotFound) },
		NotAuthenticated: ErrSessionNotFound,
	})
	if err != nil {
		e.metrics.AuthEvent(EventValidate, false)
		return nil, e.fail(EventValidate, err)
	}
	e.metrics.AuthEvent(EventValidate, true)
	return rec.Profile, nil
}

// Logout deletes the session, its index entry and the owner's login
// cooldown. Unknown sessions are not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	err := flows.RunLogout(ctx, sessionID, flows.LogoutDeps{
		Lookup:          e.sessions.Lookup,
		IsNotFound:      func(err error) bool { return errors.Is(err, session.ErrNotFound) },
		DeleteSession:   e.sessions.Delete,
		ReleaseCooldown: e.sessions.ReleaseLoginCooldown,
		Report:          e.report,
	})
	if err != nil {
		return e.fail(EventLogout, err)
	}
	return nil
}

// fail maps err to an *Error and logs system failures.
func (e *Engine) fail(op string, err error) error {
	mapped := mapError(err)
	if KindOf(mapped) == KindSystem {
		e.log.WithError(err).WithField("op", op).Error("operation failed")
	}
	return mapped
}
