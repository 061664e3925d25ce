package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/internal"
	"github.com/MrEthical07/sensorgate/response"
	"github.com/sirupsen/logrus"
)

// Validator resolves a session id to its profile. *sensorgate.Engine
// satisfies it.
type Validator interface {
	Validate(ctx context.Context, sessionID string) (*sensorgate.Profile, error)
}

// GateConfig configures Gate. Empty CookieName means "sessionId"; a nil
// AllowList means DefaultAllowList.
type GateConfig struct {
	CookieName string
	AllowList  []string
	Log        logrus.FieldLogger
}

// DefaultAllowList is the set of public paths: the login, registration and
// code endpoints, sensor data, API docs, static assets and operational
// endpoints.
func DefaultAllowList() []string {
	return []string{
		"/user/login",
		"/user/register",
		"/user/sendEmailCode",
		"/user/verifyEmailCode",
		"/user/sendPhoneCode",
		"/user/verifyPhoneCode",
		"/user/code/image",
		"/sensor/**",
		"/doc.html",
		"/webjars/**",
		"/swagger-resources/**",
		"/v2/api-docs/**",
		"/v3/api-docs/**",
		"/configuration/ui",
		"/configuration/security",
		"/",
		"/favicon.ico",
		"/*.html",
		"/*.css",
		"/*.js",
		"/static/**",
		"/error",
		"/healthz",
		"/metrics",
	}
}

type profileContextKey struct{}
type sessionContextKey struct{}

// ProfileFromContext returns the profile attached by Gate.
func ProfileFromContext(ctx context.Context) (*sensorgate.Profile, bool) {
	p, ok := ctx.Value(profileContextKey{}).(*sensorgate.Profile)
	return p, ok && p != nil
}

// SessionIDFromContext returns the validated session id attached by Gate.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey{}).(string)
	return id
}

// WithProfile attaches p and sessionID to ctx the way Gate does.
func WithProfile(ctx context.Context, p *sensorgate.Profile, sessionID string) context.Context {
	ctx = context.WithValue(ctx, profileContextKey{}, p)
	return context.WithValue(ctx, sessionContextKey{}, sessionID)
}

// SessionToken reads the session id from the cookie, or from the header of
// the same name when no cookie is present.
func SessionToken(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return strings.TrimSpace(r.Header.Get(name))
}

// Gate returns middleware that rejects requests without a live session.
func Gate(v Validator, cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "sessionId"
	}
	if cfg.AllowList == nil {
		cfg.AllowList = DefaultAllowList()
	}
	log := internal.LoggerOrDiscard(cfg.Log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || allowed(cfg.AllowList, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if v == nil {
				_ = response.Unauthorized(w)
				return
			}

			token := SessionToken(r, cfg.CookieName)
			if token == "" {
				_ = response.Unauthorized(w)
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				if sensorgate.KindOf(err) == sensorgate.KindSystem {
					log.WithError(err).WithField("path", r.URL.Path).Error("session validation failed")
				}
				_ = response.Unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p, token)))
		})
	}
}

func allowed(patterns []string, path string) bool {
	for _, p := range patterns {
		if antMatch(p, path) {
			return true
		}
	}
	return false
}
