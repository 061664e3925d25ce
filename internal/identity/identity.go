// Package identity resolves the key used to scope challenge rate limits to a
// caller. It is never used for authorization.
package identity

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
)

// Extractor returns a scoped identity for r, or "" when its signal is absent.
type Extractor func(r *http.Request) string

// Resolver tries extractors in order; the first non-empty result wins.
type Resolver struct {
	extractors []Extractor
	now        func() time.Time
}

// NewResolver builds a resolver from an ordered extractor list.
func NewResolver(extractors ...Extractor) *Resolver {
	return &Resolver{extractors: extractors, now: time.Now}
}

// Default is the standard cascade: login form fields, the userId header, the
// already authenticated user, the client address, then the session cookie.
// authenticated may be nil.
func Default(authenticated func(*http.Request) string, cookieName string) *Resolver {
	return NewResolver(
		QueryField("userName", "user:"),
		QueryField("email", "email:"),
		QueryField("phone", "phone:"),
		Header("userId", "userId:"),
		Authenticated(authenticated),
		ClientIP(),
		Cookie(cookieName, "session:"),
	)
}

// Resolve always returns a non-empty identity. With no signal at all it
// falls back to a timestamp and random suffix.
func (r *Resolver) Resolve(req *http.Request) string {
	for _, extract := range r.extractors {
		if id := extract(req); id != "" {
			return id
		}
	}
	n, err := internal.NewIntn(1000)
	if err != nil {
		n = 0
	}
	return "temp:" + strconv.FormatInt(r.now().UnixMilli(), 10) + "_" + strconv.FormatInt(n, 10)
}

// QueryField reads a query parameter.
func QueryField(name, prefix string) Extractor {
	return func(r *http.Request) string {
		v := strings.TrimSpace(r.URL.Query().Get(name))
		if v == "" {
			return ""
		}
		return prefix + v
	}
}

// Header reads a request header.
func Header(name, prefix string) Extractor {
	return func(r *http.Request) string {
		v := strings.TrimSpace(r.Header.Get(name))
		if v == "" {
			return ""
		}
		return prefix + v
	}
}

// Authenticated scopes by the user already attached to the request.
func Authenticated(userID func(*http.Request) string) Extractor {
	return func(r *http.Request) string {
		if userID == nil {
			return ""
		}
		if id := userID(r); id != "" {
			return "userId:" + id
		}
		return ""
	}
}

// Cookie reads a cookie value.
func Cookie(name, prefix string) Extractor {
	return func(r *http.Request) string {
		if name == "" {
			return ""
		}
		c, err := r.Cookie(name)
		if err != nil || strings.TrimSpace(c.Value) == "" {
			return ""
		}
		return prefix + c.Value
	}
}

var proxyHeaders = []string{"X-Forwarded-For", "Proxy-Client-IP", "WL-Proxy-Client-IP", "X-Real-IP"}

// ClientIP scopes by the caller address, preferring proxy headers.
func ClientIP() Extractor {
	return func(r *http.Request) string {
		if ip := ClientAddress(r); ip != "" {
			return "ip:" + ip
		}
		return ""
	}
}

// ClientAddress returns the best-effort caller address.
func ClientAddress(r *http.Request) string {
	for _, h := range proxyHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		if first != "" && !strings.EqualFold(first, "unknown") {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
