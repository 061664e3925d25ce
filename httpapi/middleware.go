package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/internal/identity"
	"github.com/MrEthical07/sensorgate/response"
)

const maxBodyBytes = 64 << 10

func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := sensorgate.WithClientIP(r.Context(), identity.ClientAddress(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLoggingMiddleware(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Header.Get("Upgrade") != "" {
			// Upgrades need the raw writer for hijacking.
			next.ServeHTTP(w, r)
			rec.statusCode = http.StatusSwitchingProtocols
		} else {
			next.ServeHTTP(rec, r)
		}

		log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("http request")
	})
}

func recoverMiddleware(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					scope.SetTag("path", r.URL.Path)
					sentry.CaptureMessage("panic in request")
				})
				log.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
					"panic":  rec,
				}).Error("panic recovered")

				_ = response.Error(w, sensorgate.ErrSystem)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON request body into v. An empty or malformed body
// maps to the missing-fields params error.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return sensorgate.ErrMissingFields
	}
	return nil
}

func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, v any) {
	if err := response.WriteJSON(w, status, v); err != nil {
		log.WithError(err).Debug("write response")
	}
}
