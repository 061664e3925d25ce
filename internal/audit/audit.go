// Package audit carries authentication events off the request path to a sink.
//
// Events are log records, not history: nothing here persists beyond what the
// sink writes.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one authentication outcome.
type Event struct {
	// Seq is assigned by the dispatcher in accept order, starting at 1.
	Seq       uint64
	Time      time.Time
	Kind      string
	Success   bool
	UserID    string
	SessionID string
	Subject   string
	IP        string
	Reason    string
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// LogSink writes each event as one structured log line.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Emit(_ context.Context, e Event) {
	if s.Log == nil {
		return
	}
	entry := s.Log.WithFields(logrus.Fields{
		"event":   e.Kind,
		"success": e.Success,
		"seq":     e.Seq,
	})
	if e.UserID != "" {
		entry = entry.WithField("user_id", e.UserID)
	}
	if e.SessionID != "" {
		entry = entry.WithField("session_id", e.SessionID)
	}
	if e.Subject != "" {
		entry = entry.WithField("subject", e.Subject)
	}
	if e.IP != "" {
		entry = entry.WithField("ip", e.IP)
	}
	if e.Reason != "" {
		entry = entry.WithField("reason", e.Reason)
	}
	if e.Success {
		entry.Info("auth event")
		return
	}
	entry.Warn("auth event")
}
