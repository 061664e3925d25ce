package sensorgate

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/MrEthical07/sensorgate/internal/audit"
	"github.com/MrEthical07/sensorgate/internal/flows"
)

// AuditEvent is one authentication outcome handed to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// Event kinds carried in AuditEvent.Kind.
const (
	EventRegister   = flows.EventRegister
	EventLogin      = flows.EventLogin
	EventValidate   = flows.EventValidate
	EventLogout     = flows.EventLogout
	EventSendCode   = flows.EventSendCode
	EventVerifyCode = flows.EventVerifyCode
	EventChallenge  = "challenge"
)

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink exposes events on a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

type jsonEvent struct {
	Seq       uint64 `json:"seq"`
	Time      string `json:"time"`
	Kind      string `json:"event"`
	Success   bool   `json:"success"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	IP        string `json:"ip,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *JSONWriterSink) Emit(_ context.Context, e AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(jsonEvent{
		Seq:       e.Seq,
		Time:      e.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Kind:      e.Kind,
		Success:   e.Success,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Subject:   e.Subject,
		IP:        e.IP,
		Reason:    e.Reason,
	})
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(data, '\n'))
}

// report is the flows.Reporter the Engine hands to every flow. It feeds
// both the audit pipeline and the metrics recorder.
func (e *Engine) report(ctx context.Context, o flows.Outcome) {
	e.metrics.AuthEvent(o.Event, o.Success)
	e.audit.Emit(ctx, AuditEvent{
		Kind:      o.Event,
		Success:   o.Success,
		UserID:    o.UserID,
		SessionID: o.SessionID,
		Subject:   o.Subject,
		IP:        clientIPFromContext(ctx),
		Reason:    o.Reason,
	})
}

// AuditDropped counts events lost to a full audit buffer.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}
