package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/sirupsen/logrus"
)

// Recorder receives telemetry counters.
type Recorder interface {
	TelemetryMessage(topic, result string)
	TelemetryAlert(topic, kind string)
}

// Broadcaster delivers processed updates to viewers.
type Broadcaster interface {
	Broadcast(u Update)
}

type noopRecorder struct{}

func (noopRecorder) TelemetryMessage(string, string) {}
func (noopRecorder) TelemetryAlert(string, string)   {}

// RouterOptions wires the router outputs. Every field is optional.
type RouterOptions struct {
	Latest      *Latest
	Broadcaster Broadcaster
	Metrics     Recorder
	Log         logrus.FieldLogger
	Now         func() time.Time
}

// Router dispatches payloads to the processor registered for their topic.
type Router struct {
	processors []Processor
	byTopic    map[string]Processor
	latest     *Latest
	out        Broadcaster
	metrics    Recorder
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewRouter registers processors in priority order. A topic registered twice
// keeps the processor with the lower priority value.
func NewRouter(opts RouterOptions, processors ...Processor) *Router {
	sorted := append([]Processor(nil), processors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	r := &Router{
		byTopic: make(map[string]Processor, len(sorted)),
		latest:  opts.Latest,
		out:     opts.Broadcaster,
		metrics: opts.Metrics,
		log:     internal.LoggerOrDiscard(opts.Log),
		now:     opts.Now,
	}
	for _, p := range sorted {
		if _, dup := r.byTopic[p.Topic()]; dup {
			r.log.WithField("topic", p.Topic()).Warn("duplicate telemetry processor ignored")
			continue
		}
		r.byTopic[p.Topic()] = p
		r.processors = append(r.processors, p)
		r.log.WithFields(logrus.Fields{
			"topic":    p.Topic(),
			"priority": p.Priority(),
		}).Debug("telemetry processor registered")
	}
	if r.latest == nil {
		r.latest = NewLatest()
	}
	if r.metrics == nil {
		r.metrics = noopRecorder{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// DefaultProcessors returns the gas and angle processors.
func DefaultProcessors() []Processor {
	return []Processor{GasProcessor{}, NewAngleProcessor()}
}

// Topics lists the registered topics in priority order.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.processors))
	for _, p := range r.processors {
		topics = append(topics, p.Topic())
	}
	return topics
}

// KindTopic returns the topic whose processor produces kind.
func (r *Router) KindTopic(kind string) (string, bool) {
	for _, p := range r.processors {
		if p.Kind() == kind {
			return p.Topic(), true
		}
	}
	return "", false
}

// Latest exposes the reading cache.
func (r *Router) Latest() *Latest {
	return r.latest
}

// Handle processes one payload. Failures are logged and counted; the returned
// error is informational and callers consuming a feed may ignore it.
func (r *Router) Handle(topic string, payload []byte) error {
	if topic == "" {
		r.metrics.TelemetryMessage(topic, "unknown_topic")
		r.log.Warn("telemetry message without topic dropped")
		return fmt.Errorf("%w: empty topic", ErrUnknownTopic)
	}
	p, ok := r.byTopic[topic]
	if !ok {
		r.metrics.TelemetryMessage(topic, "unknown_topic")
		r.log.WithField("topic", topic).Warn("telemetry message for unknown topic dropped")
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	data, alerts, err := p.Process(payload)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrMalformed) {
			result = "malformed"
		}
		r.metrics.TelemetryMessage(topic, result)
		r.log.WithError(err).WithField("topic", topic).Warn("telemetry payload dropped")
		return err
	}

	u := Update{
		Kind:       p.Kind(),
		Topic:      topic,
		Data:       data,
		Alerts:     alerts,
		ReceivedAt: r.now(),
	}
	r.latest.Put(u)
	r.metrics.TelemetryMessage(topic, "ok")
	for _, a := range alerts {
		r.metrics.TelemetryAlert(topic, a.Kind)
		r.log.WithFields(logrus.Fields{
			"topic": topic,
			"alert": a.Kind,
			"field": a.Field,
			"value": a.Value,
		}).Warn(a.Message)
	}
	if r.out != nil {
		r.out.Broadcast(u)
	}
	return nil
}
