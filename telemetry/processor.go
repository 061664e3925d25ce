package telemetry

import (
	"errors"
	"time"
)

const (
	// TopicGas carries the combined gas/weather station payload.
	TopicGas = "testtopic/1/gas"
	// TopicAngle carries the boom inclinometer payload.
	TopicAngle = "testtopic/1/angle"

	KindGas   = "gas"
	KindAngle = "angle"
)

var (
	// ErrUnknownTopic is returned by Router.Handle for topics with no processor.
	ErrUnknownTopic = errors.New("telemetry: no processor for topic")
	// ErrMalformed wraps payload decode failures.
	ErrMalformed = errors.New("telemetry: malformed payload")
)

// Alert is a threshold breach raised while processing a reading.
type Alert struct {
	Kind    string  `json:"kind"`
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// Update is one processed reading as cached and broadcast to viewers.
type Update struct {
	Kind       string    `json:"kind"`
	Topic      string    `json:"topic"`
	Data       any       `json:"data"`
	Alerts     []Alert   `json:"alerts,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Processor decodes and evaluates the payloads of a single topic.
type Processor interface {
	Topic() string
	// Kind names the reading for caches and viewer channels.
	Kind() string
	// Priority orders processors; lower runs first.
	Priority() int
	Process(payload []byte) (any, []Alert, error)
}

// ViewerChannel returns the websocket channel name for a reading kind.
func ViewerChannel(kind string) string {
	return "/topic/" + kind
}
