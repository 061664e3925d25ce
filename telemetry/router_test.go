package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu       sync.Mutex
	messages map[string]int
	alerts   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{messages: map[string]int{}, alerts: map[string]int{}}
}

func (c *countingRecorder) TelemetryMessage(topic, result string) {
	c.mu.Lock()
	c.messages[topic+"|"+result]++
	c.mu.Unlock()
}

func (c *countingRecorder) TelemetryAlert(topic, kind string) {
	c.mu.Lock()
	c.alerts[topic+"|"+kind]++
	c.mu.Unlock()
}

type collectBroadcaster struct {
	mu      sync.Mutex
	updates []Update
}

func (c *collectBroadcaster) Broadcast(u Update) {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
}

func TestRouterOrdersByPriority(t *testing.T) {
	r := NewRouter(RouterOptions{}, NewAngleProcessor(), GasProcessor{})
	assert.Equal(t, []string{TopicGas, TopicAngle}, r.Topics())

	topic, ok := r.KindTopic(KindAngle)
	assert.True(t, ok)
	assert.Equal(t, TopicAngle, topic)
	_, ok = r.KindTopic("humidity")
	assert.False(t, ok)
}

func TestRouterHandleCachesAndBroadcasts(t *testing.T) {
	rec := newCountingRecorder()
	out := &collectBroadcaster{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRouter(RouterOptions{
		Broadcaster: out,
		Metrics:     rec,
		Now:         func() time.Time { return now },
	}, DefaultProcessors()...)

	require.NoError(t, r.Handle(TopicGas, []byte(`{"gas_value":72,"temperature":21.5}`)))

	u, ok := r.Latest().Get(KindGas)
	require.True(t, ok)
	assert.Equal(t, TopicGas, u.Topic)
	assert.Equal(t, now, u.ReceivedAt)
	reading := u.Data.(GasReading)
	assert.Equal(t, 21.5, *reading.Temperature)

	require.Len(t, out.updates, 1)
	assert.Equal(t, 1, rec.messages[TopicGas+"|ok"])
	assert.Equal(t, 1, rec.alerts[TopicGas+"|gas_high"])

	all := r.Latest().All()
	assert.Contains(t, all, KindGas)
	assert.NotContains(t, all, KindAngle)
}

func TestRouterDropsBadInput(t *testing.T) {
	rec := newCountingRecorder()
	out := &collectBroadcaster{}
	r := NewRouter(RouterOptions{Broadcaster: out, Metrics: rec}, DefaultProcessors()...)

	assert.ErrorIs(t, r.Handle("testtopic/9/unknown", []byte(`{}`)), ErrUnknownTopic)
	assert.ErrorIs(t, r.Handle("", []byte(`{}`)), ErrUnknownTopic)
	assert.ErrorIs(t, r.Handle(TopicAngle, []byte(`{"angle_x":`)), ErrMalformed)

	assert.Empty(t, out.updates)
	_, ok := r.Latest().Get(KindAngle)
	assert.False(t, ok)
	assert.Equal(t, 1, rec.messages["testtopic/9/unknown|unknown_topic"])
	assert.Equal(t, 1, rec.messages[TopicAngle+"|malformed"])
}

func TestRouterIgnoresDuplicateTopic(t *testing.T) {
	r := NewRouter(RouterOptions{}, GasProcessor{}, GasProcessor{})
	assert.Equal(t, []string{TopicGas}, r.Topics())
}
