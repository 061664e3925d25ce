package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Feed carries device payloads over Redis pub/sub, one channel per topic.
type Feed struct {
	client redis.UniversalClient
	router *Router
	log    logrus.FieldLogger
}

func NewFeed(client redis.UniversalClient, router *Router, log logrus.FieldLogger) *Feed {
	return &Feed{client: client, router: router, log: internal.LoggerOrDiscard(log)}
}

// Publish sends payload on topic.
func (f *Feed) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := f.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run subscribes to every router topic and hands messages to the router until
// ctx is cancelled. The ready callback, when set, fires once the subscription
// is confirmed.
func (f *Feed) Run(ctx context.Context, ready func()) error {
	topics := f.router.Topics()
	if len(topics) == 0 {
		return errors.New("telemetry: router has no topics")
	}

	ps := f.client.Subscribe(ctx, topics...)
	defer ps.Close()

	for range topics {
		if _, err := ps.Receive(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("subscribe telemetry topics: %w", err)
		}
	}
	f.log.WithField("topics", topics).Info("telemetry feed subscribed")
	if ready != nil {
		ready()
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			// A dropped payload is already logged and counted by the router.
			_ = f.router.Handle(msg.Channel, []byte(msg.Payload))
		}
	}
}
