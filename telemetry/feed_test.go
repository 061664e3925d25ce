package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedRoutesPublishedPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	router := NewRouter(RouterOptions{}, DefaultProcessors()...)
	feed := NewFeed(client, router, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, func() { close(ready) }) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("feed never subscribed")
	}

	require.NoError(t, feed.Publish(ctx, TopicAngle, []byte(`{"angle_x":5,"angle_y":0,"angle_z":0}`)))
	require.NoError(t, feed.Publish(ctx, TopicGas, []byte(`garbage`)))

	require.Eventually(t, func() bool {
		_, ok := router.Latest().Get(KindAngle)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := router.Latest().Get(KindGas)
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}
