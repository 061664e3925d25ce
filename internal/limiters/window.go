package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sensorgate/store"
)

// ErrWindowExceeded is returned by Hit once the window ceiling is passed.
var ErrWindowExceeded = errors.New("fixed window exceeded")

// WindowConfig sets the ceiling and window length of a FixedWindow.
type WindowConfig struct {
	Limit  int
	Window time.Duration
}

// FixedWindow counts hits per key in a window that starts at the first hit.
type FixedWindow struct {
	store  store.Store
	config WindowConfig
}

// NewFixedWindow builds a limiter over the shared store.
func NewFixedWindow(s store.Store, cfg WindowConfig) *FixedWindow {
	return &FixedWindow{store: s, config: cfg}
}

// Decision is the outcome of a single Hit.
type Decision struct {
	Count      int64
	RetryAfter time.Duration
}

// Hit records one event against key. The expiry is set only when the counter
// is created, so later hits never extend the window. A counter that lost its
// expiry (written by a crashed caller between INCR and EXPIRE) is repaired.
func (l *FixedWindow) Hit(ctx context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{}, nil
	}

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	if count == 1 {
		if _, err := l.store.Expire(ctx, key, l.config.Window); err != nil {
			return Decision{}, err
		}
	}

	d := Decision{Count: count}
	if count <= int64(l.config.Limit) {
		return d, nil
	}

	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	if ttl == store.NoExpiry {
		if _, err := l.store.Expire(ctx, key, l.config.Window); err != nil {
			return Decision{}, err
		}
		ttl = l.config.Window
	}
	d.RetryAfter = ttl
	return d, ErrWindowExceeded
}

// Reset drops the counter for key.
func (l *FixedWindow) Reset(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	_, err := l.store.Delete(ctx, key)
	return err
}
