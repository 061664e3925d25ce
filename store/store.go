package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps any transport or server failure.
	ErrUnavailable = errors.New("store: unavailable")
)

const (
	// NoExpiry is reported by TTL for a live key without an expiration.
	NoExpiry time.Duration = -1
	// Missing is reported by TTL when the key does not exist.
	Missing time.Duration = -2
)

// Entry is one key/value pair written by SetMany.
type Entry struct {
	Key   string
	Value string
	TTL   time.Duration
}

// Store is the TTL key-value contract. A zero TTL means the entry never
// expires.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetMany writes all entries in a single transaction.
	SetMany(ctx context.Context, entries ...Entry) error
	Get(ctx context.Context, key string) (string, error)
	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Keys enumerates keys matching a glob pattern. It is not a snapshot:
	// keys written during enumeration may or may not be reported.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// RemainingSeconds converts a TTL reading into whole seconds rounded up,
// returning 0 for missing or non-expiring keys.
func RemainingSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}

// EscapePattern quotes glob metacharacters so a literal value can be embedded
// in a Keys pattern.
func EscapePattern(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
