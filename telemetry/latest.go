package telemetry

import "sync"

// Latest keeps the most recent update per reading kind.
type Latest struct {
	mu      sync.RWMutex
	updates map[string]Update
}

func NewLatest() *Latest {
	return &Latest{updates: make(map[string]Update)}
}

func (l *Latest) Put(u Update) {
	l.mu.Lock()
	l.updates[u.Kind] = u
	l.mu.Unlock()
}

// Get returns the latest update for kind and whether one was seen.
func (l *Latest) Get(kind string) (Update, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.updates[kind]
	return u, ok
}

// All returns the latest reading data keyed by kind.
func (l *Latest) All() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]any, len(l.updates))
	for kind, u := range l.updates {
		out[kind] = u.Data
	}
	return out
}
