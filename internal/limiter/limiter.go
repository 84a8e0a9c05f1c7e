package limiter

import (
	"context"
	"sync"
	"time"
)

// Limiter caps attempts per key within a rolling window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Memory struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
	swept   time.Time
	now     func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{max: max, window: window, entries: make(map[string][]time.Time), now: time.Now}
}

func (l *Memory) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.window {
		l.sweep(cutoff)
		l.swept = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false, nil
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true, nil
}

// sweep drops keys whose newest attempt is outside the window.
func (l *Memory) sweep(cutoff time.Time) {
	for key, history := range l.entries {
		if len(history) == 0 || !history[len(history)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}
