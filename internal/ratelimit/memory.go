package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/blog-auth/pkg/auth"
)

type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// MemoryTracker keeps attempt counters in process memory. Every read and
// write of an entry happens under one mutex.
type MemoryTracker struct {
	name   string
	policy Policy
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryTracker creates a tracker. name only labels log lines.
func NewMemoryTracker(name string, policy Policy, logger *slog.Logger) *MemoryTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryTracker{
		name:    name,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// WithClock replaces the time source. It is meant for tests.
func (t *MemoryTracker) WithClock(now func() time.Time) *MemoryTracker {
	t.now = now
	return t
}

// Attempt refuses key when it is at its limit and otherwise counts the
// attempt. Both happen under the tracker mutex, so concurrent attempts
// never share the last free slot.
func (t *MemoryTracker) Attempt(ctx context.Context, key string) (auth.Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.live(key, now)
	if e == nil {
		e = &entry{windowStart: now}
		t.entries[key] = e
	}
	if d := t.decide(e, now); !d.Allowed {
		return d, nil
	}
	e.count++
	if e.count >= t.policy.Max && t.policy.Block > 0 && e.blockedUntil.IsZero() {
		e.blockedUntil = now.Add(t.policy.Block)
	}
	return allowed(), nil
}

// Release takes back one counted attempt. A block started by that attempt
// is lifted with it.
func (t *MemoryTracker) Release(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.live(key, t.now())
	if e == nil || e.count == 0 {
		return nil
	}
	e.count--
	if e.count < t.policy.Max {
		e.blockedUntil = time.Time{}
	}
	return nil
}

// Clear forgets key.
func (t *MemoryTracker) Clear(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

// Sweep evicts every entry whose window and block have both ended.
// It returns the number of evicted entries.
func (t *MemoryTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (t *MemoryTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Run sweeps every interval until ctx is done.
func (t *MemoryTracker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := t.Sweep(t.now()); n > 0 {
				t.logger.Debug("swept attempt tracker", "tracker", t.name, "removed", n)
			}
		}
	}
}

// live returns the entry for key, evicting it first if it has expired.
func (t *MemoryTracker) live(key string, now time.Time) *entry {
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	if t.expired(e, now) {
		delete(t.entries, key)
		return nil
	}
	return e
}

func (t *MemoryTracker) expired(e *entry, now time.Time) bool {
	windowOver := !now.Before(e.windowStart.Add(t.policy.Window))
	blockOver := e.blockedUntil.IsZero() || !now.Before(e.blockedUntil)
	return windowOver && blockOver
}

func (t *MemoryTracker) decide(e *entry, now time.Time) auth.Decision {
	if !e.blockedUntil.IsZero() && now.Before(e.blockedUntil) {
		return denied(e.blockedUntil.Sub(now))
	}
	if e.count >= t.policy.Max {
		return denied(e.windowStart.Add(t.policy.Window).Sub(now))
	}
	return allowed()
}
