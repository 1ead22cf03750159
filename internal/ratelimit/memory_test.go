package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryTracker_WindowLimit(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewMemoryTracker("signin", SigninPolicy, nil).WithClock(clock.Now)

	for i := 0; i < SigninPolicy.Max; i++ {
		d, err := tr.Attempt(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Attempt() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d: Allowed = false, want true", i+1)
		}
	}

	d, _ := tr.Attempt(ctx, "10.0.0.1")
	if d.Allowed {
		t.Fatal("Attempt() past max: Allowed = true, want false")
	}
	if d.RetryAfter != SigninPolicy.Window {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, SigninPolicy.Window)
	}

	clock.Advance(10 * time.Minute)
	d, _ = tr.Attempt(ctx, "10.0.0.1")
	if d.Allowed {
		t.Error("Attempt() inside window: Allowed = true, want false")
	}
	if d.RetryAfter != 5*time.Minute {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, 5*time.Minute)
	}

	// Other keys are independent.
	if d, _ := tr.Attempt(ctx, "10.0.0.2"); !d.Allowed {
		t.Error("Attempt() for other key: Allowed = false, want true")
	}

	clock.Advance(5 * time.Minute)
	d, _ = tr.Attempt(ctx, "10.0.0.1")
	if !d.Allowed {
		t.Error("Attempt() after window: Allowed = false, want true")
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestMemoryTracker_Clear(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker("signin", Policy{Max: 2, Window: time.Minute}, nil)

	tr.Attempt(ctx, "k")
	tr.Attempt(ctx, "k")
	if d, _ := tr.Attempt(ctx, "k"); d.Allowed {
		t.Fatal("Attempt() = allowed, want denied")
	}

	if err := tr.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if d, _ := tr.Attempt(ctx, "k"); !d.Allowed {
		t.Error("Attempt() after Clear = denied, want allowed")
	}
}

func TestMemoryTracker_Release(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker("signin", Policy{Max: 2, Window: time.Minute}, nil)

	tr.Attempt(ctx, "k")
	tr.Attempt(ctx, "k")
	if err := tr.Release(ctx, "k"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if d, _ := tr.Attempt(ctx, "k"); !d.Allowed {
		t.Fatal("Attempt() after Release = denied, want allowed")
	}
	if d, _ := tr.Attempt(ctx, "k"); d.Allowed {
		t.Error("Attempt() past max = allowed, want denied")
	}

	// Releasing an unknown key is a no-op.
	if err := tr.Release(ctx, "other"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}

func TestMemoryTracker_Block(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewMemoryTracker("oauth", OAuthPolicy, nil).WithClock(clock.Now)

	for i := 0; i < OAuthPolicy.Max; i++ {
		if d, _ := tr.Attempt(ctx, "ip"); !d.Allowed {
			t.Fatalf("attempt %d: Allowed = false, want true", i+1)
		}
	}
	d, _ := tr.Attempt(ctx, "ip")
	if d.Allowed {
		t.Fatal("Attempt() past max: Allowed = true, want false")
	}
	if d.RetryAfter != OAuthPolicy.Block {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, OAuthPolicy.Block)
	}

	// The block outlasts the one hour window.
	clock.Advance(90 * time.Minute)
	d, _ = tr.Attempt(ctx, "ip")
	if d.Allowed {
		t.Fatal("Attempt() during block: Allowed = true, want false")
	}
	if d.RetryAfter != 30*time.Minute {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, 30*time.Minute)
	}

	clock.Advance(30 * time.Minute)
	if d, _ := tr.Attempt(ctx, "ip"); !d.Allowed {
		t.Error("Attempt() after block: Allowed = false, want true")
	}
}

func TestMemoryTracker_ReleaseLiftsBlock(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewMemoryTracker("oauth", OAuthPolicy, nil).WithClock(clock.Now)

	for i := 0; i < OAuthPolicy.Max; i++ {
		tr.Attempt(ctx, "ip")
	}
	if err := tr.Release(ctx, "ip"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	// With the block lifted, the one hour window bounds the key again.
	clock.Advance(time.Hour)
	if d, _ := tr.Attempt(ctx, "ip"); !d.Allowed {
		t.Error("Attempt() after window = denied, want allowed")
	}
}

func TestMemoryTracker_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewMemoryTracker("signup", SignupPolicy, nil).WithClock(clock.Now)

	tr.Attempt(ctx, "a")
	clock.Advance(30 * time.Minute)
	tr.Attempt(ctx, "b")

	if n := tr.Sweep(clock.Now()); n != 0 {
		t.Errorf("Sweep() = %d, want 0", n)
	}

	clock.Advance(45 * time.Minute)
	if n := tr.Sweep(clock.Now()); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}

	// Sweeping again is a no-op.
	if n := tr.Sweep(clock.Now()); n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
}

func TestMemoryTracker_ConcurrentAttempts(t *testing.T) {
	ctx := context.Background()
	max := 5
	tr := NewMemoryTracker("signin", Policy{Max: max, Window: time.Hour}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := tr.Attempt(ctx, "ip")
			if d.Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	// Sweeps run alongside the attempts.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			tr.Sweep(time.Now())
		}
	}()
	wg.Wait()

	if allowedCount != max {
		t.Errorf("allowed attempts = %d, want %d", allowedCount, max)
	}
	if d, _ := tr.Attempt(ctx, "ip"); d.Allowed {
		t.Error("Attempt() = allowed, want denied")
	}
}

func TestMemoryTracker_RunStopsOnCancel(t *testing.T) {
	tr := NewMemoryTracker("signin", SigninPolicy, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
