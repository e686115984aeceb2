package ratelimit

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLimiter(t *testing.T) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}
	l := New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	l.now = clock.Now
	return l, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLimiter_ExactEnforcement(t *testing.T) {
	l, clock := testLimiter(t)

	// All 5 requests inside the window are allowed.
	for i := 0; i < 5; i++ {
		res := l.Check("user:abc", 5, time.Minute)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 5-(i+1) {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, 5-(i+1))
		}
	}

	// The 6th, one second later, is denied with reset ≈ 59s.
	clock.Advance(time.Second)
	res := l.Check("user:abc", 5, time.Minute)
	if res.Allowed {
		t.Fatal("6th request should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	if res.Reset != 59*time.Second {
		t.Errorf("reset = %v, want 59s", res.Reset)
	}
}

func TestLimiter_WindowExpiryAllowsNewRequests(t *testing.T) {
	l, clock := testLimiter(t)

	for i := 0; i < 3; i++ {
		l.Check("ip:192.168.1.1", 3, time.Minute)
	}
	if l.Check("ip:192.168.1.1", 3, time.Minute).Allowed {
		t.Fatal("should be denied at limit")
	}

	// After the oldest timestamp leaves the window, one slot reopens.
	clock.Advance(time.Minute + time.Millisecond)
	res := l.Check("ip:192.168.1.1", 3, time.Minute)
	if !res.Allowed {
		t.Fatal("should be allowed after window expiry")
	}
}

func TestLimiter_SlidingNotFixedWindow(t *testing.T) {
	l, clock := testLimiter(t)

	// Two requests at t=0, one at t=30s. At t=61s the first two have
	// expired but the third has not, so exactly one slot is free — a fixed
	// window would have reset all three.
	l.Check("user:x", 3, time.Minute)
	l.Check("user:x", 3, time.Minute)
	clock.Advance(30 * time.Second)
	l.Check("user:x", 3, time.Minute)

	clock.Advance(31 * time.Second)
	first := l.Check("user:x", 3, time.Minute)
	second := l.Check("user:x", 3, time.Minute)
	third := l.Check("user:x", 3, time.Minute)
	if !first.Allowed || !second.Allowed {
		t.Error("two slots should be free after the oldest pair expired")
	}
	if third.Allowed {
		t.Error("third request should be denied while the t=30s entry is live")
	}
}

func TestLimiter_IdentifierIndependence(t *testing.T) {
	l, _ := testLimiter(t)

	for i := 0; i < 5; i++ {
		l.Check("user:a", 5, time.Minute)
	}
	if l.Check("user:a", 5, time.Minute).Allowed {
		t.Fatal("user:a should be exhausted")
	}

	res := l.Check("user:b", 5, time.Minute)
	if !res.Allowed || res.Remaining != 4 {
		t.Errorf("user:b should be unaffected, got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestLimiter_DeniedRequestDoesNotConsume(t *testing.T) {
	l, clock := testLimiter(t)

	l.Check("user:a", 1, time.Minute)

	// Hammering while denied must not extend the block.
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		if l.Check("user:a", 1, time.Minute).Allowed {
			t.Fatal("should be denied inside the window")
		}
	}

	// 60s after the single allowed request, the window is clear.
	clock.Advance(51 * time.Second)
	if !l.Check("user:a", 1, time.Minute).Allowed {
		t.Error("denied requests must not have been appended to the log")
	}
}

func TestLimiter_ConcurrentChecksDoNotOverAdmit(t *testing.T) {
	l, _ := testLimiter(t)

	const workers = 50
	const limit = 10

	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("user:hot", limit, time.Minute).Allowed {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	if count != limit {
		t.Errorf("allowed %d concurrent requests, want exactly %d", count, limit)
	}
}

func TestLimiter_SweepRemovesStaleIdentifiers(t *testing.T) {
	l, clock := testLimiter(t)

	for i := 0; i < 20; i++ {
		l.Check(fmt.Sprintf("ip:10.0.0.%d", i), 5, time.Minute)
	}
	if l.size() != 20 {
		t.Fatalf("tracked = %d, want 20", l.size())
	}

	clock.Advance(DefaultStaleAfter + time.Second)
	l.Check("ip:10.0.0.100", 5, time.Minute)
	l.sweep()

	if l.size() != 1 {
		t.Errorf("tracked = %d after sweep, want 1", l.size())
	}

	// Sweeping must not change admission decisions: the surviving
	// identifier's window already self-prunes.
	if !l.Check("ip:10.0.0.0", 5, time.Minute).Allowed {
		t.Error("swept identifier should start fresh")
	}
}

func TestLimiter_StartStop(t *testing.T) {
	l, _ := testLimiter(t)
	l.Start()
	l.Stop()
	// Stop is idempotent and safe without Start.
	l.Stop()

	l2, _ := testLimiter(t)
	l2.Stop()
}
