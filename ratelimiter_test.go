package kurir

import (
	"testing"
	"time"
)

// limiterClock drives a RateLimiter with a deterministic clock.
type limiterClock struct {
	now time.Time
}

func (c *limiterClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(sustained float64, burst int) (*RateLimiter, *limiterClock) {
	clock := &limiterClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(sustained, burst)
	rl.now = func() time.Time { return clock.now }
	return rl, clock
}

func TestRateLimiterNoWaitUnderRate(t *testing.T) {
	rl, clock := newTestLimiter(5, 15)

	for i := 0; i < 4; i++ {
		if wait := rl.WaitTime("example.test"); wait != 0 {
			t.Fatalf("request %d under the rate should not wait, got %v", i, wait)
		}
		rl.Record("example.test")
		clock.advance(250 * time.Millisecond)
	}
}

func TestRateLimiterSustainedRate(t *testing.T) {
	rl, clock := newTestLimiter(5, 15)

	// 5 requests inside one second saturate the sustained rate.
	for i := 0; i < 5; i++ {
		rl.Record("example.test")
		clock.advance(100 * time.Millisecond)
	}

	wait := rl.WaitTime("example.test")
	if wait <= 0 {
		t.Fatal("expected nonzero wait once sustained rate is reached")
	}
	// The oldest of the five is 500ms old; it exits the 1s sub-window in
	// 500ms.
	if want := 500 * time.Millisecond; wait != want {
		t.Errorf("expected wait %v, got %v", want, wait)
	}
}

func TestRateLimiterSustainedWaitFloor(t *testing.T) {
	rl, clock := newTestLimiter(5, 15)

	for i := 0; i < 5; i++ {
		rl.Record("example.test")
	}
	// The oldest timestamp is about to exit the sub-window; the wait is
	// floored rather than returning a uselessly small duration.
	clock.advance(999 * time.Millisecond)

	if wait := rl.WaitTime("example.test"); wait != minSustainedWait {
		t.Errorf("expected floored wait %v, got %v", minSustainedWait, wait)
	}
}

func TestRateLimiterBurstCooldown(t *testing.T) {
	rl, clock := newTestLimiter(5, 15)

	// Spread 15 requests across the horizon so the sustained check alone
	// would pass, then hit the burst ceiling.
	for i := 0; i < 15; i++ {
		rl.Record("example.test")
		clock.advance(2 * time.Second)
	}

	if wait := rl.WaitTime("example.test"); wait != burstCooldown {
		t.Errorf("expected burst cooldown %v, got %v", burstCooldown, wait)
	}
}

func TestRateLimiterHorizonPruning(t *testing.T) {
	rl, clock := newTestLimiter(5, 15)

	for i := 0; i < 15; i++ {
		rl.Record("example.test")
	}
	clock.advance(61 * time.Second)

	if wait := rl.WaitTime("example.test"); wait != 0 {
		t.Errorf("timestamps beyond the horizon must not count, got wait %v", wait)
	}
	if len(rl.times["example.test"]) != 0 {
		t.Error("pruning should drop stale timestamps")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl, _ := newTestLimiter(0, 15)

	for i := 0; i < 100; i++ {
		rl.Record("example.test")
	}
	if wait := rl.WaitTime("example.test"); wait != 0 {
		t.Errorf("a non-positive sustained rate disables limiting, got %v", wait)
	}
}

func TestRateLimiterPerHostAccounting(t *testing.T) {
	rl, _ := newTestLimiter(5, 15)

	for i := 0; i < 5; i++ {
		rl.Record("a.test")
	}

	if wait := rl.WaitTime("a.test"); wait <= 0 {
		t.Error("saturated host should wait")
	}
	if wait := rl.WaitTime("b.test"); wait != 0 {
		t.Errorf("hosts are accounted independently, got %v for idle host", wait)
	}
}

func TestRateLimiterReconfigure(t *testing.T) {
	rl, _ := newTestLimiter(1, 15)

	rl.Record("example.test")
	if wait := rl.WaitTime("example.test"); wait <= 0 {
		t.Fatal("expected wait at sustained rate 1")
	}

	rl.Reconfigure(100, 1000)
	if wait := rl.WaitTime("example.test"); wait != 0 {
		t.Errorf("raised limits should clear the wait, got %v", wait)
	}
}

func TestRateLimiterWaitTimeDoesNotRecord(t *testing.T) {
	rl, _ := newTestLimiter(5, 15)

	for i := 0; i < 10; i++ {
		rl.WaitTime("example.test")
	}
	if n := len(rl.times["example.test"]); n != 0 {
		t.Errorf("WaitTime must not consume quota, found %d timestamps", n)
	}
}
