package kurir

import (
	"sync"
	"time"
)

const (
	// rateHorizon is the trailing window kept for burst accounting.
	rateHorizon = 60 * time.Second
	// sustainedWindow is the trailing sub-window for the sustained rate.
	sustainedWindow = time.Second
	// burstCooldown is the fixed wait applied once the burst ceiling is hit.
	burstCooldown = time.Second
	// minSustainedWait floors the computed sustained wait.
	minSustainedWait = 100 * time.Millisecond
)

// RateLimiter tracks request timestamps per host and computes the wait a
// caller must observe before its next request. WaitTime never sleeps; it
// returns a duration and the caller performs the suspension, keeping the
// limiter non-blocking and trivially testable. Safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	sustained float64
	burst     int
	times     map[string][]time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter allowing sustained requests per second
// and burst requests per 60 second horizon, accounted independently per
// host. A sustained rate of zero or less disables limiting.
func NewRateLimiter(sustained float64, burst int) *RateLimiter {
	return &RateLimiter{
		sustained: sustained,
		burst:     burst,
		times:     make(map[string][]time.Time),
		now:       time.Now,
	}
}

// WaitTime prunes timestamps older than the horizon for host and returns the
// required wait: the fixed cooldown when the burst ceiling is reached, the
// time until the oldest timestamp exits the one second sub-window when the
// sustained rate is reached, and zero otherwise.
func (rl *RateLimiter) WaitTime(host string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.sustained <= 0 {
		return 0
	}

	now := rl.now()
	recent := rl.prune(host, now)

	if rl.burst > 0 && len(recent) >= rl.burst {
		return burstCooldown
	}

	windowStart := now.Add(-sustainedWindow)
	inWindow := 0
	var oldestInWindow time.Time
	for _, t := range recent {
		if t.After(windowStart) {
			if inWindow == 0 || t.Before(oldestInWindow) {
				oldestInWindow = t
			}
			inWindow++
		}
	}

	if float64(inWindow) >= rl.sustained {
		wait := sustainedWindow - now.Sub(oldestInWindow)
		if wait < minSustainedWait {
			wait = minSustainedWait
		}
		return wait
	}

	return 0
}

// Record appends the current timestamp for host. The dispatcher calls it
// exactly once per network attempt, whether or not the attempt succeeded.
func (rl *RateLimiter) Record(host string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.times[host] = append(rl.prune(host, now), now)
}

// Reconfigure replaces the sustained and burst limits.
func (rl *RateLimiter) Reconfigure(sustained float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sustained = sustained
	rl.burst = burst
}

// prune drops timestamps older than the horizon. Caller holds mu.
func (rl *RateLimiter) prune(host string, now time.Time) []time.Time {
	cutoff := now.Add(-rateHorizon)
	recent := rl.times[host][:0]
	for _, t := range rl.times[host] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(rl.times, host)
		return nil
	}
	rl.times[host] = recent
	return recent
}
