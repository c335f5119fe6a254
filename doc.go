// Package kurir is the outbound request-dispatch layer for
// resource-constrained clients talking to remote HTTP APIs. It composes
// three independent optimizations behind a single entry point:
//
//   - A per-host connection pool with a bounded session count
//   - An in-memory response cache with TTL validation and LRU eviction
//   - A per-host rate limiter (sustained rate over 1s, burst ceiling over 60s)
//
// Design goals:
//   - Degrade gracefully: pool and cache failures are absorbed and only
//     genuine transport failure reaches the caller
//   - Never block longer than necessary: the rate-limit wait is the only
//     intentional suspension point, and it honors context cancellation
//   - Safe concurrent use of a single *Dispatcher from independent call
//     sites that share no other coordination
//
// Typical usage:
//
//	d := kurir.New(
//	    kurir.WithConnectionPool(8),
//	    kurir.WithMemoryCache(500, 5*time.Minute),
//	    kurir.WithRateLimiter(5, 15),
//	    kurir.WithMetrics(),
//	)
//	resp, err := d.Get(ctx, "https://api.example.com/v1/items?id=42")
//
// Configuration can also come from an external settings provider via
// SettingsFromViper plus NewFromSettings, with conservative defaults for
// missing or invalid values. The dispatcher performs no retries; its
// direct-send fallback is side-effect free, which makes caller-level retry
// safe.
package kurir
