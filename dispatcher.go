package kurir

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// maxCacheableBody caps the payload size eligible for the memory cache so a
// pathological response cannot pin it.
const maxCacheableBody = 10 * 1024 * 1024

// Dispatcher is the single entry point for outbound requests. It composes
// the memory cache, per-host rate limiter and connection pool behind
// Dispatch, degrading gracefully when any optimization is unavailable: pool
// and cache failures are absorbed, only transport failure surfaces. Safe for
// concurrent use.
type Dispatcher struct {
	// mu guards the reconfigurable references below; Dispatch snapshots them
	// once per call, Reconfigure swaps them under the write lock.
	mu         sync.RWMutex
	pool       *ConnectionPool
	cache      *MemoryCache
	limiter    *RateLimiter
	defaultTTL time.Duration

	transport       *http.Client
	customTransport bool
	settings        Settings

	cacheCondition CacheCondition
	metrics        *MetricsCollector
	logger         Logger
	debug          *DebugConfig

	// sleep performs the rate-limit suspension; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	validationError error
}

// New constructs a Dispatcher from DefaultSettings modified by the provided
// options. A best effort validation is performed; call IsValid /
// ValidationError for errors.
func New(options ...Option) *Dispatcher {
	d := &Dispatcher{
		settings:       DefaultSettings(),
		cacheCondition: DefaultCacheCondition,
		debug:          nil,
		sleep:          sleepContext,
	}

	for _, option := range options {
		option(d)
	}

	d.settings = d.settings.normalized()
	s := d.settings

	if d.transport == nil {
		d.transport = directTransport(s.ConnectTimeout, s.ReadTimeout)
	}
	if s.UseConnectionPool && d.pool == nil {
		d.pool = NewConnectionPool(s.MaxConnectionsPerHost, s.ConnectTimeout, s.ReadTimeout)
	}
	if s.UseMemoryCache && d.cache == nil {
		d.cache = NewMemoryCache(s.MemoryCacheSize)
	}
	if s.EnableRateLimiting && d.limiter == nil {
		d.limiter = NewRateLimiter(s.RequestsPerSecond, s.BurstLimit)
	}
	d.defaultTTL = s.MemoryCacheTTL

	if err := d.ValidateConfiguration(); err != nil {
		d.validationError = err
	}

	return d
}

// NewFromSettings constructs a Dispatcher from an externally provided
// settings value, then applies any options on top.
func NewFromSettings(s Settings, options ...Option) *Dispatcher {
	opts := append([]Option{WithSettings(s)}, options...)
	return New(opts...)
}

// directTransport builds the unpooled fallback client.
func directTransport(connectTimeout, readTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialContext(connectTimeout),
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: readTimeout,
		},
	}
}

// Get dispatches an HTTP GET for url.
func (d *Dispatcher) Get(ctx context.Context, url string) (*Response, error) {
	return d.Dispatch(ctx, Request{Method: http.MethodGet, URL: url})
}

// Post dispatches an HTTP POST with the given content type and body.
func (d *Dispatcher) Post(ctx context.Context, url, contentType string, body []byte) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return d.Dispatch(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Body: body})
}

// Dispatch mediates one outbound call: cache lookup, rate-limit wait, pooled
// send with direct fallback, rate accounting and opportunistic cache store.
// The rate-limit wait is the only intentional blocking point; it honors both
// ctx cancellation and the request's MaxWait.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	method := req.method()
	requestID := d.requestID()

	u, err := req.fullURL()
	if err != nil || u.Host == "" {
		return nil, &DispatchError{
			Type:      ErrorTypeValidation,
			Message:   "invalid request URL",
			Cause:     err,
			RequestID: requestID,
			Method:    method,
			URL:       req.URL,
			Timestamp: time.Now(),
		}
	}
	host := hostKey(u)

	d.mu.RLock()
	pool, cache, limiter := d.pool, d.cache, d.limiter
	defaultTTL, transport := d.defaultTTL, d.transport
	d.mu.RUnlock()

	if d.metrics != nil {
		d.metrics.RecordRequestStart(method, host)
		defer d.metrics.RecordRequestEnd(method, host)
	}
	if d.debugEnabled(d.debug != nil && d.debug.LogRequests) {
		d.logger.Debug("dispatching request", "requestID", requestID, "method", method, "url", u.String())
	}

	cacheable := cache != nil && d.requestCacheable(req)
	var fingerprint string
	if cacheable {
		fingerprint = req.Fingerprint()
		ttl := defaultTTL
		if req.TTL > 0 {
			ttl = req.TTL
		}
		if payload, ok := cache.Get(fingerprint, ttl); ok {
			if d.metrics != nil {
				d.metrics.RecordCacheHit(method, host)
				d.metrics.RecordRequest(method, host, payload.StatusCode, time.Since(start))
			}
			if d.debugEnabled(d.debug != nil && d.debug.LogCache) {
				d.logger.Debug("cache hit", "requestID", requestID, "fingerprint", fingerprint)
			}
			return payload, nil
		}
		if d.metrics != nil {
			d.metrics.RecordCacheMiss(method, host)
		}
		if d.debugEnabled(d.debug != nil && d.debug.LogCache) {
			d.logger.Debug("cache miss", "requestID", requestID, "fingerprint", fingerprint)
		}
	}

	if limiter != nil {
		if waitErr := d.waitForRateLimit(ctx, limiter, req, host, requestID); waitErr != nil {
			return nil, waitErr
		}
	}

	payload, dispatchErr := d.send(ctx, pool, transport, req, u, host, requestID)

	// A failed attempt still consumed quota from the remote host's
	// perspective, so record regardless of outcome or path.
	if limiter != nil {
		limiter.Record(host)
	}

	if dispatchErr != nil {
		if d.metrics != nil {
			d.metrics.RecordError(ErrorTypeTransport, method, host)
			d.metrics.RecordRequest(method, host, 0, time.Since(start))
		}
		return nil, dispatchErr
	}

	if d.metrics != nil {
		d.metrics.RecordRequest(method, host, payload.StatusCode, time.Since(start))
	}

	if cacheable && payload.StatusCode < 400 && len(payload.Body) <= maxCacheableBody {
		cache.Put(fingerprint, payload)
		if d.metrics != nil {
			d.metrics.RecordCacheSize("default", cache.Len())
		}
		if d.debugEnabled(d.debug != nil && d.debug.LogCache) {
			d.logger.Debug("response cached", "requestID", requestID, "fingerprint", fingerprint)
		}
	}

	return payload, nil
}

// waitForRateLimit consults the limiter and performs the suspension.
func (d *Dispatcher) waitForRateLimit(ctx context.Context, limiter *RateLimiter, req Request, host, requestID string) error {
	wait := limiter.WaitTime(host)
	if wait <= 0 {
		return nil
	}

	if req.MaxWait > 0 && wait > req.MaxWait {
		if d.metrics != nil {
			d.metrics.RecordError(ErrorTypeRateLimitWait, req.method(), host)
		}
		return &DispatchError{
			Type:      ErrorTypeRateLimitWait,
			Message:   "computed wait " + wait.String() + " exceeds maximum " + req.MaxWait.String(),
			RequestID: requestID,
			Method:    req.method(),
			URL:       req.URL,
			Host:      host,
			Timestamp: time.Now(),
			Duration:  wait,
		}
	}

	if d.metrics != nil {
		d.metrics.RecordRateLimitWait(host, wait)
	}
	if d.debugEnabled(d.debug != nil && d.debug.LogRateLimit) {
		d.logger.Warn("rate limit wait", "requestID", requestID, "host", host, "wait", wait)
	}

	if err := d.sleep(ctx, wait); err != nil {
		return &DispatchError{
			Type:      ErrorTypeCanceled,
			Message:   "canceled during rate limit wait",
			Cause:     err,
			RequestID: requestID,
			Method:    req.method(),
			URL:       req.URL,
			Host:      host,
			Timestamp: time.Now(),
		}
	}
	return nil
}

// send attempts the pooled path first and falls back to a direct unpooled
// call; both failing surfaces a transport error.
func (d *Dispatcher) send(ctx context.Context, pool *ConnectionPool, transport *http.Client, req Request, u *url.URL, host, requestID string) (*Response, *DispatchError) {
	if pool != nil {
		if session := pool.Acquire(host); session != nil {
			if d.metrics != nil {
				d.metrics.RecordPoolAcquisition(host, "acquired")
				d.metrics.RecordPoolSessions(host, pool.Active(host))
			}

			raw, err := session.Do(d.buildHTTPRequest(ctx, req, u))
			if err == nil {
				payload, readErr := readResponse(raw)
				if readErr == nil {
					pool.Release(host, session, true)
					return payload, nil
				}
				err = readErr
			}

			// Transport-level failure over a pooled session: discard the
			// session and fall through to the direct path.
			pool.Release(host, session, false)
			if d.debugEnabled(d.debug != nil && d.debug.LogPool) {
				d.logger.Warn("pooled send failed, falling back", "requestID", requestID, "host", host, "error", err.Error())
			}
		} else if d.metrics != nil {
			d.metrics.RecordPoolAcquisition(host, "exhausted")
		}
	}

	raw, err := transport.Do(d.buildHTTPRequest(ctx, req, u))
	if err == nil {
		payload, readErr := readResponse(raw)
		if readErr == nil {
			return payload, nil
		}
		err = readErr
	}

	return nil, &DispatchError{
		Type:      ErrorTypeTransport,
		Message:   "request failed on pooled and direct paths",
		Cause:     err,
		RequestID: requestID,
		Method:    req.method(),
		URL:       req.URL,
		Host:      host,
		Path:      "direct",
		Timestamp: time.Now(),
	}
}

// buildHTTPRequest constructs a fresh *http.Request; the body is a byte
// slice, so each attempt gets its own reader.
func (d *Dispatcher) buildHTTPRequest(ctx context.Context, req Request, u *url.URL) *http.Request {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	// The URL was already parsed, so construction cannot fail here.
	httpReq, _ := http.NewRequestWithContext(ctx, req.method(), u.String(), body)
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq
}

// readResponse buffers the full body and closes it.
func readResponse(raw *http.Response) (*Response, error) {
	defer func() { _ = raw.Body.Close() }()

	body, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: raw.StatusCode,
		Header:     raw.Header.Clone(),
		Body:       body,
	}, nil
}

// Invalidate evicts one cache entry; used by callers that know server-side
// state changed.
func (d *Dispatcher) Invalidate(fingerprint string) {
	d.mu.RLock()
	cache := d.cache
	d.mu.RUnlock()
	if cache != nil {
		cache.Delete(fingerprint)
	}
}

// ClearCache drops all cached entries, e.g. when the caller switches the
// target region or language of an upstream API.
func (d *Dispatcher) ClearCache() {
	d.mu.RLock()
	cache := d.cache
	d.mu.RUnlock()
	if cache != nil {
		cache.Clear()
	}
}

// Reconfigure applies new settings to the live components, acquiring each
// component's lock in turn. Feature toggles take effect immediately; cache
// contents survive a capacity change.
func (d *Dispatcher) Reconfigure(s Settings) {
	s = s.normalized()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.settings = s
	d.defaultTTL = s.MemoryCacheTTL

	switch {
	case !s.UseConnectionPool:
		d.pool = nil
	case d.pool == nil:
		d.pool = NewConnectionPool(s.MaxConnectionsPerHost, s.ConnectTimeout, s.ReadTimeout)
	default:
		d.pool.Reconfigure(s.MaxConnectionsPerHost)
	}

	switch {
	case !s.UseMemoryCache:
		d.cache = nil
	case d.cache == nil:
		d.cache = NewMemoryCache(s.MemoryCacheSize)
	default:
		d.cache.Reconfigure(s.MemoryCacheSize)
	}

	switch {
	case !s.EnableRateLimiting:
		d.limiter = nil
	case d.limiter == nil:
		d.limiter = NewRateLimiter(s.RequestsPerSecond, s.BurstLimit)
	default:
		d.limiter.Reconfigure(s.RequestsPerSecond, s.BurstLimit)
	}

	if !d.customTransport {
		d.transport = directTransport(s.ConnectTimeout, s.ReadTimeout)
	}
}

// Settings returns the currently applied settings.
func (d *Dispatcher) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// IsValid reports whether configuration validation passed at construction.
func (d *Dispatcher) IsValid() bool {
	return d.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (d *Dispatcher) ValidationError() error {
	return d.validationError
}

func (d *Dispatcher) requestCacheable(req Request) bool {
	switch req.Cache {
	case CacheAlways:
		return true
	case CacheNever:
		return false
	default:
		return d.cacheCondition(req)
	}
}

func (d *Dispatcher) requestID() string {
	if d.debug != nil && d.debug.Enabled && d.debug.RequestIDGen != nil {
		return d.debug.RequestIDGen()
	}
	return ""
}

func (d *Dispatcher) debugEnabled(flag bool) bool {
	return d.debug != nil && d.debug.Enabled && flag && d.logger != nil
}

// sleepContext suspends for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
