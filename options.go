package kurir

import (
	"fmt"
	"net/http"
	"time"
)

// WithSettings replaces the dispatcher's entire settings value. Component
// construction happens after all options are applied.
func WithSettings(s Settings) Option {
	return func(d *Dispatcher) {
		d.settings = s
	}
}

// WithConnectionPool enables pooling with the given per-host session
// maximum.
func WithConnectionPool(maxPerHost int) Option {
	return func(d *Dispatcher) {
		d.settings.UseConnectionPool = true
		d.settings.MaxConnectionsPerHost = maxPerHost
	}
}

// WithoutConnectionPool disables pooling; every request uses the direct
// path.
func WithoutConnectionPool() Option {
	return func(d *Dispatcher) {
		d.settings.UseConnectionPool = false
	}
}

// WithMemoryCache enables caching with the given capacity and default TTL.
func WithMemoryCache(capacity int, ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.settings.UseMemoryCache = true
		d.settings.MemoryCacheSize = capacity
		d.settings.MemoryCacheTTL = ttl
	}
}

// WithoutMemoryCache disables response caching.
func WithoutMemoryCache() Option {
	return func(d *Dispatcher) {
		d.settings.UseMemoryCache = false
	}
}

// WithRateLimiter enables per-host rate limiting with a sustained
// requests-per-second rate and a burst ceiling over the 60 second horizon.
func WithRateLimiter(sustained float64, burst int) Option {
	return func(d *Dispatcher) {
		d.settings.EnableRateLimiting = true
		d.settings.RequestsPerSecond = sustained
		d.settings.BurstLimit = burst
	}
}

// WithoutRateLimiting disables rate limiting.
func WithoutRateLimiting() Option {
	return func(d *Dispatcher) {
		d.settings.EnableRateLimiting = false
	}
}

// WithTimeouts sets the connect and read timeouts applied to both pooled and
// direct transports.
func WithTimeouts(connect, read time.Duration) Option {
	return func(d *Dispatcher) {
		d.settings.ConnectTimeout = connect
		d.settings.ReadTimeout = read
	}
}

// WithTransport sets a custom client for the direct (unpooled) path. A
// custom transport is left untouched by Reconfigure.
func WithTransport(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.transport = client
		d.customTransport = true
	}
}

// WithCacheCondition sets the policy deciding which CacheDefault requests
// participate in caching.
func WithCacheCondition(fn CacheCondition) Option {
	return func(d *Dispatcher) {
		d.cacheCondition = fn
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(d *Dispatcher) {
		d.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = collector
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(d *Dispatcher) {
		if d.debug == nil {
			d.debug = DefaultDebugConfig()
		}
		d.debug.Enabled = true
		d.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(d *Dispatcher) {
		if d.debug == nil {
			d.debug = DefaultDebugConfig()
		}
		d.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(d *Dispatcher) {
		d.debug = config
	}
}

// ValidateConfiguration validates the dispatcher configuration and returns
// an error describing every violation found.
func (d *Dispatcher) ValidateConfiguration() error {
	var errs []string

	errs = append(errs, d.validatePoolConfig()...)
	errs = append(errs, d.validateCacheConfig()...)
	errs = append(errs, d.validateRateLimiterConfig()...)
	errs = append(errs, d.validateTransportConfig()...)
	errs = append(errs, d.validateDebugConfig()...)

	if len(errs) > 0 {
		return &DispatchError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}
	return nil
}

func (d *Dispatcher) validatePoolConfig() []string {
	var errs []string
	if d.pool != nil {
		if d.settings.MaxConnectionsPerHost <= 0 {
			errs = append(errs, "maxConnectionsPerHost must be positive when pooling is enabled")
		}
		if d.settings.MaxConnectionsPerHost > 1024 {
			errs = append(errs, "maxConnectionsPerHost > 1024 may exhaust file descriptors")
		}
	}
	return errs
}

func (d *Dispatcher) validateCacheConfig() []string {
	var errs []string
	if d.cache != nil {
		if d.defaultTTL <= 0 {
			errs = append(errs, "memoryCacheTTL must be positive when caching is enabled")
		}
		if d.defaultTTL > 24*time.Hour {
			errs = append(errs, "memoryCacheTTL > 24h may cause stale data issues")
		}
		if d.settings.MemoryCacheSize > 1000000 {
			errs = append(errs, "memoryCacheSize > 1M may cause memory issues")
		}
	}
	if d.cacheCondition == nil {
		errs = append(errs, "cacheCondition cannot be nil")
	}
	return errs
}

func (d *Dispatcher) validateRateLimiterConfig() []string {
	var errs []string
	if d.limiter != nil {
		if d.settings.RequestsPerSecond <= 0 {
			errs = append(errs, "requestsPerSecond must be positive when rate limiting is enabled")
		}
		if d.settings.BurstLimit <= 0 {
			errs = append(errs, "burstLimit must be positive when rate limiting is enabled")
		}
		if float64(d.settings.BurstLimit) < d.settings.RequestsPerSecond {
			errs = append(errs, "burstLimit below requestsPerSecond starves the sustained rate")
		}
	}
	return errs
}

func (d *Dispatcher) validateTransportConfig() []string {
	var errs []string
	if d.transport == nil {
		errs = append(errs, "transport cannot be nil")
	}
	if d.settings.ConnectTimeout <= 0 {
		errs = append(errs, "connectTimeout must be positive")
	}
	if d.settings.ReadTimeout <= 0 {
		errs = append(errs, "readTimeout must be positive")
	}
	return errs
}

func (d *Dispatcher) validateDebugConfig() []string {
	var errs []string
	if d.debug != nil && d.debug.Enabled {
		if d.debug.RequestIDGen == nil {
			errs = append(errs, "debug RequestIDGen must be set when debug is enabled")
		}
		if d.logger == nil {
			errs = append(errs, "logger must be set when debug is enabled")
		}
	}
	return errs
}
