package kurir

import (
	"time"

	"github.com/spf13/viper"
)

// Settings is the configuration surface consumed from an external provider.
// Absent or invalid values fall back to conservative built-in defaults,
// never to unbounded behavior.
type Settings struct {
	// MaxConnectionsPerHost bounds pooled sessions per host.
	MaxConnectionsPerHost int
	// MemoryCacheSize is the cache capacity in entries.
	MemoryCacheSize int
	// MemoryCacheTTL is the default entry time-to-live.
	MemoryCacheTTL time.Duration
	// RequestsPerSecond is the sustained per-host rate; zero or less
	// disables rate limiting.
	RequestsPerSecond float64
	// BurstLimit caps requests per host within the 60 second horizon.
	BurstLimit int

	// Independent feature toggles.
	UseConnectionPool  bool
	UseMemoryCache     bool
	EnableRateLimiting bool

	// Transport timeouts, bounded independently per phase.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// DefaultSettings returns the conservative built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxConnectionsPerHost: 8,
		MemoryCacheSize:       500,
		MemoryCacheTTL:        5 * time.Minute,
		RequestsPerSecond:     5,
		BurstLimit:            15,
		UseConnectionPool:     true,
		UseMemoryCache:        true,
		EnableRateLimiting:    true,
		ConnectTimeout:        5 * time.Second,
		ReadTimeout:           30 * time.Second,
	}
}

// normalized replaces out-of-range values with the defaults so a broken
// settings source can never configure unbounded behavior.
func (s Settings) normalized() Settings {
	defaults := DefaultSettings()
	if s.MaxConnectionsPerHost <= 0 {
		s.MaxConnectionsPerHost = defaults.MaxConnectionsPerHost
	}
	if s.MemoryCacheSize < 0 {
		s.MemoryCacheSize = defaults.MemoryCacheSize
	}
	if s.MemoryCacheTTL <= 0 {
		s.MemoryCacheTTL = defaults.MemoryCacheTTL
	}
	if s.RequestsPerSecond < 0 {
		s.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if s.BurstLimit <= 0 {
		s.BurstLimit = defaults.BurstLimit
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = defaults.ConnectTimeout
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = defaults.ReadTimeout
	}
	return s
}

// Setting keys understood by SettingsFromViper.
const (
	settingMaxConnectionsPerHost = "max_connections_per_host"
	settingMemoryCacheSize       = "memory_cache_size"
	settingMemoryCacheTTL        = "memory_cache_ttl"
	settingRequestsPerSecond     = "requests_per_second"
	settingBurstLimit            = "burst_limit"
	settingUseConnectionPool     = "use_connection_pool"
	settingUseMemoryCache        = "use_memory_cache"
	settingEnableRateLimiting    = "enable_rate_limiting"
	settingConnectTimeout        = "connect_timeout"
	settingReadTimeout           = "read_timeout"
)

// SettingsFromViper reads the settings surface from an external viper
// instance, filling any missing key from DefaultSettings. TTL and timeout
// keys accept either a duration string or a number of seconds.
func SettingsFromViper(v *viper.Viper) Settings {
	defaults := DefaultSettings()

	v.SetDefault(settingMaxConnectionsPerHost, defaults.MaxConnectionsPerHost)
	v.SetDefault(settingMemoryCacheSize, defaults.MemoryCacheSize)
	v.SetDefault(settingMemoryCacheTTL, defaults.MemoryCacheTTL)
	v.SetDefault(settingRequestsPerSecond, defaults.RequestsPerSecond)
	v.SetDefault(settingBurstLimit, defaults.BurstLimit)
	v.SetDefault(settingUseConnectionPool, defaults.UseConnectionPool)
	v.SetDefault(settingUseMemoryCache, defaults.UseMemoryCache)
	v.SetDefault(settingEnableRateLimiting, defaults.EnableRateLimiting)
	v.SetDefault(settingConnectTimeout, defaults.ConnectTimeout)
	v.SetDefault(settingReadTimeout, defaults.ReadTimeout)

	s := Settings{
		MaxConnectionsPerHost: v.GetInt(settingMaxConnectionsPerHost),
		MemoryCacheSize:       v.GetInt(settingMemoryCacheSize),
		MemoryCacheTTL:        durationSetting(v, settingMemoryCacheTTL),
		RequestsPerSecond:     v.GetFloat64(settingRequestsPerSecond),
		BurstLimit:            v.GetInt(settingBurstLimit),
		UseConnectionPool:     v.GetBool(settingUseConnectionPool),
		UseMemoryCache:        v.GetBool(settingUseMemoryCache),
		EnableRateLimiting:    v.GetBool(settingEnableRateLimiting),
		ConnectTimeout:        durationSetting(v, settingConnectTimeout),
		ReadTimeout:           durationSetting(v, settingReadTimeout),
	}

	// A zero sustained rate is the documented way to switch the limiter off,
	// so it survives normalization via the toggle instead.
	if s.RequestsPerSecond == 0 {
		s.EnableRateLimiting = false
		s.RequestsPerSecond = defaults.RequestsPerSecond
	}

	return s.normalized()
}

// durationSetting reads a duration key, treating bare numbers as seconds the
// way the upstream settings store does.
func durationSetting(v *viper.Viper, key string) time.Duration {
	d := v.GetDuration(key)
	if d > 0 && d < time.Millisecond {
		// GetDuration turns a bare number like 300 into 300ns; such values
		// are meant as seconds.
		return time.Duration(v.GetInt(key)) * time.Second
	}
	return d
}
