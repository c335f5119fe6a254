package kurir

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, 8, s.MaxConnectionsPerHost)
	assert.Equal(t, 500, s.MemoryCacheSize)
	assert.Equal(t, 5*time.Minute, s.MemoryCacheTTL)
	assert.Equal(t, 5.0, s.RequestsPerSecond)
	assert.Equal(t, 15, s.BurstLimit)
	assert.True(t, s.UseConnectionPool)
	assert.True(t, s.UseMemoryCache)
	assert.True(t, s.EnableRateLimiting)
	assert.Equal(t, 5*time.Second, s.ConnectTimeout)
	assert.Equal(t, 30*time.Second, s.ReadTimeout)
}

func TestSettingsNormalizedRejectsUnbounded(t *testing.T) {
	s := Settings{
		MaxConnectionsPerHost: -1,
		MemoryCacheSize:       -5,
		MemoryCacheTTL:        -time.Second,
		RequestsPerSecond:     -2,
		BurstLimit:            0,
	}.normalized()

	defaults := DefaultSettings()
	assert.Equal(t, defaults.MaxConnectionsPerHost, s.MaxConnectionsPerHost)
	assert.Equal(t, defaults.MemoryCacheSize, s.MemoryCacheSize)
	assert.Equal(t, defaults.MemoryCacheTTL, s.MemoryCacheTTL)
	assert.Equal(t, defaults.RequestsPerSecond, s.RequestsPerSecond)
	assert.Equal(t, defaults.BurstLimit, s.BurstLimit)
	assert.Equal(t, defaults.ConnectTimeout, s.ConnectTimeout)
	assert.Equal(t, defaults.ReadTimeout, s.ReadTimeout)
}

func TestSettingsNormalizedKeepsValid(t *testing.T) {
	s := Settings{
		MaxConnectionsPerHost: 4,
		MemoryCacheSize:       100,
		MemoryCacheTTL:        time.Minute,
		RequestsPerSecond:     2,
		BurstLimit:            10,
		ConnectTimeout:        time.Second,
		ReadTimeout:           10 * time.Second,
	}.normalized()

	assert.Equal(t, 4, s.MaxConnectionsPerHost)
	assert.Equal(t, 100, s.MemoryCacheSize)
	assert.Equal(t, time.Minute, s.MemoryCacheTTL)
	assert.Equal(t, 2.0, s.RequestsPerSecond)
	assert.Equal(t, 10, s.BurstLimit)
}

func TestSettingsFromViperDefaults(t *testing.T) {
	v := viper.New()
	s := SettingsFromViper(v)

	assert.Equal(t, DefaultSettings(), s, "an empty provider yields the built-in defaults")
}

func TestSettingsFromViperValues(t *testing.T) {
	v := viper.New()
	v.Set("max_connections_per_host", 4)
	v.Set("memory_cache_size", 200)
	v.Set("memory_cache_ttl", "10m")
	v.Set("requests_per_second", 2.5)
	v.Set("burst_limit", 30)
	v.Set("use_connection_pool", false)
	v.Set("connect_timeout", "2s")
	v.Set("read_timeout", "20s")

	s := SettingsFromViper(v)

	assert.Equal(t, 4, s.MaxConnectionsPerHost)
	assert.Equal(t, 200, s.MemoryCacheSize)
	assert.Equal(t, 10*time.Minute, s.MemoryCacheTTL)
	assert.Equal(t, 2.5, s.RequestsPerSecond)
	assert.Equal(t, 30, s.BurstLimit)
	assert.False(t, s.UseConnectionPool)
	assert.True(t, s.UseMemoryCache)
	assert.Equal(t, 2*time.Second, s.ConnectTimeout)
	assert.Equal(t, 20*time.Second, s.ReadTimeout)
}

func TestSettingsFromViperBareSecondsTTL(t *testing.T) {
	v := viper.New()
	v.Set("memory_cache_ttl", 300)

	s := SettingsFromViper(v)
	assert.Equal(t, 300*time.Second, s.MemoryCacheTTL, "bare numbers are seconds")
}

func TestSettingsFromViperZeroRateDisablesLimiting(t *testing.T) {
	v := viper.New()
	v.Set("requests_per_second", 0)

	s := SettingsFromViper(v)
	assert.False(t, s.EnableRateLimiting)
}

func TestSettingsFromViperInvalidValuesFallBack(t *testing.T) {
	v := viper.New()
	v.Set("max_connections_per_host", -3)
	v.Set("burst_limit", -1)

	s := SettingsFromViper(v)
	defaults := DefaultSettings()
	assert.Equal(t, defaults.MaxConnectionsPerHost, s.MaxConnectionsPerHost)
	assert.Equal(t, defaults.BurstLimit, s.BurstLimit)
}
