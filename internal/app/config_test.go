package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:         defaultAddr,
		DatabaseURL:  "postgres://localhost/shopdesk",
		RedisURL:     "redis://localhost:6379/0",
		APIKeyPepper: "pepper",
		CartTTL:      72 * time.Hour,
		RateLimit:    RateLimitConfig{Max: 100, Window: time.Minute},
	}
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/1")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/1", cfg.RedisURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	// Explicit settings win over platform variables.
	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.validate())

	for _, tt := range []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"NoDatabase", func(c *Config) { c.DatabaseURL = "" }, "database URL"},
		{"NoRedis", func(c *Config) { c.RedisURL = "" }, "redis URL"},
		{"NoPepper", func(c *Config) { c.APIKeyPepper = "" }, "pepper"},
		{"ZeroRate", func(c *Config) { c.RateLimit.Max = 0 }, "rate limit"},
		{"ZeroWindow", func(c *Config) { c.RateLimit.Window = 0 }, "rate limit"},
		{"ZeroCartTTL", func(c *Config) { c.CartTTL = 0 }, "cart TTL"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
