package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://localhost/perfreview"
	cfg.JWTSecret = "dev-secret"
	cfg.SeedAdminEmail = "hr@example.com"
	return cfg
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfreview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
storeDriver: memory
rateLimitPerMinute: 30
shutdownTimeout: 3s
seedCompanyName: Acme
`), 0o600))
	t.Setenv("RATE_LIMIT_PER_MINUTE", "45")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 45, cfg.RateLimitPerMinute, "env overrides file")
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "Acme", cfg.SeedCompanyName)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, int64(1048576), cfg.MaxBodyBytes, "defaults survive")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CASCADE_CONCURRENCY", "many")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := applyEnv(Defaults())
	assert.Equal(t, 4, cfg.CascadeConcurrency)
	assert.True(t, cfg.MetricsEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseURL = "" }},
		{name: "memory without url", mutate: func(c *Config) { c.StoreDriver = StoreDriverMemory; c.DatabaseURL = "" }, ok: true},
		{name: "memory in production", mutate: func(c *Config) {
			c.StoreDriver = StoreDriverMemory
			c.Environment = "production"
			c.JWTSecret = "0123456789abcdef0123456789abcdef"
		}},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }},
		{name: "weak production secret", mutate: func(c *Config) { c.Environment = "production" }},
		{name: "seed without admin", mutate: func(c *Config) { c.SeedAdminEmail = "" }},
		{name: "seed disabled", mutate: func(c *Config) { c.SeedAdminEmail = ""; c.RunSeed = false }, ok: true},
		{name: "tiny body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }},
		{name: "redis without addr", mutate: func(c *Config) { c.RateLimitBackend = RateLimitRedis }},
		{name: "redis with addr", mutate: func(c *Config) { c.RateLimitBackend = RateLimitRedis; c.RedisAddr = "localhost:6379" }, ok: true},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
		{name: "zero cascade", mutate: func(c *Config) { c.CascadeConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
