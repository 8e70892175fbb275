package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"7d":  7 * 24 * time.Hour,
		"36h": 36 * time.Hour,
		" 1d": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "d", "-1d", "soon"} {
		_, err := ParseTTL(bad)
		assert.Error(t, err, bad)
	}
}

func validConfig() Config {
	c := Defaults()
	c.JWTSecret = "access"
	c.RefreshSecret = "refresh"
	return c
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.RefreshSecret = c.JWTSecret
	assert.ErrorContains(t, c.Validate(), "must differ")

	c = validConfig()
	c.JWTSecret = ""
	assert.ErrorContains(t, c.Validate(), "JWT_SECRET")

	c = validConfig()
	c.RefreshTTL = c.AccessTTL
	assert.ErrorContains(t, c.Validate(), "longer than")

	c = validConfig()
	c.Storage = "postgres"
	assert.ErrorContains(t, c.Validate(), "unknown STORAGE")

	c = validConfig()
	c.Storage = "memory"
	c.DBHost = ""
	assert.NoError(t, c.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "a-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "r-secret")
	t.Setenv("JWT_EXPIRES_IN", "10m")
	t.Setenv("REFRESH_TOKEN_EXPIRES_IN", "30d")
	t.Setenv("STORAGE", "memory")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ARGON2_THREADS", "4")
	t.Setenv("CACHE_METHODS", "get, head")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "memory", cfg.Storage)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, uint8(4), cfg.Argon2Threads)
	assert.True(t, cfg.Cache.Methods["HEAD"])
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "a-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "r-secret")
	t.Setenv("JWT_EXPIRES_IN", "forever")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_EXPIRES_IN")
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pasal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: memory
base_domain: example.test
access_ttl: 5m
refresh_ttl: 2d
redis:
  addr: cache:6379
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "a-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "r-secret")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("REFRESH_TOKEN_EXPIRES_IN", "")
	t.Setenv("STORAGE", "")
	t.Setenv("BASE_DOMAIN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "example.test", cfg.BaseDomain)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Second, cfg.TenantCacheTTL)
}
