package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig defines settings for the storefront response cache.  When
// Enabled is false or no Redis client is available, caching is skipped.
// Methods lists the HTTP methods to cache, TTL the lifetime of entries and
// MaxBodyBytes the largest response body that will be stored.
type CacheConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Methods      map[string]bool `yaml:"-"`
	TTL          time.Duration   `yaml:"-"`
	Prefix       string          `yaml:"prefix"`
	MaxBodyBytes int             `yaml:"max_body_bytes"`
}

func defaultCache() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		Methods:      parseMethods("GET"),
		TTL:          30 * time.Second,
		Prefix:       "pasal:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func applyCacheEnv(cc *CacheConfig) {
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cc.Enabled = envBool(v, cc.Enabled)
	}
	if v := os.Getenv("CACHE_METHODS"); v != "" {
		cc.Methods = parseMethods(v)
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := ParseTTL(v); err == nil {
			cc.TTL = d
		}
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		cc.Prefix = v
	}
	if v := os.Getenv("CACHE_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cc.MaxBodyBytes = n
		}
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
