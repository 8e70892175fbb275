package config

// Redis backs the storefront response cache.  When it cannot be reached at
// startup the constructor returns nil and the cache middleware is skipped.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds connection settings for the response cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

func defaultRedis() RedisConfig {
	return RedisConfig{Addr: "localhost:6379"}
}

// applyRedisEnv reads REDIS_HOST/REDIS_PORT (which win over REDIS_ADDR),
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func applyRedisEnv(rc *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rc.Addr = addr
	}
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		rc.Addr = host + ":" + port
	}
	if pwd := os.Getenv("REDIS_PASSWORD"); pwd != "" {
		rc.Password = pwd
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rc.DB = n
		}
	}
	if v := os.Getenv("REDIS_TLS"); v != "" {
		rc.TLS = envBool(v, rc.TLS)
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when the server is unreachable.
func NewRedisClient(ctx context.Context, rc RedisConfig, log *zap.Logger) *redis.Client {
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, response cache disabled", zap.String("addr", rc.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
