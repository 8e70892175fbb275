// Package cache holds the per-tenant version stamps behind every cached
// storefront read.  A cached entry is served only while its tenant is still
// at the version the entry was stored under, and every write to a store or
// its products bumps that version.  Bumping is therefore the one eviction
// operation: it drops the tenant's entries in every cache and on every
// instance that reads the same Versions backend.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Versions hands out and bumps tenant versions.
type Versions interface {
	Version(ctx context.Context, tenant string) (string, error)
	Bump(ctx context.Context, tenant string) error
}

// Local keeps versions in process memory.  It is only consistent for a
// single instance.
type Local struct {
	mu sync.Mutex
	v  map[string]uint64
}

func NewLocal() *Local { return &Local{v: map[string]uint64{}} }

func (l *Local) Version(ctx context.Context, tenant string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return strconv.FormatUint(l.v[tenant], 10), nil
}

func (l *Local) Bump(_ context.Context, tenant string) error {
	l.mu.Lock()
	l.v[tenant]++
	l.mu.Unlock()
	return nil
}

// Redis keeps versions in Redis under <prefix>:tenant:<sub>:ver, so a bump
// made by one instance is seen by all of them.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(tenant string) string {
	return r.prefix + ":tenant:" + tenant + ":ver"
}

// Version returns "0" for a tenant that was never bumped.
func (r *Redis) Version(ctx context.Context, tenant string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(tenant)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

func (r *Redis) Bump(ctx context.Context, tenant string) error {
	return r.rdb.Incr(ctx, r.key(tenant)).Err()
}
