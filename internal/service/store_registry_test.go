package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/cache"
	"github.com/iliyamo/pasal-api/internal/model"
	q "github.com/iliyamo/pasal-api/internal/queue"
	"github.com/iliyamo/pasal-api/internal/repository/memory"
)

func newRegistry(t *testing.T, ttl time.Duration) (*StoreRegistry, *memory.DB, *recordingPublisher) {
	t.Helper()
	db := memory.New()
	events := &recordingPublisher{}
	r := NewStoreRegistry(db.Stores(), db.Products(), StoreRegistryOptions{CacheTTL: ttl, Events: events})
	return r, db, events
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestIsSubdomainAvailable(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	ctx := context.Background()

	for _, reserved := range []string{"www", "API", "dashboard", "status"} {
		ok, err := r.IsSubdomainAvailable(ctx, reserved)
		require.NoError(t, err)
		assert.False(t, ok, reserved)
	}

	ok, err := r.IsSubdomainAvailable(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)

	ok, err = r.IsSubdomainAvailable(ctx, "ACME")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateStore(t *testing.T) {
	r, _, events := newRegistry(t, 0)
	ctx := context.Background()

	s, err := r.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "  Acme-Shop ", Name: " Acme Shop "})
	require.NoError(t, err)
	assert.Equal(t, "acme-shop", s.Subdomain)
	assert.Equal(t, "Acme Shop", s.Name)
	assert.Equal(t, "u1", s.OwnerID)
	assert.True(t, s.IsActive)
	assert.NotEmpty(t, s.ID)

	_, err = r.CreateStore(ctx, "u2", CreateStoreInput{Subdomain: "acme-shop", Name: "Copycat"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = r.CreateStore(ctx, "u2", CreateStoreInput{Subdomain: "admin", Name: "Admin"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.Eventually(t, func() bool { return len(events.types()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{q.StoreCreated}, events.types())
}

func TestCreateStore_Validation(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	ctx := context.Background()

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	cases := []CreateStoreInput{
		{Subdomain: "ab", Name: "Name"},
		{Subdomain: "-abc", Name: "Name"},
		{Subdomain: "abc-", Name: "Name"},
		{Subdomain: "a_bc", Name: "Name"},
		{Subdomain: "abc", Name: "N"},
		{Subdomain: "abc", Name: "Name", Description: strPtr(string(long))},
		{Subdomain: "abc", Name: "Name", Logo: strPtr("not a url")},
	}
	for _, in := range cases {
		_, err := r.CreateStore(ctx, "u1", in)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err), "%+v", in)
	}
}

func TestCreateStore_ConcurrentSameSubdomain(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	ctx := context.Background()

	const n = 16
	var (
		wg        sync.WaitGroup
		ok        atomic.Int32
		conflicts atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := r.CreateStore(ctx, fmt.Sprintf("u%d", i), CreateStoreInput{Subdomain: "acme", Name: "Acme"})
			switch apperr.KindOf(err) {
			case "":
				ok.Add(1)
			case apperr.KindConflict:
				conflicts.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
}

// racyStores hides existing rows from CountBySubdomain so the pre-check
// always passes and only Insert can detect the duplicate.
type racyStores struct {
	StoreStorage
}

func (racyStores) CountBySubdomain(context.Context, string) (int, error) { return 0, nil }

func TestCreateStore_InsertConflictIsConflict(t *testing.T) {
	db := memory.New()
	r := NewStoreRegistry(racyStores{db.Stores()}, db.Products(), StoreRegistryOptions{})
	ctx := context.Background()

	_, err := r.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)
	_, err = r.CreateStore(ctx, "u2", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestResolveActiveStore(t *testing.T) {
	r, _, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	_, err := r.ResolveActiveStore(ctx, "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	s, err := r.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)

	got, err := r.ResolveActiveStore(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	// Deactivation must be visible despite the cached lookup above.
	_, err = r.UpdateOwned(ctx, "u1", s.ID, model.StorePatch{IsActive: boolPtr(false)})
	require.NoError(t, err)

	_, err = r.ResolveActiveStore(ctx, "acme")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestResolveActiveStore_SharedVersionsAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := memory.New()
	opts := StoreRegistryOptions{CacheTTL: time.Hour, Versions: cache.NewRedis(rdb, "pasal:cache")}
	a := NewStoreRegistry(db.Stores(), db.Products(), opts)
	b := NewStoreRegistry(db.Stores(), db.Products(), opts)
	ctx := context.Background()

	s, err := a.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)
	_, err = a.ResolveActiveStore(ctx, "acme")
	require.NoError(t, err)

	// b writes; a still holds its own in-process entry.
	_, err = b.UpdateOwned(ctx, "u1", s.ID, model.StorePatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = a.ResolveActiveStore(ctx, "acme")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, b.DeleteOwned(ctx, "u1", s.ID))
	_, err = a.ResolveActiveStore(ctx, "acme")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestResolveActiveStore_VersionsDownBypassesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	db := memory.New()
	r := NewStoreRegistry(db.Stores(), db.Products(), StoreRegistryOptions{
		CacheTTL: time.Hour,
		Versions: cache.NewRedis(rdb, "pasal:cache"),
	})
	ctx := context.Background()

	s, err := r.CreateStore(ctx, "u1", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)
	_, err = r.ResolveActiveStore(ctx, "acme")
	require.NoError(t, err)

	mr.Close()
	require.NoError(t, db.Stores().DeleteForOwner(ctx, s.ID, "u1"))

	_, err = r.ResolveActiveStore(ctx, "acme")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOwnershipFoldsToNotFound(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	ctx := context.Background()

	s, err := r.CreateStore(ctx, "owner", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)

	_, err = r.GetOwned(ctx, "intruder", s.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = r.UpdateOwned(ctx, "intruder", s.ID, model.StorePatch{Name: strPtr("Hacked")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = r.DeleteOwned(ctx, "intruder", s.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = r.DeleteOwned(ctx, "owner", "missing-id")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := r.GetOwned(ctx, "owner", s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	require.NotNil(t, got.ProductCount)
	assert.Equal(t, 0, *got.ProductCount)
}

func TestUpdateAndDeleteOwned(t *testing.T) {
	r, db, _ := newRegistry(t, time.Minute)
	ctx := context.Background()

	s, err := r.CreateStore(ctx, "owner", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, db.Products().InsertForOwner(ctx, "owner", &model.Product{ID: "p1", StoreID: s.ID, Name: "Mug", Category: "Kitchen"}))

	up, err := r.UpdateOwned(ctx, "owner", s.ID, model.StorePatch{Name: strPtr("Acme Two"), Description: strPtr("new")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Two", up.Name)
	assert.Equal(t, "acme", up.Subdomain)
	require.NotNil(t, up.ProductCount)
	assert.Equal(t, 1, *up.ProductCount)

	_, err = r.UpdateOwned(ctx, "owner", s.ID, model.StorePatch{Name: strPtr("x")})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	ps, err := r.StoreProducts(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	require.NoError(t, r.DeleteOwned(ctx, "owner", s.ID))
	_, err = r.ResolveActiveStore(ctx, "acme")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = db.Products().GetByID(ctx, "p1")
	assert.Error(t, err)

	ok, err := r.IsSubdomainAvailable(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListOwned(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	ctx := context.Background()

	_, err := r.CreateStore(ctx, "a", CreateStoreInput{Subdomain: "one", Name: "One"})
	require.NoError(t, err)
	_, err = r.CreateStore(ctx, "a", CreateStoreInput{Subdomain: "two", Name: "Two"})
	require.NoError(t, err)
	_, err = r.CreateStore(ctx, "b", CreateStoreInput{Subdomain: "three", Name: "Three"})
	require.NoError(t, err)

	mine, err := r.ListOwned(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, s := range mine {
		assert.Equal(t, "a", s.OwnerID)
	}
}
