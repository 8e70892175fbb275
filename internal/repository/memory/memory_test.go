package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/repository"
)

func TestStoreInsertUniqueSubdomain(t *testing.T) {
	db := New()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.Stores().Insert(ctx, &model.Store{ID: fmt.Sprintf("s%d", i), OwnerID: "u", Subdomain: "acme", Name: "Acme", IsActive: true})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case err == repository.ErrConflict:
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	n, err := db.Stores().CountBySubdomain(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreOwnerScoping(t *testing.T) {
	db := New()
	ctx := context.Background()
	stores := db.Stores()
	require.NoError(t, stores.Insert(ctx, &model.Store{ID: "s1", OwnerID: "a", Subdomain: "one", Name: "One"}))

	_, err := stores.GetByIDForOwner(ctx, "s1", "b")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = stores.UpdateForOwner(ctx, "s1", "b", model.StorePatch{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, stores.DeleteForOwner(ctx, "s1", "b"), repository.ErrNotFound)

	s, err := stores.GetByIDForOwner(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, "one", s.Subdomain)

	list, err := stores.ListByOwner(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProductsFollowStoreOwnership(t *testing.T) {
	db := New()
	ctx := context.Background()
	require.NoError(t, db.Stores().Insert(ctx, &model.Store{ID: "s1", OwnerID: "a", Subdomain: "one", Name: "One"}))

	products := db.Products()
	assert.ErrorIs(t, products.InsertForOwner(ctx, "b", &model.Product{ID: "p1", StoreID: "s1", Name: "X"}), repository.ErrNotFound)

	p := &model.Product{ID: "p1", StoreID: "s1", Name: "X"}
	require.NoError(t, products.InsertForOwner(ctx, "a", p))
	require.NotNil(t, p.Store)
	assert.Equal(t, "one", p.Store.Subdomain)

	mine, err := products.ListByOwner(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	s, err := db.Stores().GetByIDForOwner(ctx, "s1", "a")
	require.NoError(t, err)
	require.NotNil(t, s.ProductCount)
	assert.Equal(t, 1, *s.ProductCount)

	require.NoError(t, db.Stores().DeleteForOwner(ctx, "s1", "a"))
	_, err = products.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers(t *testing.T) {
	db := New()
	ctx := context.Background()
	users := db.Users()
	hash := "h"

	require.NoError(t, users.CreateLocal(ctx, &model.User{ID: "u1", Email: "a@x.com", PasswordHash: &hash, Provider: model.ProviderGoogle}))
	assert.ErrorIs(t, users.CreateLocal(ctx, &model.User{ID: "u2", Email: "a@x.com"}), repository.ErrConflict)

	u, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderLocal, u.Provider)

	rt := "r1"
	require.NoError(t, users.SetRefreshTokenHash(ctx, "u1", &rt))
	rt = "mutated"
	u, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.RefreshTokenHash)
	assert.Equal(t, "r1", *u.RefreshTokenHash)

	require.NoError(t, users.SetRefreshTokenHash(ctx, "u1", nil))
	require.NoError(t, users.SetRefreshTokenHash(ctx, "missing", nil))
	u, err = users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u.RefreshTokenHash)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = users.GetByID(cctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
