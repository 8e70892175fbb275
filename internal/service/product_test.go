package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/cache"
	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/repository/memory"
)

func newProductFixture(t *testing.T) (*ProductService, *StoreRegistry, string) {
	t.Helper()
	db := memory.New()
	reg := NewStoreRegistry(db.Stores(), db.Products(), StoreRegistryOptions{})
	s, err := reg.CreateStore(context.Background(), "owner", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)
	return NewProductService(db.Products(), nil, nil), reg, s.ID
}

func floatPtr(f float64) *float64 { return &f }

func TestProductCreate(t *testing.T) {
	svc, _, storeID := newProductFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "owner", CreateProductInput{StoreID: storeID, Name: "Mug", Category: "Kitchen"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Price)
	require.NotNil(t, p.Store)
	assert.Equal(t, "acme", p.Store.Subdomain)

	_, err = svc.Create(ctx, "intruder", CreateProductInput{StoreID: storeID, Name: "Mug", Category: "Kitchen"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Create(ctx, "owner", CreateProductInput{StoreID: storeID, Name: "Mug", Category: "Kitchen", Price: floatPtr(-1)})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = svc.Create(ctx, "owner", CreateProductInput{StoreID: storeID, Category: "Kitchen"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestProductOwnership(t *testing.T) {
	svc, _, storeID := newProductFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "owner", CreateProductInput{StoreID: storeID, Name: "Mug", Category: "Kitchen", Price: floatPtr(9.5)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "intruder", p.ID, model.ProductPatch{Price: floatPtr(1)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.Delete(ctx, "intruder", p.ID)))

	up, err := svc.Update(ctx, "owner", p.ID, model.ProductPatch{Price: floatPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12.0, up.Price)
	assert.Equal(t, "Mug", up.Name)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Price)

	mine, err := svc.ListMine(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.ListMine(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	require.NoError(t, svc.Delete(ctx, "owner", p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestProductLists(t *testing.T) {
	svc, reg, storeID := newProductFixture(t)
	ctx := context.Background()

	other, err := reg.CreateStore(ctx, "other", CreateStoreInput{Subdomain: "other", Name: "Other"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "owner", CreateProductInput{StoreID: storeID, Name: "A", Category: "c"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "other", CreateProductInput{StoreID: other.ID, Name: "B", Category: "c"})
	require.NoError(t, err)

	byStore, err := svc.ListByStore(ctx, storeID)
	require.NoError(t, err)
	assert.Len(t, byStore, 1)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProductWritesBumpStoreVersion(t *testing.T) {
	db := memory.New()
	versions := cache.NewLocal()
	reg := NewStoreRegistry(db.Stores(), db.Products(), StoreRegistryOptions{Versions: versions})
	svc := NewProductService(db.Products(), versions, nil)
	ctx := context.Background()

	s, err := reg.CreateStore(ctx, "owner", CreateStoreInput{Subdomain: "acme", Name: "Acme"})
	require.NoError(t, err)

	version := func() string {
		v, err := versions.Version(ctx, "acme")
		require.NoError(t, err)
		return v
	}

	v0 := version()
	p, err := svc.Create(ctx, "owner", CreateProductInput{StoreID: s.ID, Name: "Mug", Category: "Kitchen"})
	require.NoError(t, err)
	v1 := version()
	assert.NotEqual(t, v0, v1)

	_, err = svc.Update(ctx, "owner", p.ID, model.ProductPatch{Price: floatPtr(3)})
	require.NoError(t, err)
	v2 := version()
	assert.NotEqual(t, v1, v2)

	// A rejected write leaves the version alone.
	require.Error(t, svc.Delete(ctx, "intruder", p.ID))
	assert.Equal(t, v2, version())

	require.NoError(t, svc.Delete(ctx, "owner", p.ID))
	assert.NotEqual(t, v2, version())
}
