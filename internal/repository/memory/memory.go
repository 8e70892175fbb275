// Package memory provides in-process implementations of the user, store and
// product repositories.  They back the "memory" storage mode and the tests.
// Each repository guards its maps with one mutex and never holds it across
// anything but map access, so the uniqueness checks below are atomic with
// the inserts they protect.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/repository"
)

// DB is the shared state of the three repositories.  Products reference
// stores and stores reference users, so they live behind one lock.
type DB struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	byEmail  map[string]string
	stores   map[string]*model.Store
	bySub    map[string]string
	products map[string]*model.Product
	now      func() time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:    map[string]*model.User{},
		byEmail:  map[string]string{},
		stores:   map[string]*model.Store{},
		bySub:    map[string]string{},
		products: map[string]*model.Product{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the credential store view of db.
func (db *DB) Users() *Users { return &Users{db: db} }

// Stores returns the store storage view of db.
func (db *DB) Stores() *Stores { return &Stores{db: db} }

// Products returns the product storage view of db.
func (db *DB) Products() *Products { return &Products{db: db} }

func ctxErr(ctx context.Context) error { return ctx.Err() }

// ----- users -----

// Users implements the credential store adapter.
type Users struct{ db *DB }

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.PasswordHash != nil {
		v := *u.PasswordHash
		c.PasswordHash = &v
	}
	if u.RefreshTokenHash != nil {
		v := *u.RefreshTokenHash
		c.RefreshTokenHash = &v
	}
	return &c
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	id, ok := r.db.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.db.users[id]), nil
}

func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Users) CreateLocal(ctx context.Context, u *model.User) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, dup := r.db.byEmail[u.Email]; dup {
		return repository.ErrConflict
	}
	now := r.db.now()
	u.Provider = model.ProviderLocal
	u.CreatedAt, u.UpdatedAt = now, now
	r.db.users[u.ID] = cloneUser(u)
	r.db.byEmail[u.Email] = u.ID
	return nil
}

// Import stores u exactly as given, provider included.  It stands in for
// accounts created by an external identity provider.
func (r *Users) Import(u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, dup := r.db.byEmail[u.Email]; dup {
		return repository.ErrConflict
	}
	r.db.users[u.ID] = cloneUser(u)
	r.db.byEmail[u.Email] = u.ID
	return nil
}

func (r *Users) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return nil
	}
	if hash == nil {
		u.RefreshTokenHash = nil
	} else {
		v := *hash
		u.RefreshTokenHash = &v
	}
	u.UpdatedAt = r.db.now()
	return nil
}

// ----- stores -----

// Stores implements the store storage adapter.
type Stores struct{ db *DB }

func (db *DB) productCount(storeID string) int {
	n := 0
	for _, p := range db.products {
		if p.StoreID == storeID {
			n++
		}
	}
	return n
}

func cloneStore(s *model.Store) *model.Store {
	c := *s
	c.ProductCount = nil
	return &c
}

func (r *Stores) GetBySubdomain(ctx context.Context, subdomain string) (*model.Store, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	id, ok := r.db.bySub[subdomain]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneStore(r.db.stores[id]), nil
}

func (r *Stores) CountBySubdomain(ctx context.Context, subdomain string) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if _, ok := r.db.bySub[subdomain]; ok {
		return 1, nil
	}
	return 0, nil
}

// Insert enforces subdomain uniqueness under the write lock, which is the
// in-memory equivalent of the unique index on stores.subdomain.
func (r *Stores) Insert(ctx context.Context, s *model.Store) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, dup := r.db.bySub[s.Subdomain]; dup {
		return repository.ErrConflict
	}
	now := r.db.now()
	s.CreatedAt, s.UpdatedAt = now, now
	r.db.stores[s.ID] = cloneStore(s)
	r.db.bySub[s.Subdomain] = s.ID
	return nil
}

func (r *Stores) ownedLocked(id, ownerID string) (*model.Store, bool) {
	s, ok := r.db.stores[id]
	if !ok || s.OwnerID != ownerID {
		return nil, false
	}
	return s, true
}

func (r *Stores) GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Store, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.ownedLocked(id, ownerID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneStore(s)
	n := r.db.productCount(id)
	out.ProductCount = &n
	return out, nil
}

func (r *Stores) ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*model.Store{}
	for _, s := range r.db.stores {
		if s.OwnerID != ownerID {
			continue
		}
		c := cloneStore(s)
		n := r.db.productCount(s.ID)
		c.ProductCount = &n
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Stores) UpdateForOwner(ctx context.Context, id, ownerID string, p model.StorePatch) (*model.Store, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.ownedLocked(id, ownerID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		v := *p.Description
		s.Description = &v
	}
	if p.Logo != nil {
		v := *p.Logo
		s.Logo = &v
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if !p.Empty() {
		s.UpdatedAt = r.db.now()
	}
	out := cloneStore(s)
	n := r.db.productCount(id)
	out.ProductCount = &n
	return out, nil
}

func (r *Stores) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.ownedLocked(id, ownerID)
	if !ok {
		return repository.ErrNotFound
	}
	for pid, p := range r.db.products {
		if p.StoreID == id {
			delete(r.db.products, pid)
		}
	}
	delete(r.db.bySub, s.Subdomain)
	delete(r.db.stores, id)
	return nil
}

// ----- products -----

// Products implements the product storage adapter.
type Products struct{ db *DB }

func (db *DB) projectLocked(p *model.Product) *model.Product {
	c := *p
	if s, ok := db.stores[p.StoreID]; ok {
		c.Store = &model.StoreRef{ID: s.ID, Name: s.Name, Subdomain: s.Subdomain}
	}
	return &c
}

func (r *Products) InsertForOwner(ctx context.Context, ownerID string, p *model.Product) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.stores[p.StoreID]
	if !ok || s.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	now := r.db.now()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.Store = nil
	r.db.products[p.ID] = &stored
	*p = *r.db.projectLocked(&stored)
	return nil
}

func (r *Products) filter(ctx context.Context, keep func(*model.Product) bool) ([]*model.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*model.Product{}
	for _, p := range r.db.products {
		if keep(p) {
			out = append(out, r.db.projectLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Products) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	return r.filter(ctx, func(p *model.Product) bool { return p.StoreID == storeID })
}

func (r *Products) ListAll(ctx context.Context) ([]*model.Product, error) {
	return r.filter(ctx, func(*model.Product) bool { return true })
}

func (r *Products) ListByOwner(ctx context.Context, ownerID string) ([]*model.Product, error) {
	// Called with the read lock held by filter.
	return r.filter(ctx, func(p *model.Product) bool {
		s, ok := r.db.stores[p.StoreID]
		return ok && s.OwnerID == ownerID
	})
}

func (r *Products) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.db.projectLocked(p), nil
}

func (r *Products) ownedLocked(id, ownerID string) (*model.Product, bool) {
	p, ok := r.db.products[id]
	if !ok {
		return nil, false
	}
	s, ok := r.db.stores[p.StoreID]
	if !ok || s.OwnerID != ownerID {
		return nil, false
	}
	return p, true
}

func (r *Products) UpdateForOwner(ctx context.Context, id, ownerID string, patch model.ProductPatch) (*model.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.ownedLocked(id, ownerID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Description != nil {
		v := *patch.Description
		p.Description = &v
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if !patch.Empty() {
		p.UpdatedAt = r.db.now()
	}
	return r.db.projectLocked(p), nil
}

func (r *Products) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.ownedLocked(id, ownerID); !ok {
		return repository.ErrNotFound
	}
	delete(r.db.products, id)
	return nil
}
