package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/cache"
	"github.com/iliyamo/pasal-api/internal/logging"
	"github.com/iliyamo/pasal-api/internal/metrics"
	"github.com/iliyamo/pasal-api/internal/model"
	q "github.com/iliyamo/pasal-api/internal/queue"
	"github.com/iliyamo/pasal-api/internal/repository"
)

// ReservedSubdomains can never be registered as a store.
var ReservedSubdomains = []string{
	"www", "api", "admin", "app", "mail", "ftp", "cdn", "static",
	"dashboard", "login", "signup", "register", "account", "settings",
	"help", "support", "blog", "docs", "status",
}

var subdomainRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61}[a-z0-9])?$`)

// StoreStorage is the tenant storage adapter.  Insert must report a
// duplicate subdomain as repository.ErrConflict; the *ForOwner methods
// must fold the owner into the lookup so foreign rows read as missing.
type StoreStorage interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*model.Store, error)
	CountBySubdomain(ctx context.Context, subdomain string) (int, error)
	Insert(ctx context.Context, s *model.Store) error
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error)
	UpdateForOwner(ctx context.Context, id, ownerID string, p model.StorePatch) (*model.Store, error)
	DeleteForOwner(ctx context.Context, id, ownerID string) error
}

// CreateStoreInput is the store creation payload.
type CreateStoreInput struct {
	Subdomain   string  `json:"subdomain"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Logo        *string `json:"logo"`
}

// StoreRegistry resolves, validates and creates stores.
type StoreRegistry struct {
	stores   StoreStorage
	products ProductStorage
	reserved map[string]struct{}
	cache    *gocache.Cache // nil when disabled; holds cachedStore keyed by subdomain
	versions cache.Versions
	events   EventPublisher
	log      *zap.Logger
}

// cachedStore is a lookup cache entry, valid only while the tenant is still
// at version.
type cachedStore struct {
	store   model.Store
	version string
}

// StoreRegistryOptions tunes a StoreRegistry.  A zero CacheTTL disables the
// in-process lookup cache.  Versions is bumped on every store write; it
// defaults to cache.NewLocal, which is only correct for one instance.
type StoreRegistryOptions struct {
	CacheTTL time.Duration
	Versions cache.Versions
	Events   EventPublisher
	Logger   *zap.Logger
}

// NewStoreRegistry wires the registry.
func NewStoreRegistry(stores StoreStorage, products ProductStorage, opts StoreRegistryOptions) *StoreRegistry {
	r := &StoreRegistry{
		stores:   stores,
		products: products,
		reserved: make(map[string]struct{}, len(ReservedSubdomains)),
		versions: opts.Versions,
		events:   opts.Events,
		log:      opts.Logger,
	}
	for _, s := range ReservedSubdomains {
		r.reserved[s] = struct{}{}
	}
	if r.events == nil {
		r.events = NoopPublisher{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.versions == nil {
		r.versions = cache.NewLocal()
	}
	if opts.CacheTTL > 0 {
		r.cache = gocache.New(opts.CacheTTL, time.Minute)
	}
	return r
}

func (r *StoreRegistry) isReserved(sub string) bool {
	_, ok := r.reserved[sub]
	return ok
}

// IsSubdomainAvailable is false when candidate is reserved or taken.  The
// answer is advisory: CreateStore re-checks atomically.
func (r *StoreRegistry) IsSubdomainAvailable(ctx context.Context, candidate string) (bool, error) {
	sub := strings.ToLower(strings.TrimSpace(candidate))
	if sub == "" || r.isReserved(sub) {
		return false, nil
	}
	n, err := r.stores.CountBySubdomain(ctx, sub)
	if err != nil {
		return false, storageErr(err)
	}
	return n == 0, nil
}

// CreateStore registers a store owned by ownerID.  The count pre-check only
// gives a friendly early answer; the storage unique constraint decides two
// racing attempts, and the loser gets Conflict.
func (r *StoreRegistry) CreateStore(ctx context.Context, ownerID string, in CreateStoreInput) (*model.Store, error) {
	sub := strings.ToLower(strings.TrimSpace(in.Subdomain))
	name := strings.TrimSpace(in.Name)
	if err := validateStoreFields(sub, name, in.Description, in.Logo); err != nil {
		return nil, err
	}
	if r.isReserved(sub) {
		metrics.StoreCreate("reserved")
		return nil, apperr.Conflict(fmt.Sprintf("subdomain %q is already taken or reserved", sub))
	}
	if n, err := r.stores.CountBySubdomain(ctx, sub); err != nil {
		return nil, storageErr(err)
	} else if n > 0 {
		metrics.StoreCreate("conflict")
		return nil, apperr.Conflict(fmt.Sprintf("subdomain %q is already taken or reserved", sub))
	}

	s := &model.Store{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Subdomain:   sub,
		Name:        name,
		Description: in.Description,
		Logo:        in.Logo,
		IsActive:    true,
	}
	if err := r.stores.Insert(ctx, s); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.StoreCreate("conflict")
			return nil, apperr.Conflict(fmt.Sprintf("subdomain %q is already taken or reserved", sub))
		}
		return nil, storageErr(err)
	}
	metrics.StoreCreate("ok")
	logging.From(ctx, r.log).Info("store created",
		zap.String("store_id", s.ID), zap.String("subdomain", s.Subdomain), zap.String("owner_id", ownerID))
	r.publish(ctx, q.StoreCreated, s)
	return s, nil
}

// ResolveActiveStore returns the store at subdomain.  A missing store is
// NotFound and an inactive one Forbidden.
func (r *StoreRegistry) ResolveActiveStore(ctx context.Context, subdomain string) (*model.Store, error) {
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	if sub == "" {
		return nil, apperr.BadRequest("no store specified")
	}
	s, err := r.lookup(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("store %q not found", sub))
		}
		return nil, storageErr(err)
	}
	if !s.IsActive {
		return nil, apperr.Forbidden("this store is currently inactive")
	}
	return s, nil
}

// lookup reads through the lookup cache.  The version is read before the
// store, so an entry filled from a read that raced a write is stored under
// the pre-write version and never served.  When the version cannot be read
// the cache is bypassed.
func (r *StoreRegistry) lookup(ctx context.Context, sub string) (*model.Store, error) {
	var version string
	useCache := false
	if r.cache != nil {
		v, err := r.versions.Version(ctx, sub)
		if err == nil {
			version, useCache = v, true
		} else {
			logging.From(ctx, r.log).Warn("tenant version unavailable, bypassing cache", zap.Error(err))
		}
	}
	if useCache {
		if v, ok := r.cache.Get(sub); ok {
			if e := v.(cachedStore); e.version == version {
				metrics.TenantCache("hit")
				s := e.store
				return &s, nil
			}
			metrics.TenantCache("stale")
		} else {
			metrics.TenantCache("miss")
		}
	}
	s, err := r.stores.GetBySubdomain(ctx, sub)
	if err != nil {
		return nil, err
	}
	if useCache {
		r.cache.SetDefault(sub, cachedStore{store: *s, version: version})
	}
	return s, nil
}

// StoreProducts lists the products of the active store at subdomain.
func (r *StoreRegistry) StoreProducts(ctx context.Context, subdomain string) ([]*model.Product, error) {
	s, err := r.ResolveActiveStore(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	ps, err := r.products.ListByStore(ctx, s.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	return ps, nil
}

// ListOwned returns the stores of ownerID.
func (r *StoreRegistry) ListOwned(ctx context.Context, ownerID string) ([]*model.Store, error) {
	ss, err := r.stores.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storageErr(err)
	}
	return ss, nil
}

// GetOwned returns store id if ownerID owns it, NotFound otherwise.
func (r *StoreRegistry) GetOwned(ctx context.Context, ownerID, id string) (*model.Store, error) {
	s, err := r.stores.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, ownedErr(err)
	}
	return s, nil
}

// UpdateOwned applies p to a store owned by ownerID.  The subdomain cannot
// be changed.
func (r *StoreRegistry) UpdateOwned(ctx context.Context, ownerID, id string, p model.StorePatch) (*model.Store, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		p.Name = &n
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	s, err := r.stores.UpdateForOwner(ctx, id, ownerID, p)
	if err != nil {
		return nil, ownedErr(err)
	}
	if !p.Empty() {
		r.invalidate(ctx, s.Subdomain)
		r.publish(ctx, q.StoreUpdated, s)
	}
	return s, nil
}

// DeleteOwned removes a store owned by ownerID together with its products.
func (r *StoreRegistry) DeleteOwned(ctx context.Context, ownerID, id string) error {
	s, err := r.stores.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return ownedErr(err)
	}
	if err := r.stores.DeleteForOwner(ctx, id, ownerID); err != nil {
		return ownedErr(err)
	}
	r.invalidate(ctx, s.Subdomain)
	logging.From(ctx, r.log).Info("store deleted", zap.String("store_id", id), zap.String("owner_id", ownerID))
	r.publish(ctx, q.StoreDeleted, s)
	return nil
}

// invalidate drops everything cached for sub, here and on every instance
// sharing the versions backend.
func (r *StoreRegistry) invalidate(ctx context.Context, sub string) {
	if r.cache != nil {
		r.cache.Delete(sub)
	}
	bumpVersion(ctx, r.versions, r.log, sub)
}

func (r *StoreRegistry) publish(ctx context.Context, typ string, s *model.Store) {
	ev := q.NewEvent(typ, s.OwnerID)
	ev.StoreID = s.ID
	ev.Subdomain = s.Subdomain
	publishAsync(ctx, r.events, r.log, ev)
}

// ownedErr maps storage misses on owner-scoped reads to a NotFound that
// does not say whether the row exists for someone else.
func ownedErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("store not found")
	}
	return storageErr(err)
}

func validateStoreFields(sub, name string, desc, logo *string) error {
	if len(sub) < 3 || len(sub) > 63 || !subdomainRE.MatchString(sub) {
		return apperr.BadRequest("subdomain must be 3-63 lowercase letters, digits or hyphens, starting and ending with a letter or digit")
	}
	if l := len([]rune(name)); l < 2 || l > 100 {
		return apperr.BadRequest("name must be between 2 and 100 characters")
	}
	return validateOptional(desc, logo)
}

func validatePatch(p model.StorePatch) error {
	if p.Name != nil {
		if l := len([]rune(*p.Name)); l < 2 || l > 100 {
			return apperr.BadRequest("name must be between 2 and 100 characters")
		}
	}
	return validateOptional(p.Description, p.Logo)
}

func validateOptional(desc, logo *string) error {
	if desc != nil && len([]rune(*desc)) > 500 {
		return apperr.BadRequest("description must be at most 500 characters")
	}
	if logo != nil && *logo != "" {
		if u, err := url.Parse(*logo); err != nil || u.Scheme == "" || u.Host == "" {
			return apperr.BadRequest("logo must be an absolute URL")
		}
	}
	return nil
}

// bumpVersion moves sub to a new cache version.  A failed bump leaves other
// instances serving the old version until their TTLs run out, so it is
// logged at error level.
func bumpVersion(ctx context.Context, v cache.Versions, log *zap.Logger, sub string) {
	if sub == "" {
		return
	}
	if err := v.Bump(context.WithoutCancel(ctx), sub); err != nil {
		logging.From(ctx, log).Error("tenant cache version bump failed",
			zap.String("subdomain", sub), zap.Error(err))
	}
}
