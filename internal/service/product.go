package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/cache"
	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/repository"
)

// ProductStorage is the product storage adapter.  Owner-scoped methods join
// the owning store and report a foreign product as repository.ErrNotFound.
type ProductStorage interface {
	InsertForOwner(ctx context.Context, ownerID string, p *model.Product) error
	ListByStore(ctx context.Context, storeID string) ([]*model.Product, error)
	ListAll(ctx context.Context) ([]*model.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Product, error)
	GetByID(ctx context.Context, id string) (*model.Product, error)
	UpdateForOwner(ctx context.Context, id, ownerID string, patch model.ProductPatch) (*model.Product, error)
	DeleteForOwner(ctx context.Context, id, ownerID string) error
}

// CreateProductInput is the product creation payload.  StoreID comes from
// the path on store-scoped routes and from the body on the legacy route.
type CreateProductInput struct {
	StoreID     string   `json:"storeId"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

// ProductService is the ownership-checked product CRUD.  Every write bumps
// the owning store's cache version so cached storefront listings drop it.
type ProductService struct {
	products ProductStorage
	versions cache.Versions
	log      *zap.Logger
}

// NewProductService wires the service.  versions should be the one handed
// to the StoreRegistry; nil falls back to a process-local set.
func NewProductService(products ProductStorage, versions cache.Versions, log *zap.Logger) *ProductService {
	if versions == nil {
		versions = cache.NewLocal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{products: products, versions: versions, log: log}
}

func (s *ProductService) touch(ctx context.Context, p *model.Product) {
	if p != nil && p.Store != nil {
		bumpVersion(ctx, s.versions, s.log, p.Store.Subdomain)
	}
}

// Create adds a product to a store owned by ownerID.
func (s *ProductService) Create(ctx context.Context, ownerID string, in CreateProductInput) (*model.Product, error) {
	in.StoreID = strings.TrimSpace(in.StoreID)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.StoreID == "":
		return nil, apperr.BadRequest("storeId is required")
	case in.Name == "":
		return nil, apperr.BadRequest("name is required")
	case in.Category == "":
		return nil, apperr.BadRequest("category is required")
	}
	price := 0.0
	if in.Price != nil {
		price = *in.Price
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	p := &model.Product{
		ID:          uuid.NewString(),
		StoreID:     in.StoreID,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Price:       price,
	}
	if err := s.products.InsertForOwner(ctx, ownerID, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("store not found")
		}
		return nil, storageErr(err)
	}
	s.touch(ctx, p)
	return p, nil
}

// ListByStore returns a store's products.  It is public.
func (s *ProductService) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	ps, err := s.products.ListByStore(ctx, storeID)
	return ps, storageErr(err)
}

// ListAll returns every product.  It backs the legacy listing route.
func (s *ProductService) ListAll(ctx context.Context) ([]*model.Product, error) {
	ps, err := s.products.ListAll(ctx)
	return ps, storageErr(err)
}

// ListMine returns the products across all stores owned by ownerID.
func (s *ProductService) ListMine(ctx context.Context, ownerID string) ([]*model.Product, error) {
	ps, err := s.products.ListByOwner(ctx, ownerID)
	return ps, storageErr(err)
}

// Get returns one product.  It is public.
func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, productErr(err)
	}
	return p, nil
}

// Update applies patch to a product in a store owned by ownerID.
func (s *ProductService) Update(ctx context.Context, ownerID, id string, patch model.ProductPatch) (*model.Product, error) {
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		if n == "" {
			return nil, apperr.BadRequest("name must not be empty")
		}
		patch.Name = &n
	}
	if patch.Category != nil {
		c := strings.TrimSpace(*patch.Category)
		if c == "" {
			return nil, apperr.BadRequest("category must not be empty")
		}
		patch.Category = &c
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
	}
	p, err := s.products.UpdateForOwner(ctx, id, ownerID, patch)
	if err != nil {
		return nil, productErr(err)
	}
	s.touch(ctx, p)
	return p, nil
}

// Delete removes a product in a store owned by ownerID.  The product is
// read first only to learn which store's cache to drop.
func (s *ProductService) Delete(ctx context.Context, ownerID, id string) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return productErr(err)
	}
	if err := s.products.DeleteForOwner(ctx, id, ownerID); err != nil {
		return productErr(err)
	}
	s.touch(ctx, p)
	return nil
}

func productErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("product not found")
	}
	return storageErr(err)
}

func validatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return apperr.BadRequest("price must be a non-negative number")
	}
	return nil
}
