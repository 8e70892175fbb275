package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/pasal-api/internal/model"
)

// ProductRepo encapsulates the queries on the `products` table.  Writes are
// owner-scoped through a join on stores.owner_id.
type ProductRepo struct{ db *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productSelect = `SELECT p.id, p.store_id, p.name, p.category, p.description, p.price,
	p.created_at, p.updated_at, s.id, s.name, s.subdomain
	FROM products p JOIN stores s ON s.id = p.store_id`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var (
		p    model.Product
		ref  model.StoreRef
		desc sql.NullString
	)
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Category, &desc, &p.Price,
		&p.CreatedAt, &p.UpdatedAt, &ref.ID, &ref.Name, &ref.Subdomain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	p.Store = &ref
	return &p, nil
}

func (r *ProductRepo) list(ctx context.Context, q string, args ...any) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertForOwner inserts p only when p.StoreID is owned by ownerID.  The
// ownership check and the insert are one statement; a miss is ErrNotFound.
func (r *ProductRepo) InsertForOwner(ctx context.Context, ownerID string, p *model.Product) error {
	const q = `INSERT INTO products (id, store_id, name, category, description, price)
	           SELECT ?, s.id, ?, ?, ?, ? FROM stores s WHERE s.id = ? AND s.owner_id = ?`
	res, err := r.db.ExecContext(ctx, q, p.ID, p.Name, p.Category, p.Description, p.Price, p.StoreID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	got, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *got
	return nil
}

// ListByStore returns the products of one store, newest first.
func (r *ProductRepo) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	return r.list(ctx, productSelect+" WHERE p.store_id = ? ORDER BY p.created_at DESC, p.id", storeID)
}

// ListAll returns every product on the platform.
func (r *ProductRepo) ListAll(ctx context.Context) ([]*model.Product, error) {
	return r.list(ctx, productSelect+" ORDER BY p.created_at DESC, p.id")
}

// ListByOwner returns the products across all stores of ownerID.
func (r *ProductRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Product, error) {
	return r.list(ctx, productSelect+" WHERE s.owner_id = ? ORDER BY p.created_at DESC, p.id", ownerID)
}

// GetByID returns one product with its store reference.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = ? LIMIT 1", id))
}

// UpdateForOwner applies the non-nil fields of patch to a product whose
// store belongs to ownerID.
func (r *ProductRepo) UpdateForOwner(ctx context.Context, id, ownerID string, patch model.ProductPatch) (*model.Product, error) {
	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets, args = append(sets, "p.name = ?"), append(args, *patch.Name)
	}
	if patch.Category != nil {
		sets, args = append(sets, "p.category = ?"), append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets, args = append(sets, "p.description = ?"), append(args, *patch.Description)
	}
	if patch.Price != nil {
		sets, args = append(sets, "p.price = ?"), append(args, *patch.Price)
	}
	if len(sets) > 0 {
		q := "UPDATE products p JOIN stores s ON s.id = p.store_id SET " + strings.Join(sets, ", ") +
			", p.updated_at = CURRENT_TIMESTAMP WHERE p.id = ? AND s.owner_id = ?"
		if _, err := r.db.ExecContext(ctx, q, append(args, id, ownerID)...); err != nil {
			return nil, err
		}
	}
	return scanProduct(r.db.QueryRowContext(ctx,
		productSelect+" WHERE p.id = ? AND s.owner_id = ? LIMIT 1", id, ownerID))
}

// DeleteForOwner removes a product whose store belongs to ownerID.
func (r *ProductRepo) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE p FROM products p JOIN stores s ON s.id = p.store_id
		 WHERE p.id = ? AND s.owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
