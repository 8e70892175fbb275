package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/pasal-api/internal/model"
)

// StoreRepo encapsulates the queries on the `stores` table.  Every
// owner-scoped method folds the owner into the WHERE clause so a store
// owned by someone else is indistinguishable from a missing one.
type StoreRepo struct{ db *sql.DB }

func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

const storeColumns = "s.id, s.owner_id, s.subdomain, s.name, s.description, s.logo, s.is_active, s.created_at, s.updated_at"

func scanStore(row interface{ Scan(...any) error }, extra ...any) (*model.Store, error) {
	var (
		s          model.Store
		desc, logo sql.NullString
	)
	dest := append([]any{&s.ID, &s.OwnerID, &s.Subdomain, &s.Name, &desc, &logo, &s.IsActive, &s.CreatedAt, &s.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if desc.Valid {
		s.Description = &desc.String
	}
	if logo.Valid {
		s.Logo = &logo.String
	}
	return &s, nil
}

// GetBySubdomain returns the store registered under subdomain, active or not.
func (r *StoreRepo) GetBySubdomain(ctx context.Context, subdomain string) (*model.Store, error) {
	return scanStore(r.db.QueryRowContext(ctx,
		"SELECT "+storeColumns+" FROM stores s WHERE s.subdomain = ? LIMIT 1", subdomain))
}

// CountBySubdomain is the availability fast path; the unique index on
// stores.subdomain remains the real guard.
func (r *StoreRepo) CountBySubdomain(ctx context.Context, subdomain string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stores WHERE subdomain = ?", subdomain).Scan(&n)
	return n, err
}

// Insert creates the store.  s.ID must already be set.  A unique index
// violation on subdomain is returned as ErrConflict.
func (r *StoreRepo) Insert(ctx context.Context, s *model.Store) error {
	const q = `INSERT INTO stores (id, owner_id, subdomain, name, description, logo, is_active)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.OwnerID, s.Subdomain, s.Name, s.Description, s.Logo, s.IsActive); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return r.db.QueryRowContext(ctx, "SELECT created_at, updated_at FROM stores WHERE id = ?", s.ID).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByIDForOwner returns the store with its product count, or ErrNotFound
// when id does not exist under ownerID.
func (r *StoreRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*model.Store, error) {
	const q = "SELECT " + storeColumns + `, (SELECT COUNT(*) FROM products p WHERE p.store_id = s.id)
	           FROM stores s WHERE s.id = ? AND s.owner_id = ? LIMIT 1`
	var count int
	s, err := scanStore(r.db.QueryRowContext(ctx, q, id, ownerID), &count)
	if err != nil {
		return nil, err
	}
	s.ProductCount = &count
	return s, nil
}

// ListByOwner returns the owner's stores, newest first, with product counts.
func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error) {
	const q = "SELECT " + storeColumns + `, COUNT(p.id)
	           FROM stores s LEFT JOIN products p ON p.store_id = s.id
	           WHERE s.owner_id = ?
	           GROUP BY s.id
	           ORDER BY s.created_at DESC, s.id`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Store{}
	for rows.Next() {
		var count int
		s, err := scanStore(rows, &count)
		if err != nil {
			return nil, err
		}
		s.ProductCount = &count
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateForOwner applies the non-nil fields of p.  Subdomain is never
// written.  It returns the updated row, or ErrNotFound.
func (r *StoreRepo) UpdateForOwner(ctx context.Context, id, ownerID string, p model.StorePatch) (*model.Store, error) {
	var (
		sets []string
		args []any
	)
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *p.Description)
	}
	if p.Logo != nil {
		sets, args = append(sets, "logo = ?"), append(args, *p.Logo)
	}
	if p.IsActive != nil {
		sets, args = append(sets, "is_active = ?"), append(args, *p.IsActive)
	}
	if len(sets) > 0 {
		q := "UPDATE stores SET " + strings.Join(sets, ", ") +
			", updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ?"
		if _, err := r.db.ExecContext(ctx, q, append(args, id, ownerID)...); err != nil {
			return nil, err
		}
	}
	// RowsAffected is 0 for a no-op update too, so existence is decided by
	// the read-back under the same owner predicate.
	return r.GetByIDForOwner(ctx, id, ownerID)
}

// DeleteForOwner removes the store and its products in one transaction.
func (r *StoreRepo) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE p FROM products p JOIN stores s ON s.id = p.store_id
		 WHERE s.id = ? AND s.owner_id = ?`, id, ownerID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM stores WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
