package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/pasal-api/internal/model"
)

// UserRepo reads and writes the `users` table.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, email, name, password_hash, refresh_token_hash, role, provider, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u        model.User
		pwd, rth sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &pwd, &rth, &u.Role, &u.Provider, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if pwd.Valid {
		u.PasswordHash = &pwd.String
	}
	if rth.Valid {
		u.RefreshTokenHash = &rth.String
	}
	return &u, nil
}

// GetByEmail fetches a user by email exactly as stored.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// CreateLocal inserts a LOCAL user.  u.ID must already be set; the
// timestamps are read back from the row.  A duplicate email surfaces as
// ErrConflict.
func (r *UserRepo) CreateLocal(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (id, email, name, password_hash, role, provider)
	           VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, model.ProviderLocal); err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	u.Provider = model.ProviderLocal
	return r.db.QueryRowContext(ctx, "SELECT created_at, updated_at FROM users WHERE id = ?", u.ID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
}

// SetRefreshTokenHash overwrites the stored refresh token hash; nil clears
// it.  Updating a missing user is not an error.
func (r *UserRepo) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		hash, userID)
	return err
}
