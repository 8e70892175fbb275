package model

import (
	"strings"
	"time"
)

// Role is the authorization role stored on a user and consulted by the
// guard chain.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleManager  Role = "MANAGER"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleOwner, RoleManager, RoleCustomer:
		return r, true
	}
	return "", false
}

// Provider records how an account authenticates.
type Provider string

const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
)

// User represents a row of the `users` table.
//
// Fields:
//
//	PasswordHash     – Argon2id PHC string; nil for external-provider accounts.
//	RefreshTokenHash – Argon2id hash of the single live refresh token; nil
//	                   means there is no active session.
type User struct {
	ID               string    // users.id (UUID)
	Email            string    // users.email, unique as stored
	Name             string    // users.name
	PasswordHash     *string   // users.password_hash (nullable)
	RefreshTokenHash *string   // users.refresh_token_hash (nullable)
	Role             Role      // users.role
	Provider         Provider  // users.provider
	CreatedAt        time.Time // users.created_at
	UpdatedAt        time.Time // users.updated_at
}

// HasSession reports whether a refresh token is currently live.
func (u *User) HasSession() bool { return u.RefreshTokenHash != nil }

// Profile is the public projection of a user.  It never carries hashes.
type Profile struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     Role     `json:"role"`
	Provider Provider `json:"provider"`
}

// Profile projects u to its public fields.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Provider: u.Provider}
}

// Identity is the authenticated caller attached to a request by the guard
// chain.
type Identity struct {
	UserID string
	Role   Role
}
