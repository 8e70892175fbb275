// Package service holds the session, store and product logic.  Services
// speak in model types and *apperr.Error; they know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/logging"
	"github.com/iliyamo/pasal-api/internal/metrics"
	"github.com/iliyamo/pasal-api/internal/model"
	q "github.com/iliyamo/pasal-api/internal/queue"
	"github.com/iliyamo/pasal-api/internal/repository"
	"github.com/iliyamo/pasal-api/internal/utils"
)

// UserStore is the credential store the session manager reads and writes.
// repository.UserRepo and memory.Users both satisfy it.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	CreateLocal(ctx context.Context, u *model.User) error
	SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error
}

// SecretHasher is the one-way hash used for passwords and refresh tokens.
type SecretHasher interface {
	Hash(ctx context.Context, secret string) (string, error)
	Verify(ctx context.Context, encoded, candidate string) (bool, error)
}

// TokenIssuer mints access/refresh pairs.
type TokenIssuer interface {
	IssuePair(ctx context.Context, subject string) (utils.Pair, error)
}

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Session is what login and refresh hand back to the transport.
type Session struct {
	User   model.Profile
	Tokens utils.Pair
}

// SessionManager drives login, refresh rotation and logout.  The only
// server-side trace of a refresh token is its hash on the user row, and at
// most one such hash exists per user.
type SessionManager struct {
	users  UserStore
	hasher SecretHasher
	tokens TokenIssuer
	events EventPublisher
	log    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewSessionManager wires the manager.  events and log may be nil.
func NewSessionManager(users UserStore, hasher SecretHasher, tokens TokenIssuer, events EventPublisher, log *zap.Logger) *SessionManager {
	if events == nil {
		events = NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{users: users, hasher: hasher, tokens: tokens, events: events, log: log}
}

// Register creates a LOCAL user and returns its profile.  A duplicate email
// is a Conflict whether it is seen by the pre-check or by the unique index.
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (model.Profile, error) {
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Profile{}, apperr.BadRequest("name is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.Profile{}, apperr.BadRequest("invalid email address")
	}
	if len(in.Password) < MinPasswordLen {
		return model.Profile{}, apperr.BadRequest("password must be at least 6 characters")
	}
	role := model.RoleOwner
	if strings.TrimSpace(in.Role) != "" {
		r, ok := model.ParseRole(in.Role)
		if !ok {
			return model.Profile{}, apperr.BadRequest("invalid role")
		}
		role = r
	}

	if _, err := m.users.GetByEmail(ctx, email); err == nil {
		metrics.AuthEvent("register", "conflict")
		return model.Profile{}, apperr.Conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Profile{}, storageErr(err)
	}

	hash, err := m.hasher.Hash(ctx, in.Password)
	if err != nil {
		return model.Profile{}, apperr.From(err)
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Role:         role,
		Provider:     model.ProviderLocal,
	}
	if err := m.users.CreateLocal(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.AuthEvent("register", "conflict")
			return model.Profile{}, apperr.Conflict("email already registered")
		}
		return model.Profile{}, storageErr(err)
	}

	metrics.AuthEvent("register", "ok")
	logging.From(ctx, m.log).Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	ev := q.NewEvent(q.UserRegistered, u.ID)
	ev.Email = u.Email
	publishAsync(ctx, m.events, m.log, ev)
	return u.Profile(), nil
}

// Login checks the password and starts a new session, replacing any
// previous one.  An unknown email and a wrong password are the same error.
func (m *SessionManager) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := m.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn the same hashing cost as a real mismatch.
			m.burnVerify(ctx, password)
			metrics.AuthEvent("login", "invalid_credentials")
			return Session{}, apperr.InvalidCredentials()
		}
		return Session{}, storageErr(err)
	}
	if u.PasswordHash == nil {
		metrics.AuthEvent("login", "external_provider")
		return Session{}, apperr.ExternalProviderOnly()
	}
	ok, err := m.hasher.Verify(ctx, *u.PasswordHash, password)
	if err != nil {
		return Session{}, apperr.From(err)
	}
	if !ok {
		metrics.AuthEvent("login", "invalid_credentials")
		return Session{}, apperr.InvalidCredentials()
	}

	pair, err := m.rotate(ctx, u.ID)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthEvent("login", "ok")
	logging.From(ctx, m.log).Info("login", zap.String("user_id", u.ID))
	return Session{User: u.Profile(), Tokens: pair}, nil
}

// Refresh exchanges the presented refresh token for a new pair.  userID
// must come from a refresh token whose signature was already verified.
// Only the most recently issued refresh token matches the stored hash, so a
// replayed older token fails here.
func (m *SessionManager) Refresh(ctx context.Context, userID, presented string) (Session, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.AuthEvent("refresh", "unauthorized")
			return Session{}, apperr.Unauthorized("session not found")
		}
		return Session{}, storageErr(err)
	}
	if !u.HasSession() {
		metrics.AuthEvent("refresh", "unauthorized")
		return Session{}, apperr.Unauthorized("session revoked")
	}
	ok, err := m.hasher.Verify(ctx, *u.RefreshTokenHash, presented)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindTransient {
			return Session{}, apperr.From(err)
		}
		// A stored hash we cannot parse is treated as no session.
		m.log.Error("stored refresh hash unreadable", zap.String("user_id", u.ID), zap.Error(err))
		return Session{}, apperr.Unauthorized("session revoked")
	}
	if !ok {
		metrics.AuthEvent("refresh", "stale")
		logging.From(ctx, m.log).Warn("stale refresh token presented", zap.String("user_id", u.ID))
		return Session{}, apperr.Unauthorized("refresh token is no longer valid")
	}

	pair, err := m.rotate(ctx, u.ID)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthEvent("refresh", "ok")
	return Session{User: u.Profile(), Tokens: pair}, nil
}

// Logout clears the refresh token hash.  Repeating it, or logging out a
// user that no longer exists, is not an error.
func (m *SessionManager) Logout(ctx context.Context, userID string) error {
	if err := m.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		return storageErr(err)
	}
	metrics.AuthEvent("logout", "ok")
	logging.From(ctx, m.log).Info("logout", zap.String("user_id", userID))
	return nil
}

// CurrentUser returns the profile of userID.
func (m *SessionManager) CurrentUser(ctx context.Context, userID string) (model.Profile, error) {
	u, err := m.loadAuthenticated(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return u.Profile(), nil
}

// Identity resolves the id and current role of an authenticated subject.
func (m *SessionManager) Identity(ctx context.Context, userID string) (model.Identity, error) {
	u, err := m.loadAuthenticated(ctx, userID)
	if err != nil {
		return model.Identity{}, err
	}
	return model.Identity{UserID: u.ID, Role: u.Role}, nil
}

func (m *SessionManager) loadAuthenticated(ctx context.Context, userID string) (*model.User, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, storageErr(err)
	}
	return u, nil
}

// rotate issues a pair and overwrites the stored refresh hash with the hash
// of the new refresh token.
func (m *SessionManager) rotate(ctx context.Context, userID string) (utils.Pair, error) {
	pair, err := m.tokens.IssuePair(ctx, userID)
	if err != nil {
		return utils.Pair{}, apperr.From(err)
	}
	hash, err := m.hasher.Hash(ctx, pair.Refresh.Value)
	if err != nil {
		return utils.Pair{}, apperr.From(err)
	}
	if err := m.users.SetRefreshTokenHash(ctx, userID, &hash); err != nil {
		return utils.Pair{}, storageErr(err)
	}
	return pair, nil
}

func (m *SessionManager) burnVerify(ctx context.Context, password string) {
	m.dummyOnce.Do(func() {
		m.dummyHash, _ = m.hasher.Hash(context.Background(), "pasal-dummy-password")
	})
	if m.dummyHash != "" {
		_, _ = m.hasher.Verify(ctx, m.dummyHash, password)
	}
}

// storageErr maps a repository error to the application taxonomy.  Any
// unclassified storage failure is Transient.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Transient(err)
}
