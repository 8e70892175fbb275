package utils // package utils provides the hashing and token primitives used by the session layer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/pasal-api/internal/apperr"
)

// TokenKind selects which secret and TTL a token is issued or verified with.
type TokenKind string

const (
	AccessKind  TokenKind = "access"
	RefreshKind TokenKind = "refresh"
)

// Token is a signed JWT together with its expiry.  TTL is kept so the
// transport can size cookie lifetimes without recomputing it.
type Token struct {
	Value string
	Exp   time.Time
	TTL   time.Duration
}

// Pair is an access token issued together with its refresh token.
type Pair struct {
	Access  Token
	Refresh Token
}

// TokenConfig holds the signing policy.  The two secrets must differ so a
// leaked access secret cannot mint refresh tokens and vice versa.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// Validate checks the separation and ordering rules of the policy.
func (c TokenConfig) Validate() error {
	switch {
	case c.AccessSecret == "":
		return errors.New("access token secret is required")
	case c.RefreshSecret == "":
		return errors.New("refresh token secret is required")
	case c.AccessSecret == c.RefreshSecret:
		return errors.New("access and refresh secrets must differ")
	case c.AccessTTL <= 0:
		return errors.New("access token ttl must be positive")
	case c.RefreshTTL <= c.AccessTTL:
		return errors.New("refresh token ttl must be longer than access token ttl")
	}
	return nil
}

// claims is the payload of both token kinds: the subject plus standard
// expiry claims.  Typ pins a token to its kind on top of the secret split.
type claims struct {
	Typ TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access and refresh tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService validates cfg and returns a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// IssueAccessToken signs {sub: subject} with the access secret and TTL.
func (s *TokenService) IssueAccessToken(subject string) (Token, error) {
	return s.issue(AccessKind, subject)
}

// IssueRefreshToken signs {sub: subject} with the refresh secret and TTL.
func (s *TokenService) IssueRefreshToken(subject string) (Token, error) {
	return s.issue(RefreshKind, subject)
}

// IssuePair signs both tokens concurrently.
func (s *TokenService) IssuePair(ctx context.Context, subject string) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, apperr.Transient(err)
	}
	var (
		p Pair
		g errgroup.Group
	)
	g.Go(func() (err error) {
		p.Access, err = s.IssueAccessToken(subject)
		return err
	})
	g.Go(func() (err error) {
		p.Refresh, err = s.IssueRefreshToken(subject)
		return err
	})
	if err := g.Wait(); err != nil {
		return Pair{}, apperr.Internal(err)
	}
	return p, nil
}

// Verify checks signature, algorithm, expiry and kind, and returns the
// subject.  Every token problem is Unauthorized; an already finished ctx is
// Transient.
func (s *TokenService) Verify(ctx context.Context, raw string, kind TokenKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Transient(err)
	}
	secret, err := s.secretFor(kind)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if raw == "" {
		return "", apperr.Unauthorized("missing token")
	}

	var cl claims
	tok, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is accepted; anything else is a forgery attempt.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Wrap(apperr.KindUnauthorized, "token expired", err)
		}
		return "", apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}
	if cl.Typ != kind {
		return "", apperr.Unauthorized("invalid token")
	}
	if cl.Subject == "" {
		return "", apperr.Unauthorized("invalid token subject")
	}
	return cl.Subject, nil
}

func (s *TokenService) issue(kind TokenKind, subject string) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("empty token subject")
	}
	secret, err := s.secretFor(kind)
	if err != nil {
		return Token{}, err
	}
	ttl := s.ttlFor(kind)
	now := s.now().UTC()
	exp := now.Add(ttl)

	cl := claims{
		Typ: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			// jti keeps two tokens issued in the same second distinct, which
			// the refresh-rotation check relies on.
			ID: uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte(secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return Token{Value: signed, Exp: exp, TTL: ttl}, nil
}

func (s *TokenService) secretFor(kind TokenKind) (string, error) {
	switch kind {
	case AccessKind:
		return s.cfg.AccessSecret, nil
	case RefreshKind:
		return s.cfg.RefreshSecret, nil
	}
	return "", fmt.Errorf("unknown token kind %q", kind)
}

func (s *TokenService) ttlFor(kind TokenKind) time.Duration {
	if kind == RefreshKind {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

// AccessTTL and RefreshTTL expose the configured lifetimes for cookie sizing.
func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }
