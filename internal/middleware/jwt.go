package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/metrics"
	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/utils"
)

// Cookie names of the two credentials.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// RouteSpec is the per-route authorization descriptor attached at route
// registration.  Roles empty means any authenticated caller.
type RouteSpec struct {
	Public bool
	Roles  []model.Role
}

// Public is the descriptor of an anonymous route.
var Public = RouteSpec{Public: true}

// Authenticated is the descriptor of a route open to any signed-in caller.
var Authenticated = RouteSpec{}

// Roles returns the descriptor of a route limited to roles.
func Roles(roles ...model.Role) RouteSpec { return RouteSpec{Roles: roles} }

// TokenVerifier checks signed tokens.  utils.TokenService satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string, kind utils.TokenKind) (string, error)
}

// IdentityResolver loads the current role of a verified subject.
type IdentityResolver interface {
	Identity(ctx context.Context, userID string) (model.Identity, error)
}

// Guard is the authorization chain: public bypass, then authentication,
// then role.  It holds no per-request state.
type Guard struct {
	tokens TokenVerifier
	ids    IdentityResolver
}

func NewGuard(tokens TokenVerifier, ids IdentityResolver) *Guard {
	return &Guard{tokens: tokens, ids: ids}
}

// Decide evaluates spec against the credential carried by r.  A nil
// identity with a nil error means an anonymous caller on a public route.
func (g *Guard) Decide(ctx context.Context, spec RouteSpec, r *http.Request) (*model.Identity, error) {
	raw := AccessCredential(r)

	if spec.Public {
		// Identity is optional here; a bad credential is simply ignored.
		if raw != "" {
			if id, err := g.authenticate(ctx, raw); err == nil {
				return &id, nil
			}
		}
		return nil, nil
	}

	if raw == "" {
		metrics.GuardDenied("missing_credential")
		return nil, apperr.Unauthorized("missing bearer token")
	}
	id, err := g.authenticate(ctx, raw)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindTransient {
			return nil, err
		}
		metrics.GuardDenied("invalid_credential")
		return nil, apperr.Wrap(apperr.KindUnauthorized, "unauthorized", err)
	}

	if !roleAllowed(id.Role, spec.Roles) {
		metrics.GuardDenied("role")
		return nil, apperr.Forbidden("insufficient role")
	}
	return &id, nil
}

func (g *Guard) authenticate(ctx context.Context, raw string) (model.Identity, error) {
	sub, err := g.tokens.Verify(ctx, raw, utils.AccessKind)
	if err != nil {
		return model.Identity{}, err
	}
	return g.ids.Identity(ctx, sub)
}

// For returns the middleware enforcing spec.  A failure is returned to the
// error handler before the route handler runs.
func (g *Guard) For(spec RouteSpec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := g.Decide(c.Request().Context(), spec, c.Request())
			if err != nil {
				return err
			}
			if id != nil {
				c.Set(identityKey, *id)
			}
			return next(c)
		}
	}
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshCredential verifies the refresh token carried by the request
// (cookie, then JSON body field refresh_token, then bearer header) with the
// refresh secret and attaches its subject.  It does not consult storage;
// the session manager compares the token with the stored hash.
func (g *Guard) RefreshCredential() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			raw := ""
			if ck, err := r.Cookie(RefreshCookie); err == nil {
				raw = strings.TrimSpace(ck.Value)
			}
			if raw == "" && r.ContentLength != 0 {
				var body refreshBody
				if err := c.Bind(&body); err == nil {
					raw = strings.TrimSpace(body.RefreshToken)
				}
			}
			if raw == "" {
				raw = bearer(r)
			}
			if raw == "" {
				metrics.GuardDenied("missing_refresh")
				return apperr.Unauthorized("missing refresh token")
			}
			sub, err := g.tokens.Verify(r.Context(), raw, utils.RefreshKind)
			if err != nil {
				if apperr.KindOf(err) != apperr.KindTransient {
					metrics.GuardDenied("invalid_refresh")
				}
				return err
			}
			c.Set(refreshSubjectKey, sub)
			c.Set(refreshTokenKey, raw)
			return next(c)
		}
	}
}

// AccessCredential extracts the access token from the Authorization header
// or, failing that, the accessToken cookie.
func AccessCredential(r *http.Request) string {
	if raw := bearer(r); raw != "" {
		return raw
	}
	if ck, err := r.Cookie(AccessCookie); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}

func bearer(r *http.Request) string {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
