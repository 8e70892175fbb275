package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/utils"
)

// stubTokens accepts "<kind>:<subject>" as a token of that kind.
type stubTokens struct{}

func (stubTokens) Verify(_ context.Context, raw string, kind utils.TokenKind) (string, error) {
	prefix := string(kind) + ":"
	if !strings.HasPrefix(raw, prefix) {
		return "", apperr.Unauthorized("invalid token")
	}
	return strings.TrimPrefix(raw, prefix), nil
}

type stubIdentities map[string]model.Role

func (s stubIdentities) Identity(_ context.Context, userID string) (model.Identity, error) {
	if userID == "flaky" {
		return model.Identity{}, apperr.Transient(context.DeadlineExceeded)
	}
	role, ok := s[userID]
	if !ok {
		return model.Identity{}, apperr.Unauthorized("user no longer exists")
	}
	return model.Identity{UserID: userID, Role: role}, nil
}

func newTestGuard() *Guard {
	return NewGuard(stubTokens{}, stubIdentities{
		"owner":    model.RoleOwner,
		"manager":  model.RoleManager,
		"customer": model.RoleCustomer,
	})
}

func withBearer(tok string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if tok != "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	return r
}

func TestDecide_PublicBypass(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	id, err := g.Decide(ctx, Public, withBearer(""))
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = g.Decide(ctx, Public, withBearer("garbage"))
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = g.Decide(ctx, Public, withBearer("access:customer"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "customer", id.UserID)
}

func TestDecide_AuthenticationBeforeRole(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()
	owners := Roles(model.RoleOwner)

	_, err := g.Decide(ctx, owners, withBearer(""))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = g.Decide(ctx, owners, withBearer("refresh:owner"))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "a refresh token is not an access token")

	_, err = g.Decide(ctx, owners, withBearer("access:ghost"))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = g.Decide(ctx, owners, withBearer("access:manager"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	id, err := g.Decide(ctx, owners, withBearer("access:owner"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, id.Role)

	id, err = g.Decide(ctx, Roles(model.RoleOwner, model.RoleManager), withBearer("access:manager"))
	require.NoError(t, err)
	assert.Equal(t, "manager", id.UserID)

	id, err = g.Decide(ctx, Authenticated, withBearer("access:customer"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, id.Role)
}

func TestDecide_TransientPassesThrough(t *testing.T) {
	_, err := newTestGuard().Decide(context.Background(), Authenticated, withBearer("access:flaky"))
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}

func TestAccessCredential(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "access:owner"})
	assert.Equal(t, "access:owner", AccessCredential(r))

	r.Header.Set(echo.HeaderAuthorization, "bearer access:manager")
	assert.Equal(t, "access:manager", AccessCredential(r), "header wins over cookie")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(echo.HeaderAuthorization, "Basic abc")
	assert.Empty(t, AccessCredential(r))
}

func TestFor_AttachesIdentity(t *testing.T) {
	e := echo.New()
	g := newTestGuard()
	var seen model.Identity
	h := g.For(Authenticated)(func(c echo.Context) error {
		seen, _ = IdentityFrom(c)
		return c.NoContent(http.StatusNoContent)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "access:owner"})
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(r, rec)))
	assert.Equal(t, "owner", seen.UserID)

	rec = httptest.NewRecorder()
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestRefreshCredential(t *testing.T) {
	e := echo.New()
	g := newTestGuard()
	h := g.RefreshCredential()(func(c echo.Context) error {
		sub, tok, ok := RefreshFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, sub+"|"+tok)
	})

	// cookie
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh:owner"})
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(r, rec)))
	assert.Equal(t, "owner|refresh:owner", rec.Body.String())

	// body
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refresh_token":"refresh:manager"}`))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(r, rec)))
	assert.Equal(t, "manager|refresh:manager", rec.Body.String())

	// bearer
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(echo.HeaderAuthorization, "Bearer refresh:customer")
	require.NoError(t, h(e.NewContext(r, rec)))
	assert.Equal(t, "customer|refresh:customer", rec.Body.String())

	// an access token is rejected
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(echo.HeaderAuthorization, "Bearer access:owner")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(h(e.NewContext(r, rec))))

	// missing
	rec = httptest.NewRecorder()
	err := h(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestRoleAllowed(t *testing.T) {
	assert.True(t, roleAllowed(model.RoleCustomer, nil))
	assert.True(t, roleAllowed(model.RoleManager, []model.Role{model.RoleOwner, model.RoleManager}))
	assert.False(t, roleAllowed(model.RoleManager, []model.Role{model.RoleOwner}))
}
