package middleware

// identity.go holds the context accessors shared by the guard chain, the
// tenant middleware and the handlers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pasal-api/internal/model"
)

const (
	identityKey       = "identity"
	tenantKey         = "tenant"
	tenantScopedKey   = "is_tenant_scoped"
	refreshSubjectKey = "refresh_subject"
	refreshTokenKey   = "refresh_token"
)

// IdentityFrom returns the identity attached by the guard chain.  It is
// absent on public routes called anonymously.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.UserID != ""
}

// TenantFrom returns the subdomain attached by Tenant and whether the
// request is tenant scoped.
func TenantFrom(c echo.Context) (string, bool) {
	sub, _ := c.Get(tenantKey).(string)
	scoped, _ := c.Get(tenantScopedKey).(bool)
	return sub, scoped && sub != ""
}

// RefreshFrom returns the verified subject and raw refresh token attached by
// Guard.RefreshCredential.
func RefreshFrom(c echo.Context) (subject, token string, ok bool) {
	subject, _ = c.Get(refreshSubjectKey).(string)
	token, _ = c.Get(refreshTokenKey).(string)
	return subject, token, subject != "" && token != ""
}

// userID returns the authenticated user id, or "guest".
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.UserID
	}
	return "guest"
}
