package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/logging"
)

// HostResolver maps a Host header to a subdomain.  tenant.Resolver
// satisfies it.
type HostResolver interface {
	Resolve(host string) (string, bool)
}

// Tenant resolves the Host header on every request and attaches the
// subdomain, if any.  It never fails: routes that need a tenant reject the
// request themselves.
func Tenant(res HostResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub, ok := res.Resolve(c.Request().Host)
			c.Set(tenantKey, sub)
			c.Set(tenantScopedKey, ok)
			if ok {
				r := c.Request()
				ctx := r.Context()
				l := logging.From(ctx, nil).With(zap.String("tenant", sub))
				c.SetRequest(r.WithContext(logging.ToContext(ctx, l)))
			}
			return next(c)
		}
	}
}
