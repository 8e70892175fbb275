package handler // handler defines http handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/logging"
	"github.com/iliyamo/pasal-api/internal/middleware"
)

// callerID returns the authenticated user id.  Guarded routes always have
// one; reaching here without it is a wiring bug and reads as Unauthorized.
func callerID(c echo.Context) (string, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return "", apperr.Unauthorized("")
	}
	return id.UserID, nil
}

// requireTenant returns the subdomain of a tenant-scoped request, or
// BadRequest when the host names no store.
func requireTenant(c echo.Context) (string, error) {
	sub, ok := middleware.TenantFrom(c)
	if !ok {
		return "", apperr.BadRequest("no store specified, access via subdomain")
	}
	return sub, nil
}

// bind decodes the JSON body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	return nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorHandler maps errors to responses: *apperr.Error by kind, echo's own
// HTTP errors by code, anything else as 500.  Causes are logged, not sent.
func ErrorHandler(base *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = c.JSON(he.Code, errorBody{Error: http.StatusText(he.Code), Message: msg})
			return
		}

		ae := apperr.From(err)
		status := ae.Kind.Status()
		l := logging.From(c.Request().Context(), base)
		switch ae.Kind {
		case apperr.KindInternal:
			l.Error("internal error", zap.Error(err))
		case apperr.KindTransient:
			l.Warn("transient failure", zap.Error(err))
			c.Response().Header().Set("Retry-After", "1")
		case apperr.KindUnauthorized, apperr.KindInvalidCredentials, apperr.KindExternalProviderOnly:
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorBody{Error: string(ae.Kind), Message: ae.Message})
	}
}
