package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pasal-api/internal/apperr"
	"github.com/iliyamo/pasal-api/internal/middleware"
	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/service"
	"github.com/iliyamo/pasal-api/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Sessions *service.SessionManager
	Secure   bool // mark cookies Secure (production)
}

func NewAuthHandler(sessions *service.SessionManager, secure bool) *AuthHandler {
	return &AuthHandler{Sessions: sessions, Secure: secure}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.Profile `json:"user"`
	Access  tokenPart     `json:"access"`
	Refresh tokenPart     `json:"refresh"`
}

func newAuthResp(s service.Session) authResp {
	return authResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Tokens.Access.Value, Expires: s.Tokens.Access.Exp},
		Refresh: tokenPart{Token: s.Tokens.Refresh.Value, Expires: s.Tokens.Refresh.Exp},
	}
}

// Register: create a LOCAL user.  No session is started.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.Sessions.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Login: verify credentials, set both cookies and return the pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperr.BadRequest("email/password required")
	}
	s, err := h.Sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setAuthCookies(c, s.Tokens)
	return c.JSON(http.StatusOK, newAuthResp(s))
}

// Refresh: rotate the pair.  The refresh credential was verified by
// Guard.RefreshCredential.
func (h *AuthHandler) Refresh(c echo.Context) error {
	sub, raw, ok := middleware.RefreshFrom(c)
	if !ok {
		return apperr.Unauthorized("missing refresh token")
	}
	s, err := h.Sessions.Refresh(c.Request().Context(), sub, raw)
	if err != nil {
		return err
	}
	h.setAuthCookies(c, s.Tokens)
	return c.JSON(http.StatusOK, newAuthResp(s))
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	p, err := h.Sessions.CurrentUser(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Logout: drop the stored refresh hash and clear both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	if err := h.Sessions.Logout(c.Request().Context(), uid); err != nil {
		return err
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) setAuthCookies(c echo.Context, p utils.Pair) {
	c.SetCookie(h.cookie(middleware.AccessCookie, p.Access.Value, p.Access.TTL))
	c.SetCookie(h.cookie(middleware.RefreshCookie, p.Refresh.Value, p.Refresh.TTL))
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		ck := h.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}

// cookie builds an http-only, same-site=lax cookie living for ttl.
// Max-Age is in seconds on the wire.
func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
