// Package router builds the echo instance: the global middleware chain, then
// one explicit route table in which every route carries its authorization
// descriptor.
package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/handler"
	"github.com/iliyamo/pasal-api/internal/metrics"
	"github.com/iliyamo/pasal-api/internal/middleware"
	"github.com/iliyamo/pasal-api/internal/model"
)

// Deps is everything the router wires together.
type Deps struct {
	Logger       *zap.Logger
	Guard        *middleware.Guard
	Tenants      middleware.HostResolver
	Auth         *handler.AuthHandler
	Stores       *handler.StoreHandler
	Products     *handler.ProductHandler
	Cache        echo.MiddlewareFunc // storefront response cache; nil disables
	DB           handler.Pinger      // nil for the memory backend
	Deadline     time.Duration       // per-request deadline
	AllowOrigins []string
	Metrics      bool
}

// route is one row of the route table.
type route struct {
	method  string
	path    string
	spec    middleware.RouteSpec
	handler echo.HandlerFunc
	extra   []echo.MiddlewareFunc // run after the guard
}

// New returns a configured echo instance.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	if d.Metrics {
		e.Use(metrics.Middleware())
	}
	if len(d.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.AllowOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	e.Use(middleware.Deadline(d.Deadline))
	e.Use(middleware.Tenant(d.Tenants))

	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))
	if d.Metrics {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	v1 := e.Group("/v1")
	for _, r := range routes(d) {
		mws := append([]echo.MiddlewareFunc{d.Guard.For(r.spec)}, r.extra...)
		v1.Add(r.method, r.path, r.handler, mws...)
	}
	return e
}

func routes(d Deps) []route {
	cache := d.Cache
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	public := middleware.Public
	authed := middleware.Authenticated
	editors := middleware.Roles(model.RoleOwner, model.RoleManager)
	owners := middleware.Roles(model.RoleOwner)

	return []route{
		{http.MethodPost, "/auth/register", public, d.Auth.Register, nil},
		{http.MethodPost, "/auth/login", public, d.Auth.Login, nil},
		{http.MethodPost, "/auth/refresh", public, d.Auth.Refresh, []echo.MiddlewareFunc{d.Guard.RefreshCredential()}},
		{http.MethodGet, "/auth/me", authed, d.Auth.Me, nil},
		{http.MethodPost, "/auth/logout", authed, d.Auth.Logout, nil},

		{http.MethodGet, "/store", public, d.Stores.Storefront, []echo.MiddlewareFunc{cache}},
		{http.MethodGet, "/store/products", public, d.Stores.StorefrontProducts, []echo.MiddlewareFunc{cache}},
		{http.MethodGet, "/stores/check-subdomain/:subdomain", public, d.Stores.CheckSubdomain, nil},
		{http.MethodPost, "/stores", authed, d.Stores.Create, nil},
		{http.MethodGet, "/stores", authed, d.Stores.List, nil},
		{http.MethodGet, "/stores/:id", authed, d.Stores.Get, nil},
		{http.MethodPatch, "/stores/:id", authed, d.Stores.Update, nil},
		{http.MethodDelete, "/stores/:id", authed, d.Stores.Delete, nil},

		{http.MethodPost, "/stores/:id/products", editors, d.Products.CreateForStore, nil},
		{http.MethodGet, "/stores/:id/products", public, d.Products.ListByStore, nil},
		{http.MethodGet, "/products/my-products", authed, d.Products.ListMine, nil},
		{http.MethodGet, "/products/:id", public, d.Products.Get, nil},
		{http.MethodPatch, "/products/:id", editors, d.Products.Update, nil},
		{http.MethodDelete, "/products/:id", owners, d.Products.Delete, nil},

		// legacy
		{http.MethodPost, "/product", editors, d.Products.Create, nil},
		{http.MethodGet, "/product", public, d.Products.ListAll, nil},
	}
}
