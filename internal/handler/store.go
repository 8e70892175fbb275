package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/service"
)

// StoreHandler serves the storefront and store management endpoints.
type StoreHandler struct {
	Stores *service.StoreRegistry
}

func NewStoreHandler(stores *service.StoreRegistry) *StoreHandler {
	return &StoreHandler{Stores: stores}
}

// Storefront returns the active store addressed by the Host header.
func (h *StoreHandler) Storefront(c echo.Context) error {
	sub, err := requireTenant(c)
	if err != nil {
		return err
	}
	s, err := h.Stores.ResolveActiveStore(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// StorefrontProducts lists the products of the store addressed by the Host
// header.
func (h *StoreHandler) StorefrontProducts(c echo.Context) error {
	sub, err := requireTenant(c)
	if err != nil {
		return err
	}
	ps, err := h.Stores.StoreProducts(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

// CheckSubdomain reports whether :subdomain can still be registered.
func (h *StoreHandler) CheckSubdomain(c echo.Context) error {
	sub := c.Param("subdomain")
	ok, err := h.Stores.IsSubdomainAvailable(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"subdomain": sub, "available": ok})
}

// Create registers a store owned by the caller.
func (h *StoreHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	var in service.CreateStoreInput
	if err := bind(c, &in); err != nil {
		return err
	}
	s, err := h.Stores.CreateStore(c.Request().Context(), uid, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

// List returns the caller's stores.
func (h *StoreHandler) List(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	ss, err := h.Stores.ListOwned(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ss)
}

// Get returns one of the caller's stores.
func (h *StoreHandler) Get(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	s, err := h.Stores.GetOwned(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Update patches one of the caller's stores.  A subdomain in the body is
// ignored because StorePatch has no such field.
func (h *StoreHandler) Update(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	var p model.StorePatch
	if err := bind(c, &p); err != nil {
		return err
	}
	s, err := h.Stores.UpdateOwned(c.Request().Context(), uid, c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// Delete removes one of the caller's stores.
func (h *StoreHandler) Delete(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	if err := h.Stores.DeleteOwned(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Store deleted successfully"})
}
