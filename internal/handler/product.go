package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pasal-api/internal/model"
	"github.com/iliyamo/pasal-api/internal/service"
)

// ProductHandler serves the product endpoints, including the legacy
// /product routes.
type ProductHandler struct {
	Products *service.ProductService
}

func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{Products: products}
}

// CreateForStore adds a product to store :id.
func (h *ProductHandler) CreateForStore(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	var in service.CreateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.StoreID = c.Param("id")
	p, err := h.Products.Create(c.Request().Context(), uid, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Create is the legacy creation route; storeId comes from the body.
func (h *ProductHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	var in service.CreateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	p, err := h.Products.Create(c.Request().Context(), uid, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// ListByStore lists the products of store :id.
func (h *ProductHandler) ListByStore(c echo.Context) error {
	ps, err := h.Products.ListByStore(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

// ListAll is the legacy listing of every product.
func (h *ProductHandler) ListAll(c echo.Context) error {
	ps, err := h.Products.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

// ListMine lists the products across the caller's stores.
func (h *ProductHandler) ListMine(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	ps, err := h.Products.ListMine(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

// Get returns :id.
func (h *ProductHandler) Get(c echo.Context) error {
	p, err := h.Products.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update patches :id in one of the caller's stores.
func (h *ProductHandler) Update(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	var patch model.ProductPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	p, err := h.Products.Update(c.Request().Context(), uid, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes :id from one of the caller's stores.
func (h *ProductHandler) Delete(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return err
	}
	if err := h.Products.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}
