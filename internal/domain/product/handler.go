package product

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/pkg/pagination"
	"github.com/fusehealth/commerce-api/pkg/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Catalog reads are open to every authenticated role; the patient portal
	// browses the same endpoint.
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	write.POST("/products", h.CreateProduct)
	write.PUT("/products/:id", h.UpdateProduct)
	write.DELETE("/products/:id", h.DeleteProduct)
	write.POST("/products/import", h.ImportPartnerProduct)
}

func (h *Handler) CreateProduct(c echo.Context) error {
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProduct(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, p)
}

func (h *Handler) GetProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) UpdateProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProduct(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteProduct(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "product deleted")
}

func (h *Handler) ImportPartnerProduct(c echo.Context) error {
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ImportPartnerProduct(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) ListProducts(c echo.Context) error {
	pg := pagination.FromContext(c)

	f := ListFilter{
		Source:     c.QueryParam("source"),
		ActiveOnly: c.QueryParam("include_inactive") != "true",
	}
	if rx := c.QueryParam("requires_prescription"); rx != "" {
		v := rx == "true"
		f.Prescription = &v
	}

	products, total, err := h.svc.ListProducts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(products, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	case errors.Is(err, ErrSKUTaken), errors.Is(err, ErrInvalidProduct):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
