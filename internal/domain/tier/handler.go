package tier

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
	// Tier reads are open to clinic operators; writes are platform-admin only.
	read := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	read.GET("/tiers", h.ListTiers)
	read.GET("/tiers/:id", h.GetTier)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/tiers", h.CreateTier)
	write.PUT("/tiers/:id", h.UpdateTier)
	write.DELETE("/tiers/:id", h.DeleteTier)
}

func (h *Handler) CreateTier(c echo.Context) error {
	var t Tier
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTier(c.Request().Context(), &t); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, t)
}

func (h *Handler) GetTier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTier(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, t)
}

func (h *Handler) UpdateTier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Tier
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTier(c.Request().Context(), &t); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, t)
}

func (h *Handler) DeleteTier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteTier(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "tier deleted")
}

func (h *Handler) ListTiers(c echo.Context) error {
	pg := pagination.FromContext(c)
	tiers, total, err := h.svc.ListTiers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(tiers, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "tier not found")
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrInvalidTier), errors.Is(err, ErrTierAssigned):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
