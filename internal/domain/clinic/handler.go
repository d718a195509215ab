package clinic

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
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/clinics", h.CreateClinic)
	admin.GET("/clinics", h.ListClinics)
	admin.DELETE("/clinics/:id", h.DeactivateClinic)
	admin.PUT("/clinics/:id/tier", h.AssignTier)

	// Clinic operators can read and edit their own record.
	own := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	own.GET("/clinics/:id", h.GetClinic)
	own.PUT("/clinics/:id", h.UpdateClinic)
}

func (h *Handler) CreateClinic(c echo.Context) error {
	var cl Clinic
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateClinic(c.Request().Context(), &cl); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, cl)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	if err := requireOwnClinic(c, cl.Slug); err != nil {
		return err
	}
	return respond.OK(c, cl)
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	current, err := h.svc.GetClinic(ctx, id)
	if err != nil {
		return mapErr(err)
	}
	if err := requireOwnClinic(c, current.Slug); err != nil {
		return err
	}

	var cl Clinic
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id

	// Fee and tier are platform-admin decisions.
	if !auth.IsAdmin(ctx) {
		cl.PlatformFeeBps = current.PlatformFeeBps
		cl.TierID = current.TierID
		cl.ProcessorAcctID = current.ProcessorAcctID
	}

	if err := h.svc.UpdateClinic(ctx, &cl); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) AssignTier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		TierID *uuid.UUID `json:"tier_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AssignTier(c.Request().Context(), id, body.TierID); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "tier assigned")
}

func (h *Handler) DeactivateClinic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateClinic(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "clinic deactivated")
}

func (h *Handler) ListClinics(c echo.Context) error {
	pg := pagination.FromContext(c)
	includeInactive := c.QueryParam("include_inactive") == "true"
	clinics, total, err := h.svc.ListClinics(c.Request().Context(), includeInactive, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(clinics, total, pg.Limit, pg.Offset))
}

// requireOwnClinic confines non-admin callers to their own clinic's record.
func requireOwnClinic(c echo.Context, slug string) error {
	ctx := c.Request().Context()
	if auth.IsAdmin(ctx) || auth.SameClinic(ctx, slug) {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "access restricted to your clinic")
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
	case errors.Is(err, ErrSlugTaken), errors.Is(err, ErrInvalidClinic):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
