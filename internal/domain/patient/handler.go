package patient

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
	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic, auth.RoleDoctor))
	staff.POST("/patients", h.CreatePatient)
	staff.GET("/patients", h.ListPatients)
	staff.GET("/patients/:id", h.GetPatient)
	staff.PUT("/patients/:id", h.UpdatePatient)
	staff.DELETE("/patients/:id", h.DeletePatient, auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))

	// Patients read and edit only their own record.
	api.GET("/me", h.GetOwnPatient, auth.RequireRole(auth.RolePatient))
	api.PUT("/me", h.UpdateOwnPatient, auth.RequireRole(auth.RolePatient))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) GetOwnPatient(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.GetOwnPatient(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) UpdateOwnPatient(c echo.Context) error {
	ctx := c.Request().Context()
	current, err := h.svc.GetOwnPatient(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapErr(err)
	}

	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = current.ID
	p.UserID = current.UserID
	p.Active = current.Active

	if err := h.svc.UpdatePatient(ctx, &p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "patient deleted")
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), c.QueryParam("search"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(patients, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrInvalidPatient):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
