package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/internal/platform/db"
	"github.com/fusehealth/commerce-api/pkg/pagination"
	"github.com/fusehealth/commerce-api/pkg/respond"
)

// PatientResolver maps an auth subject to its patient record id, used to
// confine patient sessions to their own orders.
type PatientResolver interface {
	PatientIDByUser(ctx context.Context, userID string) (uuid.UUID, error)
}

type Handler struct {
	svc      *Service
	patients PatientResolver
}

func NewHandler(svc *Service, patients PatientResolver) *Handler {
	return &Handler{svc: svc, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reads := auth.RequireRole(auth.RoleAdmin, auth.RoleClinic, auth.RoleDoctor, auth.RolePatient)
	api.POST("/orders", h.CreateOrder, auth.RequireRole(auth.RolePatient, auth.RoleClinic, auth.RoleAdmin))
	api.GET("/orders", h.ListOrders, reads)
	api.GET("/orders/:id", h.GetOrder, reads)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	staff.PATCH("/orders/:id/status", h.UpdateStatus)
	staff.POST("/orders/:id/cancel", h.CancelOrder)
}

// callerPatientID resolves the caller's own patient record when the session
// carries no staff role. uuid.Nil means the caller is staff and unrestricted.
func (h *Handler) callerPatientID(c echo.Context) (uuid.UUID, error) {
	ctx := c.Request().Context()
	if auth.IsAdmin(ctx) || auth.HasRole(ctx, auth.RoleClinic) || auth.HasRole(ctx, auth.RoleDoctor) {
		return uuid.Nil, nil
	}
	id, err := h.patients.PatientIDByUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "no patient record for caller")
	}
	return id, nil
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var o Order
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	if own != uuid.Nil {
		o.PatientID = own
	}
	ctx := c.Request().Context()
	if err := h.svc.CreateOrder(ctx, db.ClinicFromContext(ctx), &o); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	if own != uuid.Nil && o.PatientID != own {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return respond.OK(c, o)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "order status updated")
}

func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.CancelOrder(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "order cancelled")
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}

	f := ListFilter{Status: c.QueryParam("status")}
	if own != uuid.Nil {
		f.PatientID = own
	} else if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}

	orders, total, err := h.svc.ListOrders(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(orders, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
