package subscription

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/pkg/pagination"
	"github.com/fusehealth/commerce-api/pkg/respond"
)

// PatientResolver maps an auth subject to its patient record id, used to
// confine patient sessions to their own subscriptions.
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
	manage := auth.RequireRole(auth.RoleAdmin, auth.RoleClinic, auth.RolePatient)
	api.POST("/subscriptions", h.CreateSubscription, manage)
	api.GET("/subscriptions", h.ListSubscriptions, reads)
	api.GET("/subscriptions/:id", h.GetSubscription, reads)
	api.POST("/subscriptions/:id/pause", h.Pause, manage)
	api.POST("/subscriptions/:id/resume", h.Resume, manage)
	api.POST("/subscriptions/:id/cancel", h.Cancel, manage)
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

func (h *Handler) CreateSubscription(c echo.Context) error {
	var sub Subscription
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	if own != uuid.Nil {
		sub.PatientID = own
	}
	if err := h.svc.CreateSubscription(c.Request().Context(), &sub); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, sub)
}

func (h *Handler) GetSubscription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.GetSubscription(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	if own != uuid.Nil && sub.PatientID != own {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	return respond.OK(c, sub)
}

func (h *Handler) Pause(c echo.Context) error {
	return h.lifecycle(c, h.svc.Pause, "subscription paused")
}

func (h *Handler) Resume(c echo.Context) error {
	return h.lifecycle(c, h.svc.Resume, "subscription resumed")
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.lifecycle(c, h.svc.Cancel, "subscription cancelled")
}

func (h *Handler) lifecycle(c echo.Context, fn func(context.Context, uuid.UUID) error, msg string) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}
	if own != uuid.Nil {
		sub, err := h.svc.GetSubscription(c.Request().Context(), id)
		if err != nil {
			return mapErr(err)
		}
		if sub.PatientID != own {
			return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
		}
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, msg)
}

func (h *Handler) ListSubscriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	own, err := h.callerPatientID(c)
	if err != nil {
		return err
	}

	var patientID uuid.UUID
	if own != uuid.Nil {
		patientID = own
	} else if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = id
	}

	subs, total, err := h.svc.ListSubscriptions(c.Request().Context(), patientID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(subs, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrNotActive),
		errors.Is(err, ErrNotPaused), errors.Is(err, ErrTerminated):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
