package pharmacy

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/internal/platform/db"
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
	admin.POST("/pharmacy/partners", h.CreatePartner)
	admin.PUT("/pharmacy/partners/:id", h.UpdatePartner)

	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	staff.GET("/pharmacy/partners", h.ListPartners)
	staff.GET("/pharmacy/partners/:id", h.GetPartner)
	staff.POST("/orders/:id/dispatch", h.DispatchOrder)
	staff.GET("/orders/:id/dispatch", h.GetDispatch)
}

func (h *Handler) CreatePartner(c echo.Context) error {
	var p Partner
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePartner(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, p)
}

func (h *Handler) GetPartner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPartner(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) UpdatePartner(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Partner
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePartner(c.Request().Context(), &p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) ListPartners(c echo.Context) error {
	partners, err := h.svc.ListPartners(c.Request().Context(), c.QueryParam("include_inactive") != "true")
	if err != nil {
		return err
	}
	return respond.OK(c, partners)
}

type dispatchRequest struct {
	PartnerCode string `json:"partner_code"`
}

func (h *Handler) DispatchOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req dispatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	d, err := h.svc.DispatchOrder(ctx, db.ClinicFromContext(ctx), orderID, req.PartnerCode)
	if err != nil {
		return mapErr(err)
	}
	return respond.Created(c, d)
}

func (h *Handler) GetDispatch(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDispatchForOrder(c.Request().Context(), orderID)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, d)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "dispatch not found")
	case errors.Is(err, ErrPartnerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "pharmacy partner not found")
	case errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrInvalidPartner),
		errors.Is(err, ErrPartnerInactive),
		errors.Is(err, ErrAlreadyDispatched),
		errors.Is(err, ErrNotDispatchable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
