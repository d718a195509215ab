package payment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/auth"
	"github.com/fusehealth/commerce-api/internal/platform/db"
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
	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	staff.GET("/payments", h.ListPayments)
	staff.GET("/payments/:id", h.GetPayment)
	staff.GET("/payments/:id/refunds", h.ListRefunds)
	staff.POST("/orders/:id/refund", h.RefundOrder)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/pending-debts", h.ListPendingDebts)
	admin.POST("/pending-debts/retry", h.RetryPendingDebts)
}

func (h *Handler) RefundOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var body struct {
		AmountCents int64  `json:"amount_cents"`
		Reason      string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	result, err := h.svc.RefundOrder(ctx, db.ClinicFromContext(ctx), orderID, body.AmountCents, body.Reason)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, result)
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRefunds(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	refunds, err := h.svc.ListRefunds(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, refunds)
}

func (h *Handler) ListPendingDebts(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPendingDebts(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RetryPendingDebts(c echo.Context) error {
	settled, failed, err := h.svc.RetryPendingDebts(c.Request().Context())
	if err != nil {
		return err
	}
	return respond.OK(c, map[string]int{"settled": settled, "failed": failed})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrNotRefundable), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAmountTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
