package affiliate

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
	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic))
	staff.POST("/affiliates", h.CreateAffiliate)
	staff.GET("/affiliates", h.ListAffiliates)
	staff.GET("/affiliates/:id", h.GetAffiliate)
	staff.PUT("/affiliates/:id", h.UpdateAffiliate)
	staff.DELETE("/affiliates/:id", h.DeleteAffiliate)
	staff.GET("/affiliates/:id/commissions", h.ListCommissions)
	staff.GET("/affiliates/:id/balance", h.GetBalance)
	staff.POST("/commissions/:id/approve", h.ApproveCommission)
	staff.POST("/commissions/:id/pay", h.PayCommission)

	// Affiliates check their own accrued commissions through the portal.
	self := api.Group("", auth.RequireRole(auth.RoleAffiliate))
	self.GET("/affiliates/me/commissions", h.ListOwnCommissions)
}

func (h *Handler) CreateAffiliate(c echo.Context) error {
	var a Affiliate
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAffiliate(c.Request().Context(), &a); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, a)
}

func (h *Handler) GetAffiliate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAffiliate(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, a)
}

func (h *Handler) UpdateAffiliate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Affiliate
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.UpdateAffiliate(c.Request().Context(), &a); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, a)
}

func (h *Handler) DeleteAffiliate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAffiliate(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "affiliate deleted")
}

func (h *Handler) ListAffiliates(c echo.Context) error {
	pg := pagination.FromContext(c)
	affiliates, total, err := h.svc.ListAffiliates(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(affiliates, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListCommissions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	commissions, total, err := h.svc.ListCommissions(c.Request().Context(), id, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, pagination.NewPage(commissions, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListOwnCommissions(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no subject")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
	}
	pg := pagination.FromContext(c)
	commissions, total, err := h.svc.ListCommissions(ctx, id, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, pagination.NewPage(commissions, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetBalance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.AffiliateBalance(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, b)
}

func (h *Handler) ApproveCommission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ApproveCommission(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "commission approved")
}

func (h *Handler) PayCommission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkCommissionPaid(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, "commission paid")
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "affiliate not found")
	case errors.Is(err, ErrCommissionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "commission not found")
	case errors.Is(err, ErrCodeTaken),
		errors.Is(err, ErrInvalidAffiliate),
		errors.Is(err, ErrInactiveAffiliate),
		errors.Is(err, ErrNotApprovable),
		errors.Is(err, ErrNotPayable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
