package questionnaire

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

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	manage := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleClinic, auth.RoleDoctor))
	manage.POST("/questionnaires", h.CreateQuestionnaire)
	manage.GET("/questionnaires", h.ListQuestionnaires)
	manage.PUT("/questionnaires/:id", h.UpdateQuestionnaire)
	manage.POST("/questionnaires/:id/publish", h.Publish)
	manage.POST("/questionnaires/:id/archive", h.Archive)
	manage.GET("/questionnaires/:id/responses", h.ListResponses)
	manage.GET("/responses/:id", h.GetResponse)

	// Patients fetch the intake for a product and submit answers.
	api.GET("/questionnaires/:id", h.GetQuestionnaire)
	api.GET("/products/:id/intake", h.GetIntakeForProduct)
	api.POST("/questionnaires/:id/responses", h.SubmitResponse, auth.RequireRole(auth.RolePatient, auth.RoleAdmin))
}

func (h *Handler) CreateQuestionnaire(c echo.Context) error {
	var q Questionnaire
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateQuestionnaire(c.Request().Context(), &q); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, q)
}

func (h *Handler) GetQuestionnaire(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	q, err := h.svc.GetQuestionnaire(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, q)
}

func (h *Handler) GetIntakeForProduct(c echo.Context) error {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	q, err := h.svc.GetIntakeForProduct(c.Request().Context(), productID)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, q)
}

func (h *Handler) UpdateQuestionnaire(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var q Questionnaire
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q.ID = id
	if err := h.svc.UpdateQuestionnaire(c.Request().Context(), &q); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, q)
}

func (h *Handler) Publish(c echo.Context) error {
	return h.setStatus(c, h.svc.Publish, "questionnaire published")
}

func (h *Handler) Archive(c echo.Context) error {
	return h.setStatus(c, h.svc.Archive, "questionnaire archived")
}

func (h *Handler) setStatus(c echo.Context, fn func(context.Context, uuid.UUID) error, msg string) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, msg)
}

func (h *Handler) ListQuestionnaires(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListQuestionnaires(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SubmitResponse(c echo.Context) error {
	qid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var resp Response
	if err := c.Bind(&resp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp.QuestionnaireID = qid
	if err := h.svc.SubmitResponse(c.Request().Context(), &resp); err != nil {
		return mapErr(err)
	}
	return respond.Created(c, resp)
}

func (h *Handler) GetResponse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	resp, err := h.svc.GetResponse(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, resp)
}

func (h *Handler) ListResponses(c echo.Context) error {
	qid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListResponses(c.Request().Context(), qid, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, pagination.NewPage(items, total, pg.Limit, pg.Offset))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "questionnaire not found")
	case errors.Is(err, ErrResponseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "response not found")
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrNotPublished), errors.Is(err, ErrMissingAnswer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
