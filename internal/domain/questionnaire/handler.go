package questionnaire

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medscreen/medscreen/internal/domain/scoring"
	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.GET("/questionnaires", h.ListPublic)
	public.GET("/questionnaires/:id", h.GetPublic)

	api.GET("/questionnaires", h.List)
	api.GET("/questionnaires/:id", h.Get)

	doctors := api.Group("", auth.RequirePrincipal(auth.PrincipalDoctor))
	doctors.POST("/questionnaires", h.Create)
	doctors.POST("/questionnaires/validate", h.Validate)
	doctors.PUT("/questionnaires/:id", h.Update)
	doctors.DELETE("/questionnaires/:id", h.Delete)
}

func httpError(err error) error {
	if code := scoring.Code(err); code != "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"code":    code,
			"message": err.Error(),
		})
	}
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// bindTemplate decodes the body, surfacing scoring decode errors (such as a
// tier without bounds) with their machine code.
func bindTemplate(c echo.Context, t *Template) error {
	if err := c.Bind(t); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil && scoring.Code(he.Internal) != "" {
			return httpError(he.Internal)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *Handler) Create(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var t Template
	if err := bindTemplate(c, &t); err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), p, &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Validate checks a template without saving it.
func (h *Handler) Validate(c echo.Context) error {
	var t Template
	if err := bindTemplate(c, &t); err != nil {
		return err
	}
	if err := ValidateTemplate(&t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":          true,
		"question_count": len(t.Questions),
		"tier_count":     len(t.Tiers),
	})
}

func (h *Handler) Get(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) List(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(summaries(items), total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) Update(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Template
	if err := bindTemplate(c, &t); err != nil {
		return err
	}
	t.ID = id
	if err := h.svc.Update(c.Request().Context(), p, &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Delete(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPublic(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPublic(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(summaries(items), total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetPublic(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetPublic(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}
