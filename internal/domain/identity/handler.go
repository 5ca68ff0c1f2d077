package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts login and self-registration on public and the rest on
// the authenticated api group.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/doctors/login", h.LoginDoctor)
	public.POST("/respondents/register", h.RegisterRespondent)
	public.POST("/respondents/login", h.LoginRespondent)

	doctors := api.Group("", auth.RequirePrincipal(auth.PrincipalDoctor))
	doctors.GET("/doctors/me", h.GetCurrentDoctor)
	doctors.GET("/doctors/:id", h.GetDoctor)
	doctors.GET("/patients", h.ListPatients)
	doctors.POST("/patients", h.CreatePatient)
	doctors.GET("/patients/:id", h.GetPatient)
	doctors.PUT("/patients/:id", h.UpdatePatient)
	doctors.DELETE("/patients/:id", h.DeletePatient)
	doctors.GET("/patients/:id/caregivers", h.ListPatientCaregivers)
	doctors.GET("/caregivers", h.ListCaregivers)
	doctors.POST("/caregivers", h.CreateCaregiver)
	doctors.GET("/caregivers/:id", h.GetCaregiver)
	doctors.PUT("/caregivers/:id", h.UpdateCaregiver)
	doctors.DELETE("/caregivers/:id", h.DeleteCaregiver)

	admin := doctors.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/doctors", h.ListDoctors)
	admin.POST("/doctors", h.RegisterDoctor)

	respondents := api.Group("", auth.RequirePrincipal(auth.PrincipalRespondent))
	respondents.GET("/respondents/me", h.GetCurrentRespondent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Auth Handlers --

func (h *Handler) LoginDoctor(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tok, err := h.svc.LoginDoctor(c.Request().Context(), creds)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) RegisterRespondent(c echo.Context) error {
	var req RegisterRespondentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tok, err := h.svc.RegisterRespondent(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tok)
}

func (h *Handler) LoginRespondent(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tok, err := h.svc.LoginRespondent(c.Request().Context(), creds)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tok)
}

// -- Doctor Handlers --

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req RegisterDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RegisterDoctor(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetCurrentDoctor(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), p, p.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var pt Patient
	if err := c.Bind(&pt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p, &pt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, pt)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	pt, err := h.svc.GetPatient(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var pt Patient
	if err := c.Bind(&pt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pt.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), p, &pt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Caregiver Handlers --

func (h *Handler) CreateCaregiver(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var cg Caregiver
	if err := c.Bind(&cg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCaregiver(c.Request().Context(), p, &cg); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cg)
}

func (h *Handler) GetCaregiver(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	cg, err := h.svc.GetCaregiver(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cg)
}

func (h *Handler) ListCaregivers(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCaregivers(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) ListPatientCaregivers(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCaregiversByPatient(c.Request().Context(), p, id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) UpdateCaregiver(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var cg Caregiver
	if err := c.Bind(&cg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cg.ID = id
	if err := h.svc.UpdateCaregiver(c.Request().Context(), p, &cg); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cg)
}

func (h *Handler) DeleteCaregiver(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCaregiver(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Respondent Handlers --

func (h *Handler) GetCurrentRespondent(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetRespondent(c.Request().Context(), p, p.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
