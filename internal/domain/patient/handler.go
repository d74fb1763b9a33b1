package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequirePermission(auth.PatientsRead)
	api.GET("/patients", h.ListPatients, read)
	api.GET("/patients/:id", h.GetPatient, read)

	write := auth.RequirePermission(auth.PatientsWrite)
	api.POST("/patients", h.CreatePatient, write)
	api.PUT("/patients/:id", h.UpdatePatient, write)

	api.DELETE("/patients/:id", h.DeletePatient, auth.RequirePermission(auth.PatientsDelete))

	caseRead := auth.RequirePermission(auth.MedicalCasesRead)
	api.GET("/patients/:id/cases", h.ListCases, caseRead)
	api.GET("/cases/:id", h.GetCase, caseRead)

	caseWrite := auth.RequirePermission(auth.MedicalCasesWrite)
	api.POST("/patients/:id/cases", h.CreateCase, caseWrite)
	api.PUT("/cases/:id", h.UpdateCase, caseWrite)
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in PatientInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in PatientInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Medical Case Handlers --

func (h *Handler) CreateCase(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	patientID, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in CaseInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	m, err := h.svc.CreateCase(c.Request().Context(), actor, patientID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListCases(c echo.Context) error {
	patientID, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCases(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateCase(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in CaseUpdate
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	m, err := h.svc.UpdateCase(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
