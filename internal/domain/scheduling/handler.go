package scheduling

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

func NewHandler(svc *Service, loc *time.Location) *Handler {
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireAnyPermission(auth.AppointmentsRead, auth.AppointmentsReadOwn)
	api.GET("/appointments", h.ListAppointments, read)
	api.GET("/appointments/:id", h.GetAppointment, read)

	write := auth.RequireAnyPermission(auth.AppointmentsWrite, auth.AppointmentsWriteOwn)
	api.POST("/appointments", h.CreateAppointment, write)
	api.PUT("/appointments/:id", h.UpdateAppointment, write)
	api.POST("/appointments/:id/status", h.ChangeStatus, write)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in AppointmentInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	f := Filter{Status: lifecycle.AppointmentStatus(c.QueryParam("status"))}
	if f.DentistID, err = httputil.QueryUUID(c, "dentist_id"); err != nil {
		return err
	}
	if f.PatientID, err = httputil.QueryUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.From, f.To, err = httputil.QueryRange(c, h.loc); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in AppointmentUpdate
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in StatusChange
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	res, err := h.svc.ChangeAppointmentStatus(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
