package billing

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
	visits := auth.RequireAnyPermission(auth.VisitsRead, auth.VisitsReadOwn)
	api.GET("/visits", h.ListVisits, visits)
	api.GET("/visits/:id", h.GetVisit, visits)

	invoices := auth.RequireAnyPermission(auth.InvoicesRead, auth.InvoicesReadOwn)
	api.GET("/invoices", h.ListInvoices, invoices)
	api.GET("/invoices/:id", h.GetInvoice, invoices)
	api.PATCH("/invoices/:id/status", h.UpdateInvoiceStatus, auth.RequirePermission(auth.InvoicesWrite))

	api.GET("/payments", h.ListPayments, auth.RequireAnyPermission(auth.PaymentsRead, auth.PaymentsReadOwn))
	api.POST("/payments", h.CreatePayment, auth.RequirePermission(auth.PaymentsWrite))
	api.POST("/payments/:id/void", h.VoidPayment, auth.RequirePermission(auth.PaymentsVoid))
}

// -- Visit Handlers --

func (h *Handler) GetVisit(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVisit(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var f VisitFilter
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
	items, total, err := h.svc.ListVisits(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Invoice Handlers --

func (h *Handler) GetInvoice(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	f := InvoiceFilter{Status: lifecycle.InvoiceStatus(c.QueryParam("status"))}
	if f.DentistID, err = httputil.QueryUUID(c, "dentist_id"); err != nil {
		return err
	}
	if f.PatientID, err = httputil.QueryUUID(c, "patient_id"); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInvoices(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateInvoiceStatus(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in InvoiceStatusInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	inv, err := h.svc.UpdateInvoiceStatus(c.Request().Context(), actor, id, in.Status, in.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// -- Payment Handlers --

func (h *Handler) ListPayments(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	f := PaymentFilter{
		Status: PaymentStatus(c.QueryParam("status")),
		Method: PaymentMethod(c.QueryParam("method")),
	}
	if f.InvoiceID, err = httputil.QueryUUID(c, "invoice_id"); err != nil {
		return err
	}
	if f.DentistID, err = httputil.QueryUUID(c, "dentist_id"); err != nil {
		return err
	}
	if f.From, f.To, err = httputil.QueryRange(c, h.loc); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreatePayment(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreatePayment(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) VoidPayment(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in VoidInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	p, err := h.svc.VoidPayment(c.Request().Context(), actor, id, in.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
