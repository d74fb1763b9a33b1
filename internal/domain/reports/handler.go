package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httputil"
	"github.com/clinic/clinic/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
	loc *time.Location
}

func NewHandler(svc *Service, loc *time.Location) *Handler {
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports")
	own := auth.RequireAnyPermission(auth.ReportsRead, auth.ReportsReadOwn)
	g.GET("/financial", h.Financial, own)
	g.GET("/financial/export", h.ExportFinancial, own)
	g.GET("/appointments", h.Appointments, own)
	g.GET("/low-stock", h.LowStock, auth.RequireAnyPermission(auth.ReportsRead, auth.InventoryRead))
}

func (h *Handler) Financial(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	from, to, err := httputil.QueryRange(c, h.loc)
	if err != nil {
		return err
	}
	r, err := h.svc.Financial(c.Request().Context(), actor, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// ExportFinancial renders the workbook in memory so a failure still
// produces a JSON error instead of a truncated download.
func (h *Handler) ExportFinancial(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	from, to, err := httputil.QueryRange(c, h.loc)
	if err != nil {
		return err
	}
	r, err := h.svc.Financial(c.Request().Context(), actor, from, to)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteFinancialXLSX(&buf, r); err != nil {
		return err
	}
	name := fmt.Sprintf("financial_%s_%s.xlsx", r.From.Format("20060102"), r.To.Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *Handler) Appointments(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	from, to, err := httputil.QueryRange(c, h.loc)
	if err != nil {
		return err
	}
	r, err := h.svc.Appointments(c.Request().Context(), actor, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) LowStock(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.LowStock(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
