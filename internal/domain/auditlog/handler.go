package auditlog

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

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
	api.GET("/audit-logs", h.List, auth.RequirePermission(auth.AuditRead))
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		EntityType: c.QueryParam("entity_type"),
		Action:     Action(c.QueryParam("action")),
	}
	var err error
	if f.EntityID, err = httputil.QueryUUID(c, "entity_id"); err != nil {
		return err
	}
	if f.ActorID, err = httputil.QueryUUID(c, "actor_id"); err != nil {
		return err
	}
	if f.From, f.To, err = httputil.QueryRange(c, h.loc); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
