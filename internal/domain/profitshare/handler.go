package profitshare

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
	g := api.Group("/profit-shares")
	read := auth.RequireAnyPermission(auth.ProfitSharesRead, auth.ProfitSharesReadOwn)
	g.GET("", h.ListShares, read)
	g.GET("/:id", h.GetShare, read)

	write := auth.RequirePermission(auth.ProfitSharesWrite)
	g.POST("", h.CreateShare, write)
	g.PUT("/:id", h.UpdateShare, write)
	g.DELETE("/:id", h.DeleteShare, write)
}

func (h *Handler) CreateShare(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in ShareInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	sh, err := h.svc.CreateShare(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sh)
}

func (h *Handler) GetShare(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	sh, err := h.svc.GetShare(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) ListShares(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListShares(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateShare(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in ShareUpdate
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	sh, err := h.svc.UpdateShare(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) DeleteShare(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteShare(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
