package inventory

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
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
	g := api.Group("/inventory")
	read := auth.RequirePermission(auth.InventoryRead)
	g.GET("/items", h.ListItems, read)
	g.GET("/items/:id", h.GetItem, read)
	g.GET("/movements", h.ListMovements, read)

	write := auth.RequirePermission(auth.InventoryWrite)
	g.POST("/items", h.CreateItem, write)
	g.PUT("/items/:id", h.UpdateItem, write)
	g.POST("/movements", h.CreateMovement, write)
}

// MovementResult is the response of a movement: the row and the item's new
// stock.
type MovementResult struct {
	Movement *Movement `json:"movement"`
	Item     *Item     `json:"item"`
}

func (h *Handler) CreateItem(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in ItemInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	item, err := h.svc.CreateItem(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	f := ItemFilter{Query: c.QueryParam("q")}
	if v := c.QueryParam("low_stock"); v != "" {
		low, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Field("low_stock", "must be true or false")
		}
		f.LowStock = low
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Field("active", "must be true or false")
		}
		f.Active = &active
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListItems(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in ItemUpdate
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	item, err := h.svc.UpdateItem(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CreateMovement(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in MovementInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	m, item, err := h.svc.CreateMovement(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, MovementResult{Movement: m, Item: item})
}

func (h *Handler) ListMovements(c echo.Context) error {
	var (
		f   MovementFilter
		err error
	)
	if f.ItemID, err = httputil.QueryUUID(c, "item_id"); err != nil {
		return err
	}
	f.Type = MovementType(c.QueryParam("type"))
	if f.From, f.To, err = httputil.QueryRange(c, h.loc); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMovements(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
