package identity

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
	api.POST("/auth/login", h.Login)

	session := auth.RequireSession()
	api.GET("/auth/me", h.Me, session)
	api.GET("/dentists", h.ListDentists, session)

	read := auth.RequirePermission(auth.UsersRead)
	api.GET("/users", h.ListUsers, read)
	api.GET("/users/:id", h.GetUser, read)

	write := auth.RequirePermission(auth.UsersWrite)
	api.POST("/users", h.CreateUser, write)
	api.PUT("/users/:id", h.UpdateUser, write)
	api.POST("/users/:id/password", h.ResetPassword, write)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	me, err := h.svc.Me(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *Handler) ListDentists(c echo.Context) error {
	items, err := h.svc.ListDentists(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListUsers(c echo.Context) error {
	f := UserFilter{Role: auth.Role(c.QueryParam("role")), Query: c.QueryParam("q")}
	switch c.QueryParam("active") {
	case "true":
		v := true
		f.Active = &v
	case "false":
		v := false
		f.Active = &v
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	var in CreateUserInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in UpdateUserInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	actor, err := auth.ActorFrom(c)
	if err != nil {
		return err
	}
	id, err := httputil.ParamID(c)
	if err != nil {
		return err
	}
	var in ResetPasswordInput
	if err := httputil.BindValid(c, &in); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.Request().Context(), actor, id, in.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
