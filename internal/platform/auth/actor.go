package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type actorKey struct{}

// Actor is the authenticated caller. Handlers read it from the request once
// and pass it to every service call.
type Actor struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}

// System is the actor used by CLI bootstrap commands.
var System = Actor{Username: "system", Role: RoleManager}

// IsSystem reports whether a is the CLI actor (it has no user row).
func (a Actor) IsSystem() bool { return a.UserID == uuid.Nil }

func (a Actor) Can(p Permission) bool { return HasPermission(a.Role, p) }

// Scope resolves row scoping for a pair of permissions. It returns
// (nil, nil) when the actor holds the unrestricted permission, a pointer to
// the actor's own id when only the ":own" variant is held, and a forbidden
// error otherwise.
func (a Actor) Scope(all, own Permission) (*uuid.UUID, error) {
	if a.Can(all) {
		return nil, nil
	}
	if a.Can(own) {
		id := a.UserID
		return &id, nil
	}
	return nil, apperr.Forbidden("required permission: " + string(all))
}

// Owns reports whether a scoped actor may see a row belonging to dentistID.
func Owns(scope *uuid.UUID, dentistID uuid.UUID) bool {
	return scope == nil || *scope == dentistID
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActorFrom extracts the caller from an echo request. Routes are wrapped in
// RequirePermission, so a missing actor is reported as 401.
func ActorFrom(c echo.Context) (Actor, error) {
	a, ok := ActorFromContext(c.Request().Context())
	if !ok {
		return Actor{}, apperr.Unauthorized("authentication required")
	}
	return a, nil
}
