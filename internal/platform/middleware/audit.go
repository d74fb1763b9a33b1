package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

// MutationLog emits a structured "api_mutation" line for every state
// changing /api request, tagged with the caller. It complements the audit_log
// table, which only receives rows for mutations that committed.
func MutationLog(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutation(req.Method) || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			rid, _ := c.Get(RequestIDKey).(string)
			actor, _ := auth.ActorFromContext(req.Context())
			evt.
				Str("type", "api_mutation").
				Str("request_id", rid).
				Str("actor_id", actor.UserID.String()).
				Str("actor_role", string(actor.Role)).
				Str("entity", entityOf(req.URL.Path)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Msg("mutation")

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// entityOf returns the first path segment after /api/, e.g. "appointments"
// for /api/appointments/<id>/status.
func entityOf(path string) string {
	rest := strings.TrimPrefix(path, "/api/")
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}
