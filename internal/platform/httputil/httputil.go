// Package httputil holds the small request helpers shared by the domain
// handlers.
package httputil

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const dateLayout = "2006-01-02"

// ParamID parses the :id path parameter.
func ParamID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Field("id", "must be a valid UUID")
	}
	return id, nil
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Field(name, "must be a valid UUID")
	}
	return &id, nil
}

// QueryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date. Dates
// are read as midnight in loc.
func QueryTime(c echo.Context, name string, loc *time.Location) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, apperr.Field(name, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	return &t, nil
}

// QueryRange parses ?from= and ?to= and rejects to < from. A date-only
// ?to= covers that whole day.
func QueryRange(c echo.Context, loc *time.Location) (from, to *time.Time, err error) {
	if from, err = QueryTime(c, "from", loc); err != nil {
		return nil, nil, err
	}
	if to, err = QueryTime(c, "to", loc); err != nil {
		return nil, nil, err
	}
	if to != nil && len(c.QueryParam("to")) == len(dateLayout) {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, apperr.Field("to", "must not be before from")
	}
	return from, to, nil
}

// BindValid binds the request body into v and runs the registered validator.
func BindValid(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(v)
}
