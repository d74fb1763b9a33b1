package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), svc, e
}

func jsonRequest(method, body string, actor *auth.Actor) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *actor))
	}
	return req
}

func TestHandler_CreateUser(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"username":"dr.nour","password":"password1","full_name":"Nour","role":"DENTIST"}`, &manager), rec)

	if err := h.CreateUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password data: %s", rec.Body.String())
	}
}

func TestHandler_CreateUser_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"username":"x","password":"p","role":"NURSE"}`, &manager), httptest.NewRecorder())
	err := h.CreateUser(c)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || len(ae.Details) < 3 {
		t.Errorf("expected per-field details, got %+v", ae)
	}
}

func TestHandler_Login(t *testing.T) {
	h, svc, e := newTestHandler()
	_, _ = svc.CreateUser(context.Background(), manager, CreateUserInput{Username: "dr.hala", Password: "password1", FullName: "Hala", Role: auth.RoleDentist})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"username":"dr.hala","password":"password1"}`, nil), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a token")
	}

	c = e.NewContext(jsonRequest(http.MethodPost, `{"username":"dr.hala","password":"nope"}`, nil), httptest.NewRecorder())
	if err := h.Login(c); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_Me_RequiresActor(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.Me(c); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_ListDentists(t *testing.T) {
	h, svc, e := newTestHandler()
	_, _ = svc.CreateUser(context.Background(), manager, CreateUserInput{Username: "dr.one", Password: "password1", FullName: "One", Role: auth.RoleDentist})
	_, _ = svc.CreateUser(context.Background(), manager, CreateUserInput{Username: "mgr.two", Password: "password1", FullName: "Two", Role: auth.RoleManager})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "", &manager), rec)
	if err := h.ListDentists(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var users []User
	_ = json.Unmarshal(rec.Body.Bytes(), &users)
	if len(users) != 1 || users[0].Username != "dr.one" {
		t.Errorf("expected only the dentist, got %+v", users)
	}
}

func TestHandler_GetUser_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodGet, "", &manager), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.GetUser(c); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
