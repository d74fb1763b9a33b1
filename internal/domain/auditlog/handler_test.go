package auditlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func TestHandler_List(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	h := NewHandler(svc, time.UTC)
	id := uuid.New()
	_ = svc.Record(context.Background(), auth.System, Entry{Action: ActionCreate, EntityType: "patient", EntityID: id})
	_ = svc.Record(context.Background(), auth.System, Entry{Action: ActionCreate, EntityType: "invoice", EntityID: uuid.New()})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?entity_type=patient&entity_id="+id.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []AuditLog `json:"data"`
		Total int        `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Data[0].EntityID != id {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_List_BadFilter(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}), time.UTC)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?actor_id=abc", nil), httptest.NewRecorder())
	if err := h.List(c); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
