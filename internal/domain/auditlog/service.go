package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinic/clinic/internal/platform/auth"
)

// Recorder writes audit entries. Services call it inside their transaction.
type Recorder interface {
	Record(ctx context.Context, actor auth.Actor, e Entry) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, actor auth.Actor, e Entry) error {
	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Action, e.EntityType, err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Action, e.EntityType, err)
	}
	l := &AuditLog{
		ActorUsername: actor.Username,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		Before:        before,
		After:         after,
	}
	if !actor.IsSystem() {
		id := actor.UserID
		l.ActorID = &id
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Action, e.EntityType, err)
	}
	return nil
}

func snapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*AuditLog, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
