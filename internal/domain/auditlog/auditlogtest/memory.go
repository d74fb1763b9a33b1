// Package auditlogtest provides an in-process audit recorder for tests of
// the services that write audit entries.
package auditlogtest

import (
	"context"
	"sync"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/platform/auth"
)

// Memory is an auditlog.Recorder that keeps entries in memory.
type Memory struct {
	mu      sync.Mutex
	Entries []auditlog.Entry
	Actors  []auth.Actor
	Err     error
}

func (m *Memory) Record(_ context.Context, actor auth.Actor, e auditlog.Entry) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	m.Actors = append(m.Actors, actor)
	return nil
}

// Actions lists the recorded actions in order, formatted as ACTION:entity.
func (m *Memory) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = string(e.Action) + ":" + e.EntityType
	}
	return out
}
