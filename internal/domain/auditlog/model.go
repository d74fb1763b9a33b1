package auditlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate        Action = "CREATE"
	ActionUpdate        Action = "UPDATE"
	ActionDelete        Action = "DELETE"
	ActionStatusChange  Action = "STATUS_CHANGE"
	ActionVoid          Action = "VOID"
	ActionLogin         Action = "LOGIN"
	ActionPasswordReset Action = "PASSWORD_RESET"
	ActionMovement      Action = "MOVEMENT"
)

// AuditLog is one append-only audit row. Before and After hold JSON
// snapshots of the entity; either may be null.
type AuditLog struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ActorID       *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	ActorUsername string          `db:"actor_username" json:"actor_username"`
	Action        Action          `db:"action" json:"action"`
	EntityType    string          `db:"entity_type" json:"entity_type"`
	EntityID      uuid.UUID       `db:"entity_id" json:"entity_id"`
	Before        json.RawMessage `db:"before" json:"before,omitempty"`
	After         json.RawMessage `db:"after" json:"after,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Entry is what services hand to the recorder.
type Entry struct {
	Action     Action
	EntityType string
	EntityID   uuid.UUID
	Before     interface{}
	After      interface{}
}

type Filter struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Action     Action
	From       *time.Time
	To         *time.Time
}
