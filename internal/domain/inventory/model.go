package inventory

import (
	"time"

	"github.com/google/uuid"
)

type Item struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Unit         string    `db:"unit" json:"unit"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	ReorderLevel int64     `db:"reorder_level" json:"reorder_level"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item has reached its reorder level.
func (i *Item) LowStock() bool { return i.Quantity <= i.ReorderLevel }

type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
)

func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut || t == MovementAdjust
}

// Delta is the stock change a movement of qty applies.
func (t MovementType) Delta(qty int64) int64 {
	switch t {
	case MovementIn:
		return qty
	case MovementOut:
		return -qty
	}
	return 0
}

type Movement struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	ItemID      uuid.UUID    `db:"item_id" json:"item_id"`
	Type        MovementType `db:"type" json:"type"`
	Quantity    int64        `db:"quantity" json:"quantity"`
	UnitCostSyp *int64       `db:"unit_cost_syp" json:"unit_cost_syp,omitempty"`
	Reason      *string      `db:"reason" json:"reason,omitempty"`
	CreatedBy   *uuid.UUID   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

type ItemInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Unit         string `json:"unit" validate:"required,max=50"`
	ReorderLevel int64  `json:"reorder_level" validate:"gte=0"`
}

type ItemUpdate struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	Unit         *string `json:"unit" validate:"omitempty,min=1,max=50"`
	ReorderLevel *int64  `json:"reorder_level" validate:"omitempty,gte=0"`
	Active       *bool   `json:"active"`
}

type MovementInput struct {
	ItemID      uuid.UUID    `json:"item_id" validate:"required"`
	Type        MovementType `json:"type" validate:"required,oneof=IN OUT ADJUST"`
	Quantity    int64        `json:"quantity" validate:"gt=0"`
	UnitCostSyp *int64       `json:"unit_cost_syp"`
	Reason      *string      `json:"reason" validate:"omitempty,max=1000"`
}

type ItemFilter struct {
	Query    string
	LowStock bool
	Active   *bool
}

type MovementFilter struct {
	ItemID *uuid.UUID
	Type   MovementType
	From   *time.Time
	To     *time.Time
}

type itemSnapshot struct {
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	Quantity     int64  `json:"quantity"`
	ReorderLevel int64  `json:"reorder_level"`
	Active       bool   `json:"active"`
}

func (i *Item) snapshot() itemSnapshot {
	return itemSnapshot{Name: i.Name, Unit: i.Unit, Quantity: i.Quantity, ReorderLevel: i.ReorderLevel, Active: i.Active}
}

type movementSnapshot struct {
	MovementID  uuid.UUID    `json:"movement_id"`
	Type        MovementType `json:"type"`
	Quantity    int64        `json:"quantity"`
	UnitCostSyp *int64       `json:"unit_cost_syp,omitempty"`
	Stock       int64        `json:"stock"`
}
