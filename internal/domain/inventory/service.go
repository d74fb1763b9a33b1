package inventory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

const entityItem = "inventory_item"

type Service struct {
	tx        db.TxRunner
	items     ItemRepository
	movements MovementRepository
	audit     auditlog.Recorder
}

func NewService(tx db.TxRunner, items ItemRepository, movements MovementRepository, audit auditlog.Recorder) *Service {
	return &Service{tx: tx, items: items, movements: movements, audit: audit}
}

// -- Items --

// CreateItem registers an active item with zero stock. Stock only changes
// through movements.
func (s *Service) CreateItem(ctx context.Context, actor auth.Actor, in ItemInput) (*Item, error) {
	i := &Item{
		Name:         strings.TrimSpace(in.Name),
		Unit:         strings.TrimSpace(in.Unit),
		ReorderLevel: in.ReorderLevel,
		Active:       true,
	}
	if i.Name == "" {
		return nil, apperr.Field("name", "is required")
	}
	if i.Unit == "" {
		return nil, apperr.Field("unit", "is required")
	}
	if i.ReorderLevel < 0 {
		return nil, apperr.Field("reorder_level", "must not be negative")
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, i); err != nil {
			return fmt.Errorf("create inventory item: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityItem, EntityID: i.ID, After: i.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, f ItemFilter, limit, offset int) ([]*Item, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.items.List(ctx, f, limit, offset)
}

func (s *Service) UpdateItem(ctx context.Context, actor auth.Actor, id uuid.UUID, in ItemUpdate) (*Item, error) {
	var i *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if i, err = s.items.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		before := i.snapshot()
		if in.Name != nil {
			if i.Name = strings.TrimSpace(*in.Name); i.Name == "" {
				return apperr.Field("name", "is required")
			}
		}
		if in.Unit != nil {
			if i.Unit = strings.TrimSpace(*in.Unit); i.Unit == "" {
				return apperr.Field("unit", "is required")
			}
		}
		if in.ReorderLevel != nil {
			if *in.ReorderLevel < 0 {
				return apperr.Field("reorder_level", "must not be negative")
			}
			i.ReorderLevel = *in.ReorderLevel
		}
		if in.Active != nil {
			i.Active = *in.Active
		}
		if err := s.items.Update(ctx, i); err != nil {
			return fmt.Errorf("update inventory item: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionUpdate, EntityType: entityItem, EntityID: i.ID, Before: before, After: i.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return i, nil
}

// -- Movements --

func checkMovement(in MovementInput) error {
	if !in.Type.Valid() {
		return apperr.Field("type", "must be one of: IN OUT ADJUST")
	}
	if in.Quantity <= 0 {
		return apperr.Field("quantity", "must be greater than 0")
	}
	if in.Type == MovementIn && (in.UnitCostSyp == nil || *in.UnitCostSyp <= 0) {
		return apperr.Field("unit_cost_syp", "is required and must be greater than 0 for IN movements")
	}
	if in.UnitCostSyp != nil && *in.UnitCostSyp < 0 {
		return apperr.Field("unit_cost_syp", "must not be negative")
	}
	return nil
}

// CreateMovement records a stock movement and applies its delta to the
// item in the same transaction. The item row stays locked until commit, so
// concurrent OUT movements cannot drive stock below zero.
func (s *Service) CreateMovement(ctx context.Context, actor auth.Actor, in MovementInput) (*Movement, *Item, error) {
	if err := checkMovement(in); err != nil {
		return nil, nil, err
	}
	m := &Movement{
		ItemID:      in.ItemID,
		Type:        in.Type,
		Quantity:    in.Quantity,
		UnitCostSyp: in.UnitCostSyp,
		Reason:      in.Reason,
	}
	if !actor.IsSystem() {
		id := actor.UserID
		m.CreatedBy = &id
	}

	var item *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if item, err = s.items.GetByIDForUpdate(ctx, in.ItemID); err != nil {
			return err
		}
		if in.Type == MovementOut && in.Quantity > item.Quantity {
			return apperr.Rule("insufficient stock for %s: requested %d, available %d", item.Name, in.Quantity, item.Quantity)
		}
		if in.Type == MovementIn && in.Quantity > math.MaxInt64-item.Quantity {
			return apperr.Rule("stock for %s cannot exceed %d", item.Name, int64(math.MaxInt64))
		}
		if err := s.movements.Create(ctx, m); err != nil {
			return fmt.Errorf("create inventory movement: %w", err)
		}
		before := item.Quantity
		if delta := in.Type.Delta(in.Quantity); delta != 0 {
			item.Quantity += delta
			if err := s.items.SetQuantity(ctx, item.ID, item.Quantity); err != nil {
				return fmt.Errorf("update stock: %w", err)
			}
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action:     auditlog.ActionMovement,
			EntityType: entityItem,
			EntityID:   item.ID,
			Before:     map[string]int64{"stock": before},
			After: movementSnapshot{
				MovementID: m.ID, Type: m.Type, Quantity: m.Quantity, UnitCostSyp: m.UnitCostSyp, Stock: item.Quantity,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return m, item, nil
}

func (s *Service) ListMovements(ctx context.Context, f MovementFilter, limit, offset int) ([]*Movement, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperr.Field("type", "must be one of: IN OUT ADJUST")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Field("to", "must not be before from")
	}
	return s.movements.List(ctx, f, limit, offset)
}
