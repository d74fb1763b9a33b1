package inventory

import (
	"context"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog/auditlogtest"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/pagination"
)

// -- Mocks --

type mockItemRepo struct {
	items  map[uuid.UUID]*Item
	locked []uuid.UUID
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockItemRepo) Create(_ context.Context, i *Item) error {
	for _, existing := range m.items {
		if strings.EqualFold(existing.Name, i.Name) {
			return apperr.Rule("inventory item with this name already exists")
		}
	}
	i.ID = uuid.New()
	i.CreatedAt = time.Now()
	i.UpdatedAt = i.CreatedAt
	cp := *i
	m.items[i.ID] = &cp
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item")
	}
	cp := *i
	return &cp, nil
}

func (m *mockItemRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Item, error) {
	m.locked = append(m.locked, id)
	return m.GetByID(ctx, id)
}

func (m *mockItemRepo) Update(_ context.Context, i *Item) error {
	stored := m.items[i.ID]
	stored.Name, stored.Unit, stored.ReorderLevel, stored.Active = i.Name, i.Unit, i.ReorderLevel, i.Active
	return nil
}

func (m *mockItemRepo) SetQuantity(_ context.Context, id uuid.UUID, qty int64) error {
	m.items[id].Quantity = qty
	return nil
}

func (m *mockItemRepo) List(_ context.Context, f ItemFilter, limit, offset int) ([]*Item, int, error) {
	var out []*Item
	for _, i := range m.items {
		if f.Query != "" && !strings.Contains(strings.ToLower(i.Name), strings.ToLower(f.Query)) {
			continue
		}
		if f.LowStock && !i.LowStock() {
			continue
		}
		if f.Active != nil && i.Active != *f.Active {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return pagination.Window(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

type mockMovementRepo struct {
	movements []*Movement
}

func (m *mockMovementRepo) Create(_ context.Context, mv *Movement) error {
	mv.ID = uuid.New()
	mv.CreatedAt = time.Now()
	cp := *mv
	m.movements = append(m.movements, &cp)
	return nil
}

func (m *mockMovementRepo) List(_ context.Context, f MovementFilter, limit, offset int) ([]*Movement, int, error) {
	var out []*Movement
	for _, mv := range m.movements {
		if f.ItemID != nil && mv.ItemID != *f.ItemID {
			continue
		}
		if f.Type != "" && mv.Type != f.Type {
			continue
		}
		out = append(out, mv)
	}
	return pagination.Window(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

var manager = auth.Actor{UserID: uuid.New(), Username: "manager", Role: auth.RoleManager}

func newTestService() (*Service, *mockItemRepo, *mockMovementRepo, *auditlogtest.Memory) {
	items, moves, audit := newMockItemRepo(), &mockMovementRepo{}, &auditlogtest.Memory{}
	tx := db.TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) })
	return NewService(tx, items, moves, audit), items, moves, audit
}

func costPtr(v int64) *int64 { return &v }

func seedItem(t *testing.T, svc *Service, name string, reorder int64) *Item {
	t.Helper()
	i, err := svc.CreateItem(context.Background(), manager, ItemInput{Name: name, Unit: "box", ReorderLevel: reorder})
	if err != nil {
		t.Fatalf("CreateItem() error: %v", err)
	}
	return i
}

// -- Items --

func TestCreateItem(t *testing.T) {
	svc, _, _, audit := newTestService()
	i := seedItem(t, svc, " Gloves ", 5)
	if i.Name != "Gloves" || i.Quantity != 0 || !i.Active {
		t.Errorf("unexpected item %+v", i)
	}
	if got := audit.Actions(); len(got) != 1 || got[0] != "CREATE:inventory_item" {
		t.Errorf("unexpected audit %v", got)
	}
	if _, err := svc.CreateItem(context.Background(), manager, ItemInput{Name: "gloves", Unit: "box"}); !apperr.IsRule(err) {
		t.Errorf("expected duplicate name rule error, got %v", err)
	}
	if _, err := svc.CreateItem(context.Background(), manager, ItemInput{Name: "Masks", Unit: " "}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for blank unit, got %v", err)
	}
}

func TestUpdateItem(t *testing.T) {
	svc, _, _, audit := newTestService()
	i := seedItem(t, svc, "Gloves", 5)
	reorder, inactive := int64(10), false
	got, err := svc.UpdateItem(context.Background(), manager, i.ID, ItemUpdate{ReorderLevel: &reorder, Active: &inactive})
	if err != nil {
		t.Fatalf("UpdateItem() error: %v", err)
	}
	if got.ReorderLevel != 10 || got.Active {
		t.Errorf("unexpected item %+v", got)
	}
	if audit.Actions()[1] != "UPDATE:inventory_item" {
		t.Errorf("unexpected audit %v", audit.Actions())
	}
	neg := int64(-1)
	if _, err := svc.UpdateItem(context.Background(), manager, i.ID, ItemUpdate{ReorderLevel: &neg}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateItem(context.Background(), manager, uuid.New(), ItemUpdate{}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

// -- Movements --

func TestCreateMovement_InOutAdjust(t *testing.T) {
	svc, items, moves, audit := newTestService()
	ctx := context.Background()
	i := seedItem(t, svc, "Anesthetic", 2)

	_, got, err := svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: 10, UnitCostSyp: costPtr(1500)})
	if err != nil {
		t.Fatalf("IN: %v", err)
	}
	if got.Quantity != 10 {
		t.Errorf("after IN expected 10, got %d", got.Quantity)
	}

	if _, got, err = svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementOut, Quantity: 4}); err != nil {
		t.Fatalf("OUT: %v", err)
	}
	if got.Quantity != 6 {
		t.Errorf("after OUT expected 6, got %d", got.Quantity)
	}

	if _, got, err = svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementAdjust, Quantity: 3}); err != nil {
		t.Fatalf("ADJUST: %v", err)
	}
	if got.Quantity != 6 || items.items[i.ID].Quantity != 6 {
		t.Errorf("ADJUST must not change stock, got %d", got.Quantity)
	}

	if len(moves.movements) != 3 {
		t.Errorf("expected 3 movements, got %d", len(moves.movements))
	}
	if len(items.locked) != 3 {
		t.Errorf("expected the item locked on every movement, got %d", len(items.locked))
	}
	for _, a := range audit.Actions()[1:] {
		if a != "MOVEMENT:inventory_item" {
			t.Errorf("unexpected audit action %s", a)
		}
	}
}

func TestCreateMovement_OutExceedsStock(t *testing.T) {
	svc, items, moves, audit := newTestService()
	ctx := context.Background()
	i := seedItem(t, svc, "Burs", 1)
	_, _, _ = svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: 3, UnitCostSyp: costPtr(2000)})
	auditBefore := len(audit.Entries)

	_, _, err := svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementOut, Quantity: 4})
	if !apperr.IsRule(err) {
		t.Fatalf("expected rule error, got %v", err)
	}
	if items.items[i.ID].Quantity != 3 {
		t.Errorf("stock must stay 3, got %d", items.items[i.ID].Quantity)
	}
	if len(moves.movements) != 1 || len(audit.Entries) != auditBefore {
		t.Error("rejected movement must not write")
	}
}

func TestCreateMovement_InOverflowRejected(t *testing.T) {
	svc, items, moves, _ := newTestService()
	ctx := context.Background()
	i := seedItem(t, svc, "Cotton rolls", 1)
	if _, _, err := svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: 5, UnitCostSyp: costPtr(100)}); err != nil {
		t.Fatalf("CreateMovement() error: %v", err)
	}

	_, _, err := svc.CreateMovement(ctx, manager, MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: math.MaxInt64, UnitCostSyp: costPtr(1)})
	if !apperr.IsRule(err) {
		t.Fatalf("expected rule error, got %v", err)
	}
	if items.items[i.ID].Quantity != 5 {
		t.Errorf("stock must stay 5, got %d", items.items[i.ID].Quantity)
	}
	if len(moves.movements) != 1 {
		t.Errorf("rejected movement must not be stored, have %d", len(moves.movements))
	}
}

func TestCreateMovement_Validation(t *testing.T) {
	svc, _, moves, _ := newTestService()
	i := seedItem(t, svc, "Cotton", 0)
	tests := []struct {
		name string
		in   MovementInput
	}{
		{"IN without cost", MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: 5}},
		{"IN with zero cost", MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: 5, UnitCostSyp: costPtr(0)}},
		{"zero quantity", MovementInput{ItemID: i.ID, Type: MovementOut, Quantity: 0}},
		{"negative quantity", MovementInput{ItemID: i.ID, Type: MovementIn, Quantity: -1, UnitCostSyp: costPtr(10)}},
		{"unknown type", MovementInput{ItemID: i.ID, Type: "LOSS", Quantity: 1}},
	}
	for _, tt := range tests {
		if _, _, err := svc.CreateMovement(context.Background(), manager, tt.in); !apperr.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}
	if len(moves.movements) != 0 {
		t.Error("no movement expected")
	}
	if _, _, err := svc.CreateMovement(context.Background(), manager, MovementInput{ItemID: uuid.New(), Type: MovementOut, Quantity: 1}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListItems_LowStock(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	low := seedItem(t, svc, "Needles", 5)
	ok := seedItem(t, svc, "Gauze", 2)
	_, _, _ = svc.CreateMovement(ctx, manager, MovementInput{ItemID: low.ID, Type: MovementIn, Quantity: 5, UnitCostSyp: costPtr(100)})
	_, _, _ = svc.CreateMovement(ctx, manager, MovementInput{ItemID: ok.ID, Type: MovementIn, Quantity: 20, UnitCostSyp: costPtr(100)})

	items, total, err := svc.ListItems(ctx, ItemFilter{LowStock: true}, 20, 0)
	if err != nil {
		t.Fatalf("ListItems() error: %v", err)
	}
	if total != 1 || items[0].ID != low.ID {
		t.Errorf("expected only Needles, got %d items", total)
	}
}

func TestListMovements_BadRange(t *testing.T) {
	svc, _, _, _ := newTestService()
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	if _, _, err := svc.ListMovements(context.Background(), MovementFilter{From: &from, To: &to}, 20, 0); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
