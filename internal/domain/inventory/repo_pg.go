package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

const itemCols = `id, name, unit, quantity, reorder_level, active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &i.Quantity, &i.ReorderLevel, &i.Active, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "inventory item")
	}
	return &i, nil
}

func (r *itemRepoPG) Create(ctx context.Context, i *Item) error {
	i.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_items (id, name, unit, quantity, reorder_level, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.Unit, i.Quantity, i.ReorderLevel, i.Active).Scan(&i.CreatedAt, &i.UpdatedAt)
	return db.MapError(err, "inventory item with this name")
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
}

func (r *itemRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id))
}

func (r *itemRepoPG) Update(ctx context.Context, i *Item) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory_items SET name=$2, unit=$3, reorder_level=$4, active=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		i.ID, i.Name, i.Unit, i.ReorderLevel, i.Active).Scan(&i.UpdatedAt)
	return db.MapError(err, "inventory item with this name")
}

func (r *itemRepoPG) SetQuantity(ctx context.Context, id uuid.UUID, qty int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE inventory_items SET quantity = $2, updated_at = NOW() WHERE id = $1`, id, qty)
	return db.MapError(err, "inventory item")
}

func (r *itemRepoPG) List(ctx context.Context, f ItemFilter, limit, offset int) ([]*Item, int, error) {
	clause := ` WHERE 1=1`
	var args []interface{}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		clause += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		clause += fmt.Sprintf(` AND active = $%d`, len(args))
	}
	if f.LowStock {
		clause += ` AND quantity <= reorder_level`
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	rows, err := q.Query(ctx, `SELECT `+itemCols+` FROM inventory_items`+clause+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

// =========== Movement Repository ===========

type movementRepoPG struct{ pool *pgxpool.Pool }

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository { return &movementRepoPG{pool: pool} }

const movementCols = `id, item_id, type, quantity, unit_cost_syp, reason, created_by, created_at`

func scanMovement(row pgx.Row) (*Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.ItemID, &m.Type, &m.Quantity, &m.UnitCostSyp, &m.Reason, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		return nil, db.MapError(err, "inventory movement")
	}
	return &m, nil
}

func (r *movementRepoPG) Create(ctx context.Context, m *Movement) error {
	m.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_movements (id, item_id, type, quantity, unit_cost_syp, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		m.ID, m.ItemID, m.Type, m.Quantity, m.UnitCostSyp, m.Reason, m.CreatedBy).Scan(&m.CreatedAt)
}

func (r *movementRepoPG) List(ctx context.Context, f MovementFilter, limit, offset int) ([]*Movement, int, error) {
	clause := ` WHERE 1=1`
	var args []interface{}
	if f.ItemID != nil {
		args = append(args, *f.ItemID)
		clause += fmt.Sprintf(` AND item_id = $%d`, len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		clause += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clause += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clause += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_movements`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	rows, err := q.Query(ctx, `SELECT `+movementCols+` FROM inventory_movements`+clause+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
