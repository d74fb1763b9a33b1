package auditlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, actor_id, actor_username, action, entity_type, entity_id, before, after, created_at`

func scan(row pgx.Row) (*AuditLog, error) {
	var l AuditLog
	var before, after []byte
	if err := row.Scan(&l.ID, &l.ActorID, &l.ActorUsername, &l.Action, &l.EntityType,
		&l.EntityID, &before, &after, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Before, l.After = before, after
	return &l, nil
}

// Create inserts through the transaction in ctx when there is one, so the
// entry commits or rolls back with the change it describes.
func (r *repoPG) Create(ctx context.Context, l *AuditLog) error {
	l.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_username, action, entity_type, entity_id, before, after)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		l.ID, l.ActorID, l.ActorUsername, l.Action, l.EntityType, l.EntityID,
		nullJSON(l.Before), nullJSON(l.After)).Scan(&l.CreatedAt)
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*AuditLog, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	add := func(clause string, v interface{}) {
		where += fmt.Sprintf(clause, idx)
		args = append(args, v)
		idx++
	}
	if f.EntityType != "" {
		add(` AND entity_type = $%d`, f.EntityType)
	}
	if f.EntityID != nil {
		add(` AND entity_id = $%d`, *f.EntityID)
	}
	if f.ActorID != nil {
		add(` AND actor_id = $%d`, *f.ActorID)
	}
	if f.Action != "" {
		add(` AND action = $%d`, f.Action)
	}
	if f.From != nil {
		add(` AND created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND created_at <= $%d`, *f.To)
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + cols + ` FROM audit_log` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	rows, err := q.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AuditLog
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
