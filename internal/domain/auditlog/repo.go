package auditlog

import "context"

type Repository interface {
	Create(ctx context.Context, l *AuditLog) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*AuditLog, int, error)
}
