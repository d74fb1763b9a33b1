package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ItemRepository interface {
	Create(ctx context.Context, i *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// GetByIDForUpdate locks the item row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, i *Item) error
	SetQuantity(ctx context.Context, id uuid.UUID, qty int64) error
	List(ctx context.Context, f ItemFilter, limit, offset int) ([]*Item, int, error)
}

type MovementRepository interface {
	Create(ctx context.Context, m *Movement) error
	List(ctx context.Context, f MovementFilter, limit, offset int) ([]*Movement, int, error)
}
