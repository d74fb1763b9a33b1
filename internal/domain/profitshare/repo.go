package profitshare

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Share) error
	GetByID(ctx context.Context, id uuid.UUID) (*Share, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Share, error)
	Update(ctx context.Context, s *Share) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, dentistID *uuid.UUID, limit, offset int) ([]*Share, int, error)
	All(ctx context.Context) ([]*Share, error)
}
