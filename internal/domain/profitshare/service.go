package profitshare

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

const entityShare = "profit_share"

var hundred = decimal.NewFromInt(100)

// DentistDirectory resolves active dentist users.
type DentistDirectory interface {
	ActiveDentist(ctx context.Context, id uuid.UUID, lock bool) (*identity.User, error)
}

type Service struct {
	tx       db.TxRunner
	shares   Repository
	dentists DentistDirectory
	audit    auditlog.Recorder
}

func NewService(tx db.TxRunner, shares Repository, dentists DentistDirectory, audit auditlog.Recorder) *Service {
	return &Service{tx: tx, shares: shares, dentists: dentists, audit: audit}
}

func checkPercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return apperr.Field("percentage", "must be between 0 and 100")
	}
	if p.Exponent() < -2 {
		return apperr.Field("percentage", "must have at most 2 decimal places")
	}
	return nil
}

func (s *Service) CreateShare(ctx context.Context, actor auth.Actor, in ShareInput) (*Share, error) {
	if in.DentistID == uuid.Nil {
		return nil, apperr.Field("dentist_id", "is required")
	}
	if err := checkPercentage(in.Percentage); err != nil {
		return nil, err
	}
	sh := &Share{DentistID: in.DentistID, Percentage: in.Percentage}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.dentists.ActiveDentist(ctx, in.DentistID, false); err != nil {
			return err
		}
		if err := s.shares.Create(ctx, sh); err != nil {
			return fmt.Errorf("create profit share: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityShare, EntityID: sh.ID, After: sh.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// GetShare hides other dentists' shares from dentist callers.
func (s *Service) GetShare(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Share, error) {
	scope, err := actor.Scope(auth.ProfitSharesRead, auth.ProfitSharesReadOwn)
	if err != nil {
		return nil, err
	}
	sh, err := s.shares.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Owns(scope, sh.DentistID) {
		return nil, apperr.NotFound("profit share")
	}
	return sh, nil
}

func (s *Service) ListShares(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Share, int, error) {
	scope, err := actor.Scope(auth.ProfitSharesRead, auth.ProfitSharesReadOwn)
	if err != nil {
		return nil, 0, err
	}
	return s.shares.List(ctx, scope, limit, offset)
}

func (s *Service) UpdateShare(ctx context.Context, actor auth.Actor, id uuid.UUID, in ShareUpdate) (*Share, error) {
	if err := checkPercentage(in.Percentage); err != nil {
		return nil, err
	}
	var sh *Share
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sh, err = s.shares.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		before := sh.snapshot()
		sh.Percentage = in.Percentage
		if err := s.shares.Update(ctx, sh); err != nil {
			return fmt.Errorf("update profit share: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionUpdate, EntityType: entityShare, EntityID: sh.ID, Before: before, After: sh.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Service) DeleteShare(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		sh, err := s.shares.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.shares.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete profit share: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionDelete, EntityType: entityShare, EntityID: sh.ID, Before: sh.snapshot(),
		})
	})
}

// Percentages maps each dentist with a configured share to its percentage.
func (s *Service) Percentages(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	all, err := s.shares.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profit shares: %w", err)
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(all))
	for _, sh := range all {
		out[sh.DentistID] = sh.Percentage
	}
	return out, nil
}
