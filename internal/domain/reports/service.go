package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/inventory"
	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

var hundred = decimal.NewFromInt(100)

type DentistDirectory interface {
	ListDentists(ctx context.Context) ([]*identity.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type ShareSource interface {
	Percentages(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

type StockLister interface {
	ListItems(ctx context.Context, f inventory.ItemFilter, limit, offset int) ([]*inventory.Item, int, error)
}

type Service struct {
	repo     Repository
	dentists DentistDirectory
	shares   ShareSource
	stock    StockLister
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, dentists DentistDirectory, shares ShareSource, stock StockLister, loc *time.Location) *Service {
	return &Service{repo: repo, dentists: dentists, shares: shares, stock: stock, loc: loc, now: time.Now}
}

// period defaults to the current month so far, in clinic time. With only
// to given the period starts on the first of to's month; with only a future
// from given it is the single instant from.
func (s *Service) period(from, to *time.Time) (time.Time, time.Time, error) {
	now := s.now().In(s.loc)
	switch {
	case from != nil && to != nil:
		if to.Before(*from) {
			return time.Time{}, time.Time{}, apperr.Field("to", "must not be before from")
		}
		return *from, *to, nil
	case to != nil:
		t := to.In(s.loc)
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.loc), *to, nil
	case from != nil:
		if now.Before(*from) {
			return *from, *from, nil
		}
		return *from, now, nil
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc), now, nil
}

// ShareAmount is revenue * percentage / 100, rounded half up to whole SYP.
func ShareAmount(revenue int64, percentage decimal.Decimal) int64 {
	return decimal.NewFromInt(revenue).Mul(percentage).Div(hundred).Round(0).IntPart()
}

func (s *Service) names(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	active, err := s.dentists.ListDentists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dentists: %w", err)
	}
	names := lo.SliceToMap(active, func(u *identity.User) (uuid.UUID, string) { return u.ID, u.FullName })
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		// Deactivated dentists still own historical revenue.
		u, err := s.dentists.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load dentist %s: %w", id, err)
		}
		names[id] = u.FullName
	}
	return names, nil
}

func (s *Service) Financial(ctx context.Context, actor auth.Actor, from, to *time.Time) (*Financial, error) {
	scope, err := actor.Scope(auth.ReportsRead, auth.ReportsReadOwn)
	if err != nil {
		return nil, err
	}
	start, end, err := s.period(from, to)
	if err != nil {
		return nil, err
	}

	revenues, err := s.repo.RevenueByDentist(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("revenue by dentist: %w", err)
	}
	percentages, err := s.shares.Percentages(ctx)
	if err != nil {
		return nil, err
	}
	byDentist := lo.SliceToMap(revenues, func(r DentistRevenue) (uuid.UUID, int64) { return r.DentistID, r.RevenueSyp })
	names, err := s.names(ctx, lo.Keys(byDentist))
	if err != nil {
		return nil, err
	}

	rows := make([]DentistRow, 0, len(names))
	for id, name := range names {
		if !auth.Owns(scope, id) {
			continue
		}
		pct := percentages[id]
		rev := byDentist[id]
		rows = append(rows, DentistRow{
			DentistID:       id,
			DentistName:     name,
			RevenueSyp:      rev,
			NetProfitSyp:    rev,
			SharePercentage: pct,
			ShareAmountSyp:  ShareAmount(rev, pct),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DentistName != rows[j].DentistName {
			return rows[i].DentistName < rows[j].DentistName
		}
		return rows[i].DentistID.String() < rows[j].DentistID.String()
	})

	report := &Financial{From: start, To: end, Dentists: rows}
	if scope != nil {
		return report, nil
	}
	expenses, err := s.repo.Expenses(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("expenses: %w", err)
	}
	revenue := lo.SumBy(revenues, func(r DentistRevenue) int64 { return r.RevenueSyp })
	net := revenue - expenses
	report.RevenueSyp, report.ExpensesSyp, report.NetProfitSyp = &revenue, &expenses, &net
	return report, nil
}

func (s *Service) Appointments(ctx context.Context, actor auth.Actor, from, to *time.Time) (*Appointments, error) {
	scope, err := actor.Scope(auth.ReportsRead, auth.ReportsReadOwn)
	if err != nil {
		return nil, err
	}
	start, end, err := s.period(from, to)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.AppointmentCounts(ctx, start, end, scope)
	if err != nil {
		return nil, fmt.Errorf("appointment counts: %w", err)
	}
	grouped := lo.GroupBy(counts, func(c StatusCount) uuid.UUID { return c.DentistID })
	names, err := s.names(ctx, lo.Keys(grouped))
	if err != nil {
		return nil, err
	}

	report := &Appointments{From: start, To: end, ByStatus: emptyStatusCounts()}
	for id, name := range names {
		if !auth.Owns(scope, id) {
			continue
		}
		row := DentistAppointments{DentistID: id, DentistName: name, ByStatus: emptyStatusCounts()}
		for _, c := range grouped[id] {
			row.ByStatus[c.Status] += c.Count
			row.Total += c.Count
			report.ByStatus[c.Status] += c.Count
		}
		report.Total += row.Total
		report.ByDentist = append(report.ByDentist, row)
	}
	sort.Slice(report.ByDentist, func(i, j int) bool {
		return report.ByDentist[i].DentistName < report.ByDentist[j].DentistName
	})
	return report, nil
}

func emptyStatusCounts() map[lifecycle.AppointmentStatus]int {
	return map[lifecycle.AppointmentStatus]int{
		lifecycle.AppointmentScheduled: 0,
		lifecycle.AppointmentCompleted: 0,
		lifecycle.AppointmentCancelled: 0,
	}
}

// LowStock lists active items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context, limit, offset int) ([]*inventory.Item, int, error) {
	active := true
	return s.stock.ListItems(ctx, inventory.ItemFilter{LowStock: true, Active: &active}, limit, offset)
}
