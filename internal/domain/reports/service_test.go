package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/inventory"
	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// -- Fakes --

type fakeRepo struct {
	revenue  []DentistRevenue
	expenses int64
	counts   []StatusCount
	ranges   [][2]time.Time
	scopes   []*uuid.UUID
}

func (f *fakeRepo) RevenueByDentist(_ context.Context, from, to time.Time) ([]DentistRevenue, error) {
	f.ranges = append(f.ranges, [2]time.Time{from, to})
	return f.revenue, nil
}

func (f *fakeRepo) Expenses(_ context.Context, _, _ time.Time) (int64, error) {
	return f.expenses, nil
}

func (f *fakeRepo) AppointmentCounts(_ context.Context, _, _ time.Time, dentistID *uuid.UUID) ([]StatusCount, error) {
	f.scopes = append(f.scopes, dentistID)
	if dentistID == nil {
		return f.counts, nil
	}
	var out []StatusCount
	for _, c := range f.counts {
		if c.DentistID == *dentistID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeDentists struct {
	active   []*identity.User
	inactive map[uuid.UUID]*identity.User
}

func (f *fakeDentists) ListDentists(context.Context) ([]*identity.User, error) { return f.active, nil }

func (f *fakeDentists) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := f.inactive[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}

type fakeShares map[uuid.UUID]decimal.Decimal

func (f fakeShares) Percentages(context.Context) (map[uuid.UUID]decimal.Decimal, error) { return f, nil }

type fakeStock struct {
	filters []inventory.ItemFilter
}

func (f *fakeStock) ListItems(_ context.Context, flt inventory.ItemFilter, _, _ int) ([]*inventory.Item, int, error) {
	f.filters = append(f.filters, flt)
	return []*inventory.Item{{Name: "Gloves", Quantity: 1, ReorderLevel: 5, Active: true}}, 1, nil
}

var (
	manager  = auth.Actor{UserID: uuid.New(), Username: "manager", Role: auth.RoleManager}
	dentistA = auth.Actor{UserID: uuid.New(), Username: "dr.a", Role: auth.RoleDentist}
	dentistB = auth.Actor{UserID: uuid.New(), Username: "dr.b", Role: auth.RoleDentist}
	former   = uuid.New()
	fixedNow = time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
)

func newTestService() (*Service, *fakeRepo, *fakeStock) {
	repo := &fakeRepo{
		revenue: []DentistRevenue{
			{DentistID: dentistA.UserID, RevenueSyp: 300000},
			{DentistID: dentistB.UserID, RevenueSyp: 125005},
			{DentistID: former, RevenueSyp: 10000},
		},
		expenses: 40000,
		counts: []StatusCount{
			{DentistID: dentistA.UserID, Status: lifecycle.AppointmentCompleted, Count: 4},
			{DentistID: dentistA.UserID, Status: lifecycle.AppointmentCancelled, Count: 1},
			{DentistID: dentistB.UserID, Status: lifecycle.AppointmentScheduled, Count: 2},
		},
	}
	dentists := &fakeDentists{
		active: []*identity.User{
			{ID: dentistA.UserID, FullName: "Dr. Amal", Role: auth.RoleDentist, Active: true},
			{ID: dentistB.UserID, FullName: "Dr. Bassel", Role: auth.RoleDentist, Active: true},
		},
		inactive: map[uuid.UUID]*identity.User{former: {ID: former, FullName: "Dr. Former", Role: auth.RoleDentist}},
	}
	shares := fakeShares{
		dentistA.UserID: decimal.NewFromInt(40),
		dentistB.UserID: decimal.RequireFromString("12.5"),
	}
	stock := &fakeStock{}
	svc := NewService(repo, dentists, shares, stock, time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, stock
}

func rowFor(t *testing.T, r *Financial, id uuid.UUID) DentistRow {
	t.Helper()
	for _, row := range r.Dentists {
		if row.DentistID == id {
			return row
		}
	}
	t.Fatalf("no row for dentist %s", id)
	return DentistRow{}
}

func TestShareAmount(t *testing.T) {
	tests := []struct {
		revenue int64
		pct     string
		want    int64
	}{
		{300000, "40", 120000},
		{125005, "12.5", 15626}, // 15625.625
		{3, "50", 2},            // 1.5 rounds up
		{100000, "0", 0},
		{100000, "100", 100000},
	}
	for _, tt := range tests {
		if got := ShareAmount(tt.revenue, decimal.RequireFromString(tt.pct)); got != tt.want {
			t.Errorf("ShareAmount(%d, %s) = %d, want %d", tt.revenue, tt.pct, got, tt.want)
		}
	}
}

func TestFinancial_Manager(t *testing.T) {
	svc, repo, _ := newTestService()
	r, err := svc.Financial(context.Background(), manager, nil, nil)
	if err != nil {
		t.Fatalf("Financial() error: %v", err)
	}
	if *r.RevenueSyp != 435005 || *r.ExpensesSyp != 40000 || *r.NetProfitSyp != 395005 {
		t.Errorf("unexpected totals %d / %d / %d", *r.RevenueSyp, *r.ExpensesSyp, *r.NetProfitSyp)
	}
	if len(r.Dentists) != 3 {
		t.Fatalf("expected 3 dentist rows, got %d", len(r.Dentists))
	}
	a := rowFor(t, r, dentistA.UserID)
	if a.NetProfitSyp != 300000 || a.ShareAmountSyp != 120000 {
		t.Errorf("unexpected row %+v", a)
	}
	if f := rowFor(t, r, former); f.DentistName != "Dr. Former" || !f.SharePercentage.IsZero() || f.ShareAmountSyp != 0 {
		t.Errorf("unexpected row for former dentist %+v", f)
	}
	if r.Dentists[0].DentistName != "Dr. Amal" {
		t.Errorf("rows should be sorted by name, got %s first", r.Dentists[0].DentistName)
	}

	wantFrom := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !repo.ranges[0][0].Equal(wantFrom) || !repo.ranges[0][1].Equal(fixedNow) {
		t.Errorf("default range should be month to date, got %v", repo.ranges[0])
	}
}

func TestFinancial_DentistSeesOwnRowOnly(t *testing.T) {
	svc, _, _ := newTestService()
	r, err := svc.Financial(context.Background(), dentistB, nil, nil)
	if err != nil {
		t.Fatalf("Financial() error: %v", err)
	}
	if r.RevenueSyp != nil || r.ExpensesSyp != nil || r.NetProfitSyp != nil {
		t.Error("dentists must not see clinic-wide totals")
	}
	if len(r.Dentists) != 1 || r.Dentists[0].DentistID != dentistB.UserID {
		t.Fatalf("unexpected rows %+v", r.Dentists)
	}
	if r.Dentists[0].ShareAmountSyp != 15626 {
		t.Errorf("unexpected share amount %d", r.Dentists[0].ShareAmountSyp)
	}
}

func TestFinancial_BadRange(t *testing.T) {
	svc, _, _ := newTestService()
	from := fixedNow
	to := fixedNow.Add(-time.Hour)
	if _, err := svc.Financial(context.Background(), manager, &from, &to); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPeriod_Defaults(t *testing.T) {
	svc, _, _ := newTestService()
	monthStart := time.Date(fixedNow.Year(), fixedNow.Month(), 1, 0, 0, 0, 0, time.UTC)
	march := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	future := fixedNow.AddDate(0, 0, 3)

	tests := []struct {
		name      string
		from, to  *time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"none", nil, nil, monthStart, fixedNow},
		{"to only, earlier month", nil, &march, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), march},
		{"from only", &march, nil, march, fixedNow},
		{"from only, future", &future, nil, future, future},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := svc.period(tt.from, tt.to)
			if err != nil {
				t.Fatalf("period() error: %v", err)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("period() = [%v, %v], want [%v, %v]", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestAppointments(t *testing.T) {
	svc, repo, _ := newTestService()
	r, err := svc.Appointments(context.Background(), manager, nil, nil)
	if err != nil {
		t.Fatalf("Appointments() error: %v", err)
	}
	if r.Total != 7 || r.ByStatus[lifecycle.AppointmentCompleted] != 4 || r.ByStatus[lifecycle.AppointmentScheduled] != 2 {
		t.Errorf("unexpected totals %+v", r)
	}
	if len(r.ByDentist) != 2 || r.ByDentist[0].Total != 5 {
		t.Errorf("unexpected dentist rows %+v", r.ByDentist)
	}

	r, err = svc.Appointments(context.Background(), dentistB, nil, nil)
	if err != nil {
		t.Fatalf("Appointments() error: %v", err)
	}
	if r.Total != 2 || len(r.ByDentist) != 1 {
		t.Errorf("dentist should only see own counts, got %+v", r)
	}
	if last := repo.scopes[len(repo.scopes)-1]; last == nil || *last != dentistB.UserID {
		t.Errorf("expected scoped query, got %v", last)
	}
}

func TestLowStock(t *testing.T) {
	svc, _, stock := newTestService()
	items, total, err := svc.LowStock(context.Background(), 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("LowStock() = %v, %d, %v", items, total, err)
	}
	f := stock.filters[0]
	if !f.LowStock || f.Active == nil || !*f.Active {
		t.Errorf("expected active low-stock filter, got %+v", f)
	}
}

func TestWriteFinancialXLSX(t *testing.T) {
	svc, _, _ := newTestService()
	r, _ := svc.Financial(context.Background(), manager, nil, nil)

	var buf bytes.Buffer
	if err := WriteFinancialXLSX(&buf, r); err != nil {
		t.Fatalf("WriteFinancialXLSX() error: %v", err)
	}
	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	if got := book.GetCellValue(dentistsSheet, "A2"); got != "Dr. Amal" {
		t.Errorf("A2 = %q, want Dr. Amal", got)
	}
	if got := book.GetCellValue(summarySheet, "B3"); got != "435005" {
		t.Errorf("revenue cell = %q", got)
	}
}
