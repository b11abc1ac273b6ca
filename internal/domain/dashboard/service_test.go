package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/transaction"
	"github.com/doubloon-app/doubloon/internal/domain/user"
)

type fakeUserRepo struct {
	users []*user.User
}

func (f *fakeUserRepo) ListUsers(ctx context.Context) ([]*user.User, error) {
	return f.users, nil
}

func (f *fakeUserRepo) GetByName(ctx context.Context, name string) (*user.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) GetOrCreateByName(ctx context.Context, name string) (*user.User, error) {
	return f.GetByName(ctx, name)
}

type fakeTxRepo struct {
	transaction.TransactionRepo

	kpi        *transaction.KPI
	trend      []*transaction.MonthlyPoint
	allocation []*transaction.AllocationSlice
	top        []*transaction.Transaction
	recent     []*transaction.Transaction

	lastUserIDs []uuid.UUID
	lastFilter  transaction.ListFilter
}

func (f *fakeTxRepo) KPIs(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) (*transaction.KPI, error) {
	f.lastUserIDs = userIDs
	return f.kpi, nil
}

func (f *fakeTxRepo) MonthlyTrend(ctx context.Context, userIDs []uuid.UUID, months int) ([]*transaction.MonthlyPoint, error) {
	return f.trend, nil
}

func (f *fakeTxRepo) Allocation(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) ([]*transaction.AllocationSlice, error) {
	return f.allocation, nil
}

func (f *fakeTxRepo) TopExpenses(ctx context.Context, userIDs []uuid.UUID, from, to time.Time, limit int) ([]*transaction.Transaction, error) {
	return f.top, nil
}

func (f *fakeTxRepo) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	f.lastFilter = filter
	return f.recent, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUsers() (*fakeUserRepo, uuid.UUID, uuid.UUID) {
	matteoID, paolaID := uuid.New(), uuid.New()
	return &fakeUserRepo{users: []*user.User{
		{ID: matteoID, Name: "matteo"},
		{ID: paolaID, Name: "paola"},
	}}, matteoID, paolaID
}

func TestResolveView(t *testing.T) {
	userRepo, matteoID, paolaID := testUsers()
	svc := NewService(&fakeTxRepo{}, userRepo, testLogger())

	ids, err := svc.ResolveView(context.Background(), "nostra")
	if err != nil {
		t.Fatalf("ResolveView(nostra): %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both members, got %v", ids)
	}

	ids, err = svc.ResolveView(context.Background(), "matteo")
	if err != nil {
		t.Fatalf("ResolveView(matteo): %v", err)
	}
	if len(ids) != 1 || ids[0] != matteoID {
		t.Fatalf("expected matteo only, got %v (paola=%s)", ids, paolaID)
	}

	// Empty view falls back to the couple-wide scope.
	ids, err = svc.ResolveView(context.Background(), "")
	if err != nil || len(ids) != 2 {
		t.Fatalf("ResolveView(\"\") = %v, %v", ids, err)
	}

	if _, err := svc.ResolveView(context.Background(), "intruso"); err == nil {
		t.Fatal("expected error for unknown view")
	}
}

func TestOverview(t *testing.T) {
	userRepo, matteoID, _ := testUsers()
	txRepo := &fakeTxRepo{
		kpi: &transaction.KPI{IncomeMinor: 250000, ExpenseMinor: -98745, NetMinor: 151255},
		trend: []*transaction.MonthlyPoint{
			{Month: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), Category: "Spesa Alimentare", TotalMinor: 45000},
		},
		allocation: []*transaction.AllocationSlice{
			{Category: "Spesa Alimentare", TotalMinor: 75000},
			{Category: "Ristoranti e Bar", TotalMinor: 25000},
		},
		recent: []*transaction.Transaction{
			{
				ID:              uuid.New(),
				UserID:          matteoID,
				TransactionDate: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
				AmountMinor:     -8745,
				Description:     "ESSELUNGA MILANO",
				CategoryHint:    "Spesa Alimentare",
			},
		},
	}

	svc := NewService(txRepo, userRepo, testLogger())
	overview, err := svc.Overview(context.Background(), Filter{View: "nostra"})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if overview.KPIs.Income != "€ 2.500,00" {
		t.Errorf("entrate = %q", overview.KPIs.Income)
	}
	if overview.KPIs.Expenses != "€ 987,45" {
		t.Errorf("spesa = %q", overview.KPIs.Expenses)
	}
	if overview.KPIs.Net != "€ 1.512,55" {
		t.Errorf("netto = %q", overview.KPIs.Net)
	}

	if len(overview.Trend) != 1 || overview.Trend[0].Month != "2024-10" {
		t.Errorf("unexpected trend: %+v", overview.Trend)
	}

	if len(overview.Allocation) != 2 {
		t.Fatalf("unexpected allocation: %+v", overview.Allocation)
	}
	if overview.Allocation[0].Percent != 75.0 {
		t.Errorf("allocation percent = %v, want 75", overview.Allocation[0].Percent)
	}

	if len(overview.Recent) != 1 {
		t.Fatalf("unexpected recent: %+v", overview.Recent)
	}
	recent := overview.Recent[0]
	if recent.Amount != "-€ 87,45" || recent.Date != "2024-10-15" || recent.Category != "Spesa Alimentare" {
		t.Errorf("unexpected recent view: %+v", recent)
	}

	if txRepo.lastFilter.Limit != recentLimit {
		t.Errorf("recent limit = %d, want %d", txRepo.lastFilter.Limit, recentLimit)
	}
	if len(txRepo.lastUserIDs) != 2 {
		t.Errorf("kpis should cover both members, got %v", txRepo.lastUserIDs)
	}
}

func TestOverview_JoinedCategoryNameWins(t *testing.T) {
	userRepo, matteoID, _ := testUsers()
	name := "Ristoranti e Bar"
	txRepo := &fakeTxRepo{
		kpi: &transaction.KPI{},
		recent: []*transaction.Transaction{
			{
				ID:              uuid.New(),
				UserID:          matteoID,
				TransactionDate: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
				AmountMinor:     -12000,
				Description:     "TRATTORIA DA MARIO",
				CategoryHint:    "Altro",
				CategoryName:    &name,
			},
		},
	}

	svc := NewService(txRepo, userRepo, testLogger())
	overview, err := svc.Overview(context.Background(), Filter{View: "matteo"})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.Recent[0].Category != name {
		t.Errorf("category = %q, want joined name", overview.Recent[0].Category)
	}
}
