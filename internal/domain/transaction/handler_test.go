package transaction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/category"
	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/user"
)

type stubUserRepo struct {
	users []*user.User
}

func (s *stubUserRepo) GetByName(ctx context.Context, name string) (*user.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubUserRepo) GetOrCreateByName(ctx context.Context, name string) (*user.User, error) {
	return s.GetByName(ctx, name)
}

func (s *stubUserRepo) ListUsers(ctx context.Context) ([]*user.User, error) {
	return s.users, nil
}

type stubCategoryRepo struct {
	categories []*category.Category
}

func (s *stubCategoryRepo) ListCategories(ctx context.Context) ([]*category.Category, error) {
	return s.categories, nil
}

func (s *stubCategoryRepo) GetByName(ctx context.Context, name string) (*category.Category, error) {
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubCategoryRepo) SeedDefaults(ctx context.Context) error { return nil }

type stubTxRepo struct {
	TransactionRepo

	created      *Transaction
	debtorID     *uuid.UUID
	balances     []*PartnerBalance
	settledIDs   []uuid.UUID
	settleErr    error
	lastSettled  bool
	lastBalances uuid.UUID
}

func (s *stubTxRepo) CreateTransaction(ctx context.Context, t *Transaction, debtorID *uuid.UUID) error {
	s.created = t
	s.debtorID = debtorID
	return nil
}

func (s *stubTxRepo) ListPartnerBalances(ctx context.Context, userID uuid.UUID, includeSettled bool) ([]*PartnerBalance, error) {
	s.lastBalances = userID
	s.lastSettled = includeSettled
	return s.balances, nil
}

func (s *stubTxRepo) SettlePartnerBalance(ctx context.Context, id uuid.UUID) error {
	if s.settleErr != nil {
		return s.settleErr
	}
	s.settledIDs = append(s.settledIDs, id)
	return nil
}

func testHandler() (*Handler, *stubTxRepo, uuid.UUID, uuid.UUID) {
	matteoID, paolaID := uuid.New(), uuid.New()
	spesaID := uuid.New()
	txRepo := &stubTxRepo{}
	h := NewHandler(
		txRepo,
		&stubUserRepo{users: []*user.User{
			{ID: matteoID, Name: "matteo"},
			{ID: paolaID, Name: "paola"},
		}},
		&stubCategoryRepo{categories: []*category.Category{
			{ID: spesaID, Name: "Spesa Alimentare"},
		}},
		testLogger(),
	)
	return h, txRepo, matteoID, paolaID
}

func TestCreate_SharedExpense(t *testing.T) {
	h, txRepo, matteoID, paolaID := testHandler()

	body := `{"user":"matteo","date":"2024-10-15","amount":"-120,00","description":"Cena fuori","category":"Spesa Alimentare","is_shared":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := txRepo.created
	if created == nil {
		t.Fatal("no transaction created")
	}
	if created.UserID != matteoID {
		t.Errorf("user = %s, want matteo", created.UserID)
	}
	if created.AmountMinor != -12000 {
		t.Errorf("amount = %d, want -12000", created.AmountMinor)
	}
	if created.SplitPercent != defaultSplitPercent {
		t.Errorf("split = %d, want default", created.SplitPercent)
	}
	if created.CategoryID == nil {
		t.Error("category not resolved")
	}
	if created.ImportSource != "manual" {
		t.Errorf("import_source = %q", created.ImportSource)
	}
	if txRepo.debtorID == nil || *txRepo.debtorID != paolaID {
		t.Errorf("debtor = %v, want paola", txRepo.debtorID)
	}
}

func TestCreate_PersonalIncomeHasNoDebtor(t *testing.T) {
	h, txRepo, _, _ := testHandler()

	body := `{"user":"paola","date":"2024-10-27","amount":"2.500,00","description":"Stipendio"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if txRepo.created.AmountMinor != 250000 {
		t.Errorf("amount = %d", txRepo.created.AmountMinor)
	}
	if txRepo.debtorID != nil {
		t.Errorf("unexpected debtor %v", txRepo.debtorID)
	}
}

func TestCreate_BadRequests(t *testing.T) {
	h, _, _, _ := testHandler()

	for name, body := range map[string]string{
		"not json":       `{`,
		"missing fields": `{"user":"matteo"}`,
		"bad date":       `{"user":"matteo","date":"15/10/2024","amount":"-10,00","description":"x"}`,
		"bad amount":     `{"user":"matteo","date":"2024-10-15","amount":"boh","description":"x"}`,
		"bad split":      `{"user":"matteo","date":"2024-10-15","amount":"-10,00","description":"x","split_percent":130}`,
		"unknown cat":    `{"user":"matteo","date":"2024-10-15","amount":"-10,00","description":"x","category":"Yacht"}`,
		"unknown user":   `{"user":"luigi","date":"2024-10-15","amount":"-10,00","description":"x"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()

		h.Create(rec, req)

		if rec.Code == http.StatusCreated {
			t.Errorf("%s: expected failure, got 201", name)
		}
	}
}

func TestBalances(t *testing.T) {
	h, txRepo, matteoID, paolaID := testHandler()
	settledAt := time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC)
	txRepo.balances = []*PartnerBalance{
		{ID: uuid.New(), TransactionID: uuid.New(), DebtorUserID: paolaID, CreditorUserID: matteoID, AmountMinor: 6000},
		{ID: uuid.New(), TransactionID: uuid.New(), DebtorUserID: paolaID, CreditorUserID: matteoID, AmountMinor: 2500, Settled: true, SettledAt: &settledAt},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/balances?user=matteo&settled=true", nil)
	rec := httptest.NewRecorder()

	h.Balances(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if txRepo.lastBalances != matteoID || !txRepo.lastSettled {
		t.Errorf("repo called with user=%s settled=%v", txRepo.lastBalances, txRepo.lastSettled)
	}

	var body struct {
		Balances    []*BalanceView `json:"balances"`
		Outstanding string         `json:"outstanding"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Balances) != 2 {
		t.Fatalf("balances = %d", len(body.Balances))
	}
	if body.Balances[0].Debtor != "paola" || body.Balances[0].Amount != "€ 60,00" {
		t.Errorf("unexpected balance view: %+v", body.Balances[0])
	}
	// Settled rows do not count toward the outstanding total.
	if body.Outstanding != "€ 60,00" {
		t.Errorf("outstanding = %q", body.Outstanding)
	}
}

func TestBalances_RequiresUser(t *testing.T) {
	h, _, _, _ := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/balances", nil)
	rec := httptest.NewRecorder()

	h.Balances(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSettle(t *testing.T) {
	h, txRepo, _, _ := testHandler()
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/balances/"+id.String()+"/settle", nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	h.Settle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(txRepo.settledIDs) != 1 || txRepo.settledIDs[0] != id {
		t.Errorf("settled = %v", txRepo.settledIDs)
	}
}

func TestSettle_NotFound(t *testing.T) {
	h, txRepo, _, _ := testHandler()
	txRepo.settleErr = fmt.Errorf("balance missing: %w", common.ErrNotFound)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/balances/"+id.String()+"/settle", nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	h.Settle(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
