package transaction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var transactionRowColumns = []string{
	"id", "user_id", "transaction_date", "amount_minor", "amount_raw",
	"description", "detail", "account", "currency", "category_hint",
	"category_id", "category_name", "is_shared", "split_percent",
	"confidence", "reasoning", "import_source", "created_at",
}

func sampleTransactionRow(userID uuid.UUID, amountMinor int64, description string) []any {
	return []any{
		uuid.New(), userID, time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), amountMinor, "",
		description, "", "", "EUR", "",
		nil, nil, false, 50,
		nil, nil, "intesa_excel", time.Now(),
	}
}

func TestPostgresTransactionRepo_ListTransactions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	rows := pgxmock.NewRows(transactionRowColumns).
		AddRow(sampleTransactionRow(userID, -8745, "ESSELUNGA MILANO")...).
		AddRow(sampleTransactionRow(userID, 250000, "BONIFICO STIPENDIO")...)

	mock.ExpectQuery(`SELECT .+ FROM transactions t\s+LEFT JOIN categories c ON c\.id = t\.category_id\s+WHERE t\.user_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{userID}, 100).
		WillReturnRows(rows)

	repo := NewPostgresTransactionRepo(mock, testLogger())
	txs, err := repo.ListTransactions(context.Background(), ListFilter{UserIDs: []uuid.UUID{userID}})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].AmountMinor != -8745 || txs[0].Description != "ESSELUNGA MILANO" {
		t.Fatalf("unexpected first transaction: %+v", txs[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_ListTransactions_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	from := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	minMinor := int64(-1000000)

	mock.ExpectQuery(`WHERE t\.user_id = ANY\(\$1\) AND t\.transaction_date >= \$2 AND \(t\.description ILIKE \$3 OR t\.detail ILIKE \$3\) AND t\.amount_minor >= \$4`).
		WithArgs([]uuid.UUID{userID}, from, "%esselunga%", minMinor, 10).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns))

	repo := NewPostgresTransactionRepo(mock, testLogger())
	_, err = repo.ListTransactions(context.Background(), ListFilter{
		UserIDs:  []uuid.UUID{userID},
		From:     &from,
		Search:   "esselunga",
		MinMinor: &minMinor,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_CreateTransaction_SharedExpense(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	payerID := uuid.New()
	debtorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), payerID, pgxmock.AnyArg(), int64(-12000), "",
			"CENA RISTORANTE", "", "", "EUR", "",
			pgxmock.AnyArg(), true, 50, "manual").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO partner_balances`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), debtorID, payerID, int64(6000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresTransactionRepo(mock, testLogger())
	tx := &Transaction{
		UserID:          payerID,
		TransactionDate: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
		AmountMinor:     -12000,
		Description:     "CENA RISTORANTE",
		Currency:        "EUR",
		IsShared:        true,
		ImportSource:    "manual",
	}
	if err := repo.CreateTransaction(context.Background(), tx, &debtorID); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_CreateTransaction_PersonalExpense(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	payerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), payerID, pgxmock.AnyArg(), int64(-500), "",
			"CAFFE", "", "", "EUR", "",
			pgxmock.AnyArg(), false, 50, "manual").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresTransactionRepo(mock, testLogger())
	tx := &Transaction{
		UserID:          payerID,
		TransactionDate: time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
		AmountMinor:     -500,
		Description:     "CAFFE",
		Currency:        "EUR",
		ImportSource:    "manual",
	}
	if err := repo.CreateTransaction(context.Background(), tx, nil); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_UpdateClassification_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	txID := uuid.New()
	categoryID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(updateClassificationQuery)).
		WithArgs(txID, categoryID, 0.92, "supermercato", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresTransactionRepo(mock, testLogger())
	err = repo.UpdateClassification(context.Background(), txID, categoryID, 0.92, "supermercato", true)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_KPIs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	from := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"income_minor", "expense_minor", "net_minor"}).
		AddRow(int64(250000), int64(-98745), int64(151255))

	mock.ExpectQuery(`SELECT\s+COALESCE\(SUM\(amount_minor\) FILTER`).
		WithArgs([]uuid.UUID{userID}, from, to).
		WillReturnRows(rows)

	repo := NewPostgresTransactionRepo(mock, testLogger())
	kpi, err := repo.KPIs(context.Background(), []uuid.UUID{userID}, from, to)
	if err != nil {
		t.Fatalf("KPIs: %v", err)
	}
	if kpi.IncomeMinor != 250000 || kpi.ExpenseMinor != -98745 || kpi.NetMinor != 151255 {
		t.Fatalf("unexpected kpis: %+v", kpi)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresTransactionRepo_SettlePartnerBalance_AlreadySettled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	balanceID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(settlePartnerBalanceQuery)).
		WithArgs(balanceID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresTransactionRepo(mock, testLogger())
	err = repo.SettlePartnerBalance(context.Background(), balanceID)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// --- Queries used in tests ---

var (
	updateClassificationQuery = `
		UPDATE transactions
		SET category_id = $2, confidence = $3, reasoning = $4, is_shared = $5
		WHERE id = $1
	`
	settlePartnerBalanceQuery = `
		UPDATE partner_balances
		SET settled = TRUE, settled_at = NOW()
		WHERE id = $1 AND settled = FALSE
	`
)
