// Package transaction stores ledger rows and the aggregates the dashboard
// is built from. Amounts are signed integer cents: negative for expenses,
// positive for income.
package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

// Transaction is one ledger row, optionally joined with its category name.
type Transaction struct {
	ID              uuid.UUID  `db:"id"`
	UserID          uuid.UUID  `db:"user_id"`
	TransactionDate time.Time  `db:"transaction_date"`
	AmountMinor     int64      `db:"amount_minor"`
	AmountRaw       string     `db:"amount_raw"`
	Description     string     `db:"description"`
	Detail          string     `db:"detail"`
	Account         string     `db:"account"`
	Currency        string     `db:"currency"`
	CategoryHint    string     `db:"category_hint"`
	CategoryID      *uuid.UUID `db:"category_id"`
	CategoryName    *string    `db:"category_name"`
	IsShared        bool       `db:"is_shared"`
	SplitPercent    int        `db:"split_percent"`
	Confidence      *float64   `db:"confidence"`
	Reasoning       *string    `db:"reasoning"`
	ImportSource    string     `db:"import_source"`
	CreatedAt       time.Time  `db:"created_at"`
}

// PartnerBalance is the partner's share of one shared expense.
type PartnerBalance struct {
	ID             uuid.UUID  `db:"id"`
	TransactionID  uuid.UUID  `db:"transaction_id"`
	DebtorUserID   uuid.UUID  `db:"debtor_user_id"`
	CreditorUserID uuid.UUID  `db:"creditor_user_id"`
	AmountMinor    int64      `db:"amount_minor"`
	Settled        bool       `db:"settled"`
	SettledAt      *time.Time `db:"settled_at"`
	CreatedAt      time.Time  `db:"created_at"`
}

// ListFilter narrows a transaction listing. Zero values mean "no filter".
type ListFilter struct {
	UserIDs    []uuid.UUID
	From       *time.Time
	To         *time.Time
	Categories []string
	Search     string
	MinMinor   *int64
	MaxMinor   *int64
	Limit      int
}

// KPI holds the headline sums for a period.
type KPI struct {
	IncomeMinor  int64 `db:"income_minor"`
	ExpenseMinor int64 `db:"expense_minor"`
	NetMinor     int64 `db:"net_minor"`
}

// MonthlyPoint is one month/category bucket of the spending trend.
type MonthlyPoint struct {
	Month      time.Time `db:"month"`
	Category   string    `db:"category"`
	TotalMinor int64     `db:"total_minor"`
}

// AllocationSlice is one category's share of expenses in a period.
type AllocationSlice struct {
	Category   string `db:"category"`
	TotalMinor int64  `db:"total_minor"`
}

var _ TransactionRepo = (*PostgresTransactionRepo)(nil)

// TransactionRepo defines the contract for ledger persistence.
type TransactionRepo interface {
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	// CreateTransaction inserts a manually entered row. For a shared
	// expense, debtorID names the partner owing their split and a partner
	// balance is recorded in the same database transaction.
	CreateTransaction(ctx context.Context, t *Transaction, debtorID *uuid.UUID) error
	ListUnclassified(ctx context.Context, userIDs []uuid.UUID, limit int) ([]*Transaction, error)
	UpdateClassification(ctx context.Context, id, categoryID uuid.UUID, confidence float64, reasoning string, isShared bool) error

	KPIs(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) (*KPI, error)
	MonthlyTrend(ctx context.Context, userIDs []uuid.UUID, months int) ([]*MonthlyPoint, error)
	Allocation(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) ([]*AllocationSlice, error)
	TopExpenses(ctx context.Context, userIDs []uuid.UUID, from, to time.Time, limit int) ([]*Transaction, error)

	ListPartnerBalances(ctx context.Context, userID uuid.UUID, includeSettled bool) ([]*PartnerBalance, error)
	SettlePartnerBalance(ctx context.Context, id uuid.UUID) error
}

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

type PostgresTransactionRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresTransactionRepo(pgpool PgxPool, logger *slog.Logger) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const transactionColumns = `
	t.id, t.user_id, t.transaction_date, t.amount_minor, t.amount_raw,
	t.description, t.detail, t.account, t.currency, t.category_hint,
	t.category_id, c.name AS category_name, t.is_shared, t.split_percent,
	t.confidence, t.reasoning, t.import_source, t.created_at`

// ListTransactions returns rows matching the filter, newest first.
func (r *PostgresTransactionRepo) ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	var conditions []string
	var args []any
	argID := 1

	addCondition := func(clause string, value any) {
		conditions = append(conditions, fmt.Sprintf(clause, argID))
		args = append(args, value)
		argID++
	}

	addCondition("t.user_id = ANY($%d)", filter.UserIDs)
	if filter.From != nil {
		addCondition("t.transaction_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCondition("t.transaction_date <= $%d", *filter.To)
	}
	if len(filter.Categories) > 0 {
		addCondition("c.name = ANY($%d)", filter.Categories)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(t.description ILIKE $%d OR t.detail ILIKE $%d)", argID, argID))
		args = append(args, "%"+filter.Search+"%")
		argID++
	}
	if filter.MinMinor != nil {
		addCondition("t.amount_minor >= $%d", *filter.MinMinor)
	}
	if filter.MaxMinor != nil {
		addCondition("t.amount_minor <= $%d", *filter.MaxMinor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
		ORDER BY t.transaction_date DESC, t.created_at DESC
		LIMIT $%d
	`, transactionColumns, strings.Join(conditions, " AND "), argID)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Transaction])
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}

	return txs, nil
}

// CreateTransaction inserts a manual entry and, for shared expenses, the
// partner's owed share computed from the split percentage.
func (r *PostgresTransactionRepo) CreateTransaction(ctx context.Context, t *Transaction, debtorID *uuid.UUID) error {
	ctx, span := otel.Tracer("TransactionRepo").Start(ctx, "CreateTransaction", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "transactions"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateTransaction"), slog.String("userID", t.UserID.String()))

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.SplitPercent == 0 {
		t.SplitPercent = 50
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction failed")
		return fmt.Errorf("database error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO transactions (
			id, user_id, transaction_date, amount_minor, amount_raw,
			description, detail, account, currency, category_hint,
			category_id, is_shared, split_percent, import_source, original_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, '{}')
	`
	_, err = tx.Exec(ctx, query,
		t.ID, t.UserID, t.TransactionDate, t.AmountMinor, t.AmountRaw,
		t.Description, t.Detail, t.Account, t.Currency, t.CategoryHint,
		t.CategoryID, t.IsShared, t.SplitPercent, t.ImportSource,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error inserting transaction: %w", err)
	}

	if t.IsShared && t.AmountMinor < 0 && debtorID != nil {
		owed := -t.AmountMinor * int64(t.SplitPercent) / 100
		balanceQuery := `
			INSERT INTO partner_balances (id, transaction_id, debtor_user_id, creditor_user_id, amount_minor)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err = tx.Exec(ctx, balanceQuery, uuid.New(), t.ID, *debtorID, t.UserID, owed)
		if err != nil {
			l.ErrorContext(ctx, "Failed to insert partner balance", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "DB INSERT failed")
			return fmt.Errorf("database error inserting partner balance: %w", err)
		}
		span.SetAttributes(attribute.Int64("balance.amount_minor", owed))
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction commit failed")
		return fmt.Errorf("database error committing transaction: %w", err)
	}

	span.SetStatus(codes.Ok, "Transaction created")
	return nil
}

// ListUnclassified returns rows that have not been assigned a category yet.
func (r *PostgresTransactionRepo) ListUnclassified(ctx context.Context, userIDs []uuid.UUID, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ANY($1) AND t.category_id IS NULL
		ORDER BY t.transaction_date DESC
		LIMIT $2
	`, transactionColumns)

	rows, err := r.pgpool.Query(ctx, query, userIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified transactions: %w", err)
	}

	txs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Transaction])
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}

	return txs, nil
}

// UpdateClassification records the category assigned to a transaction.
func (r *PostgresTransactionRepo) UpdateClassification(ctx context.Context, id, categoryID uuid.UUID, confidence float64, reasoning string, isShared bool) error {
	ctx, span := otel.Tracer("TransactionRepo").Start(ctx, "UpdateClassification", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "transactions"),
		attribute.Float64("classification.confidence", confidence),
	))
	defer span.End()

	query := `
		UPDATE transactions
		SET category_id = $2, confidence = $3, reasoning = $4, is_shared = $5
		WHERE id = $1
	`
	tag, err := r.pgpool.Exec(ctx, query, id, categoryID, confidence, reasoning, isShared)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := fmt.Errorf("transaction not found: %w", common.ErrNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Transaction not found")
		return err
	}

	span.SetStatus(codes.Ok, "Classification updated")
	return nil
}

// KPIs returns the income, expense and net sums for a period.
func (r *PostgresTransactionRepo) KPIs(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) (*KPI, error) {
	query := `
		SELECT
			COALESCE(SUM(amount_minor) FILTER (WHERE amount_minor > 0), 0) AS income_minor,
			COALESCE(SUM(amount_minor) FILTER (WHERE amount_minor < 0), 0) AS expense_minor,
			COALESCE(SUM(amount_minor), 0) AS net_minor
		FROM transactions
		WHERE user_id = ANY($1) AND transaction_date >= $2 AND transaction_date <= $3
	`

	rows, err := r.pgpool.Query(ctx, query, userIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpis: %w", err)
	}

	kpi, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[KPI])
	if err != nil {
		return nil, fmt.Errorf("failed to scan kpis: %w", err)
	}

	return &kpi, nil
}

// MonthlyTrend returns per-month expense totals by category for the last
// months calendar months.
func (r *PostgresTransactionRepo) MonthlyTrend(ctx context.Context, userIDs []uuid.UUID, months int) ([]*MonthlyPoint, error) {
	if months <= 0 {
		months = 12
	}

	query := `
		SELECT
			date_trunc('month', t.transaction_date) AS month,
			COALESCE(c.name, NULLIF(t.category_hint, ''), 'Non classificato') AS category,
			SUM(-t.amount_minor) AS total_minor
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ANY($1)
		  AND t.amount_minor < 0
		  AND t.transaction_date >= date_trunc('month', NOW()) - make_interval(months => $2)
		GROUP BY 1, 2
		ORDER BY 1, 2
	`

	rows, err := r.pgpool.Query(ctx, query, userIDs, months)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly trend: %w", err)
	}

	points, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[MonthlyPoint])
	if err != nil {
		return nil, fmt.Errorf("failed to scan monthly trend: %w", err)
	}

	return points, nil
}

// Allocation returns expense totals grouped by category for a period.
func (r *PostgresTransactionRepo) Allocation(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) ([]*AllocationSlice, error) {
	query := `
		SELECT
			COALESCE(c.name, NULLIF(t.category_hint, ''), 'Non classificato') AS category,
			SUM(-t.amount_minor) AS total_minor
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ANY($1)
		  AND t.amount_minor < 0
		  AND t.transaction_date >= $2 AND t.transaction_date <= $3
		GROUP BY 1
		ORDER BY 2 DESC
	`

	rows, err := r.pgpool.Query(ctx, query, userIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation: %w", err)
	}

	slices, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[AllocationSlice])
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocation: %w", err)
	}

	return slices, nil
}

// TopExpenses returns the largest expenses of a period.
func (r *PostgresTransactionRepo) TopExpenses(ctx context.Context, userIDs []uuid.UUID, from, to time.Time, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ANY($1)
		  AND t.amount_minor < 0
		  AND t.transaction_date >= $2 AND t.transaction_date <= $3
		ORDER BY t.amount_minor ASC
		LIMIT $4
	`, transactionColumns)

	rows, err := r.pgpool.Query(ctx, query, userIDs, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top expenses: %w", err)
	}

	txs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Transaction])
	if err != nil {
		return nil, fmt.Errorf("failed to scan top expenses: %w", err)
	}

	return txs, nil
}

// ListPartnerBalances returns the shares a user owes or is owed.
func (r *PostgresTransactionRepo) ListPartnerBalances(ctx context.Context, userID uuid.UUID, includeSettled bool) ([]*PartnerBalance, error) {
	query := `
		SELECT id, transaction_id, debtor_user_id, creditor_user_id,
		       amount_minor, settled, settled_at, created_at
		FROM partner_balances
		WHERE (debtor_user_id = $1 OR creditor_user_id = $1)
		  AND (settled = FALSE OR $2)
		ORDER BY created_at DESC
	`

	rows, err := r.pgpool.Query(ctx, query, userID, includeSettled)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner balances: %w", err)
	}

	balances, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[PartnerBalance])
	if err != nil {
		return nil, fmt.Errorf("failed to scan partner balances: %w", err)
	}

	return balances, nil
}

// SettlePartnerBalance marks a share as paid back.
func (r *PostgresTransactionRepo) SettlePartnerBalance(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("TransactionRepo").Start(ctx, "SettlePartnerBalance", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "partner_balances"),
	))
	defer span.End()

	query := `
		UPDATE partner_balances
		SET settled = TRUE, settled_at = NOW()
		WHERE id = $1 AND settled = FALSE
	`
	tag, err := r.pgpool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error settling partner balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := fmt.Errorf("partner balance not found or already settled: %w", common.ErrNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Balance not found")
		return err
	}

	span.SetStatus(codes.Ok, "Balance settled")
	return nil
}
