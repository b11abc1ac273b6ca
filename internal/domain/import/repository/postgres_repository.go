package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	pgpool PgxPool
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(pgpool PgxPool) *PostgresImportRepository {
	return &PostgresImportRepository{pgpool: pgpool}
}

// CreateUserFile inserts a new user file record
func (r *PostgresImportRepository) CreateUserFile(ctx context.Context, file *UserFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}

	query := `
		INSERT INTO user_files (id, user_id, type, mime_type, file_name, size_bytes, checksum_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pgpool.Exec(ctx, query,
		file.ID, file.UserID, file.Type, file.MimeType, file.FileName,
		file.SizeBytes, file.ChecksumSHA256,
	)
	if err != nil {
		return fmt.Errorf("failed to create user file: %w", err)
	}

	return nil
}

// GetUserFileByID retrieves a user file by ID
func (r *PostgresImportRepository) GetUserFileByID(ctx context.Context, id uuid.UUID) (*UserFile, error) {
	query := `
		SELECT id, user_id, type, mime_type, file_name, size_bytes, checksum_sha256, created_at
		FROM user_files
		WHERE id = $1
	`

	rows, err := r.pgpool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}

	file, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[UserFile])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user file: %w", err)
	}

	return &file, nil
}

// CreateImportJob creates a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = StatusRunning
	}

	query := `
		INSERT INTO import_jobs (id, user_id, file_id, provider, status)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pgpool.Exec(ctx, query,
		job.ID, job.UserID, job.FileID, job.Provider, job.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// GetImportJobByID retrieves an import job by ID
func (r *PostgresImportRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `
		SELECT id, user_id, file_id, provider, status, error_message,
		       rows_read, rows_imported, rows_duplicate, rows_skipped,
		       started_at, finished_at
		FROM import_jobs
		WHERE id = $1
	`

	rows, err := r.pgpool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}

	job, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[ImportJob])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return &job, nil
}

// ListImportJobs returns the most recent import jobs for a user
func (r *PostgresImportRepository) ListImportJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, file_id, provider, status, error_message,
		       rows_read, rows_imported, rows_duplicate, rows_skipped,
		       started_at, finished_at
		FROM import_jobs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pgpool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}

	jobs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[ImportJob])
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}

	return jobs, nil
}

// UpdateImportJobProgress flushes intermediate counts for a running job
func (r *PostgresImportRepository) UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsDuplicate int) error {
	query := `
		UPDATE import_jobs SET rows_imported = $2, rows_duplicate = $3
		WHERE id = $1
	`

	_, err := r.pgpool.Exec(ctx, query, id, rowsImported, rowsDuplicate)
	if err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}

	return nil
}

// FinishImportJob records the final row counts and status of an import job
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsRead, rowsImported, rowsDuplicate, rowsSkipped int, errorMessage *string) error {
	query := `
		UPDATE import_jobs SET
			status = $2, rows_read = $3, rows_imported = $4,
			rows_duplicate = $5, rows_skipped = $6,
			error_message = $7, finished_at = NOW()
		WHERE id = $1
	`

	_, err := r.pgpool.Exec(ctx, query, id, status, rowsRead, rowsImported, rowsDuplicate, rowsSkipped, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}

	return nil
}

// InsertTransactionIfNew inserts a transaction unless an identical one
// already exists for the same user. Identity is the tuple of date, signed
// minor amount and description, so re-importing an overlapping export is
// idempotent.
func (r *PostgresImportRepository) InsertTransactionIfNew(ctx context.Context, tx *NewTransaction) (bool, error) {
	original, err := json.Marshal(tx.Original)
	if err != nil {
		return false, fmt.Errorf("failed to encode original row: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, user_id, transaction_date, amount_minor, amount_raw,
			description, detail, account, currency, category_hint,
			import_source, original_data
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $2 AND transaction_date = $3
			  AND amount_minor = $4 AND description = $6
		)
	`

	tag, err := r.pgpool.Exec(ctx, query,
		uuid.New(), tx.UserID, tx.TransactionDate, tx.AmountMinor, tx.AmountRaw,
		tx.Description, tx.Detail, tx.Account, tx.Currency, tx.CategoryHint,
		tx.ImportSource, original,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
