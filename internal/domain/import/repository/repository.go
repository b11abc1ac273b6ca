// Package repository provides data access for import-related entities.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Import job lifecycle states.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// UserFile represents an uploaded statement export.
type UserFile struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	Type           string    `db:"type"` // "csv", "xlsx"
	MimeType       string    `db:"mime_type"`
	FileName       string    `db:"file_name"`
	SizeBytes      int64     `db:"size_bytes"`
	ChecksumSHA256 *string   `db:"checksum_sha256"`
	CreatedAt      time.Time `db:"created_at"`
}

// ImportJob tracks the outcome of one statement import.
type ImportJob struct {
	ID            uuid.UUID  `db:"id"`
	UserID        uuid.UUID  `db:"user_id"`
	FileID        uuid.UUID  `db:"file_id"`
	Provider      string     `db:"provider"`
	Status        string     `db:"status"`
	ErrorMessage  *string    `db:"error_message"`
	RowsRead      int        `db:"rows_read"`
	RowsImported  int        `db:"rows_imported"`
	RowsDuplicate int        `db:"rows_duplicate"`
	RowsSkipped   int        `db:"rows_skipped"`
	StartedAt     time.Time  `db:"started_at"`
	FinishedAt    *time.Time `db:"finished_at"`
}

// NewTransaction is one statement row ready for persistence. AmountMinor is
// signed: negative for expenses, positive for income.
type NewTransaction struct {
	UserID          uuid.UUID
	TransactionDate time.Time
	AmountMinor     int64
	AmountRaw       string
	Description     string
	Detail          string
	Account         string
	Currency        string
	CategoryHint    string
	ImportSource    string
	Original        map[string]string
}

// ImportRepository defines data access operations for imports.
type ImportRepository interface {
	// User files
	CreateUserFile(ctx context.Context, file *UserFile) error
	GetUserFileByID(ctx context.Context, id uuid.UUID) (*UserFile, error)

	// Import jobs
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	ListImportJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*ImportJob, error)
	// UpdateImportJobProgress flushes intermediate row counts while the
	// job is still running.
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsDuplicate int) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsRead, rowsImported, rowsDuplicate, rowsSkipped int, errorMessage *string) error

	// Transactions. InsertTransactionIfNew reports whether the row was
	// inserted; false means an identical row already existed.
	InsertTransactionIfNew(ctx context.Context, tx *NewTransaction) (bool, error)
}
