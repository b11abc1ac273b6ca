// Package service provides the import orchestration logic.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/import/normalizer"
	"github.com/doubloon-app/doubloon/internal/domain/import/provider"
	"github.com/doubloon-app/doubloon/internal/domain/import/repository"
	"github.com/doubloon-app/doubloon/pkg/observability"
)

// Intermediate job counts are flushed every this many persisted rows.
const progressFlushEvery = 200

// ImportResult contains the outcome of one statement import.
type ImportResult struct {
	JobID         uuid.UUID
	RowsRead      int
	RowsImported  int
	RowsDuplicate int
	RowsSkipped   int
}

// ImportService orchestrates statement parsing and persistence.
type ImportService struct {
	repo      repository.ImportRepository
	providers *provider.Registry
	logger    *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(repo repository.ImportRepository, providers *provider.Registry, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:      repo,
		providers: providers,
		logger:    logger,
	}
}

// Providers lists the available provider names.
func (s *ImportService) Providers() []string {
	return s.providers.Names()
}

// GetJob returns an import job by ID.
func (s *ImportService) GetJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	return s.repo.GetImportJobByID(ctx, id)
}

// ListJobs returns the most recent import jobs for a user.
func (s *ImportService) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*repository.ImportJob, error) {
	return s.repo.ListImportJobs(ctx, userID, limit)
}

// ImportFile parses an uploaded export with the named provider and persists
// its rows. Rows identical to an already stored transaction are counted as
// duplicates rather than re-inserted, so re-uploading an overlapping export
// is safe.
func (s *ImportService) ImportFile(ctx context.Context, userID uuid.UUID, providerName, fileName string, data []byte) (*ImportResult, error) {
	logger := s.logger.With(slog.String("method", "ImportFile"), slog.String("provider", providerName))

	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	checksum := sha256.Sum256(data)
	checksumHex := hex.EncodeToString(checksum[:])

	fileType, mimeType := fileKind(providerName)
	fileRecord := &repository.UserFile{
		UserID:         userID,
		Type:           fileType,
		MimeType:       mimeType,
		FileName:       fileName,
		SizeBytes:      int64(len(data)),
		ChecksumSHA256: &checksumHex,
	}
	if err := s.repo.CreateUserFile(ctx, fileRecord); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	job := &repository.ImportJob{
		UserID:   userID,
		FileID:   fileRecord.ID,
		Provider: providerName,
		Status:   repository.StatusRunning,
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	rows, stats, err := p.Parse(ctx, data)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	imported, duplicate := 0, 0
	for _, row := range rows {
		tx := &repository.NewTransaction{
			UserID:          userID,
			TransactionDate: row.TransactionDate,
			AmountMinor:     normalizer.AmountToMinor(row.Amount),
			AmountRaw:       row.AmountRaw,
			Description:     row.Description,
			Detail:          row.Detail,
			Account:         row.Account,
			Currency:        row.Currency,
			CategoryHint:    row.CategoryHint,
			ImportSource:    providerName,
			Original:        row.Original,
		}

		inserted, err := s.repo.InsertTransactionIfNew(ctx, tx)
		if err != nil {
			s.failJob(ctx, job.ID, err)
			return nil, fmt.Errorf("failed to insert transactions: %w", err)
		}
		if inserted {
			imported++
		} else {
			duplicate++
		}

		if (imported+duplicate)%progressFlushEvery == 0 {
			if err := s.repo.UpdateImportJobProgress(ctx, job.ID, imported, duplicate); err != nil {
				logger.Warn("failed to flush import progress", "error", err)
			}
		}
	}

	if err := s.repo.FinishImportJob(ctx, job.ID, repository.StatusSucceeded,
		stats.RowsRead, imported, duplicate, stats.RowsDropped, nil); err != nil {
		logger.Warn("failed to finish import job", "error", err)
	}

	observability.ImportedRowsTotal.WithLabelValues(providerName, "imported").Add(float64(imported))
	observability.ImportedRowsTotal.WithLabelValues(providerName, "duplicate").Add(float64(duplicate))
	observability.ImportedRowsTotal.WithLabelValues(providerName, "skipped").Add(float64(stats.RowsDropped))

	logger.Info("import completed",
		slog.String("job_id", job.ID.String()),
		slog.Int("rows_read", stats.RowsRead),
		slog.Int("rows_imported", imported),
		slog.Int("rows_duplicate", duplicate),
		slog.Int("rows_skipped", stats.RowsDropped))

	return &ImportResult{
		JobID:         job.ID,
		RowsRead:      stats.RowsRead,
		RowsImported:  imported,
		RowsDuplicate: duplicate,
		RowsSkipped:   stats.RowsDropped,
	}, nil
}

func (s *ImportService) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	msg := cause.Error()
	if err := s.repo.FinishImportJob(ctx, jobID, repository.StatusFailed, 0, 0, 0, 0, &msg); err != nil {
		s.logger.Warn("failed to mark import job as failed", "error", err)
	}
}

// fileKind maps a provider name to the stored file type and MIME type.
func fileKind(providerName string) (string, string) {
	if strings.Contains(providerName, "excel") {
		return "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "csv", "text/csv"
}
