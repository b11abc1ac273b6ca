package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/category"
	"github.com/doubloon-app/doubloon/internal/domain/transaction"
	"github.com/doubloon-app/doubloon/pkg/observability"
)

// RunResult summarizes one classification pass.
type RunResult struct {
	Scanned    int `json:"scanned"`
	Classified int `json:"classified"`
	Failed     int `json:"failed"`
}

// Service walks unclassified transactions and records the model's verdicts.
type Service struct {
	txRepo     transaction.TransactionRepo
	catRepo    category.CategoryRepo
	classifier Classifier
	logger     *slog.Logger
}

func NewService(txRepo transaction.TransactionRepo, catRepo category.CategoryRepo, classifier Classifier, logger *slog.Logger) *Service {
	return &Service{
		txRepo:     txRepo,
		catRepo:    catRepo,
		classifier: classifier,
		logger:     logger,
	}
}

// Run classifies up to limit unclassified transactions for the given users.
// A transaction the model cannot classify stays unclassified; failures
// never abort the pass.
func (s *Service) Run(ctx context.Context, userIDs []uuid.UUID, limit int) (*RunResult, error) {
	logger := s.logger.With(slog.String("method", "Run"))

	categories, err := s.catRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	// Only leaf categories are valid classification targets.
	names := make([]string, 0, len(categories))
	byName := make(map[string]*category.Category, len(categories))
	for _, c := range categories {
		if c.ParentCategoryID == nil {
			continue
		}
		names = append(names, c.Name)
		byName[c.Name] = c
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no leaf categories available")
	}

	txs, err := s.txRepo.ListUnclassified(ctx, userIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified transactions: %w", err)
	}

	result := &RunResult{Scanned: len(txs)}
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		verdict, err := s.classifier.Classify(ctx, Request{
			Description: tx.Description,
			Detail:      tx.Detail,
			AmountMinor: tx.AmountMinor,
			Date:        tx.TransactionDate,
			Categories:  names,
		})
		if err != nil {
			logger.Warn("classification failed, leaving transaction unclassified",
				slog.String("transaction_id", tx.ID.String()),
				slog.Any("error", err))
			observability.ClassificationsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}

		cat := byName[verdict.CategoryName]
		if err := s.txRepo.UpdateClassification(ctx, tx.ID, cat.ID, verdict.Confidence, verdict.Reasoning, verdict.IsShared); err != nil {
			logger.Warn("failed to store classification",
				slog.String("transaction_id", tx.ID.String()),
				slog.Any("error", err))
			observability.ClassificationsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		observability.ClassificationsTotal.WithLabelValues("classified").Inc()
		result.Classified++
	}

	logger.Info("classification pass completed",
		slog.Int("scanned", result.Scanned),
		slog.Int("classified", result.Classified),
		slog.Int("failed", result.Failed))

	return result, nil
}
