// Package dashboard assembles the aggregates behind the couple's overview
// page. A "view" scopes the data to one member or to the whole couple.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/transaction"
	"github.com/doubloon-app/doubloon/internal/domain/user"
	"github.com/doubloon-app/doubloon/pkg/money"
)

// ViewAll is the couple-wide view; any other view is a member name.
const ViewAll = "nostra"

const (
	recentLimit       = 20
	topExpensesLimit  = 5
	defaultTrendDepth = 12
)

// KPIs are the formatted headline numbers of a period.
type KPIs struct {
	Income   string `json:"entrate"`
	Expenses string `json:"spesa"`
	Net      string `json:"netto"`
}

// TrendPoint is one month/category bucket of the spending trend.
type TrendPoint struct {
	Month      string `json:"month"` // YYYY-MM
	Category   string `json:"category"`
	Total      string `json:"total"`
	TotalMinor int64  `json:"total_minor"`
}

// AllocationSlice is one category's share of the period's expenses.
type AllocationSlice struct {
	Category   string  `json:"category"`
	Total      string  `json:"total"`
	TotalMinor int64   `json:"total_minor"`
	Percent    float64 `json:"percent"`
}

// TransactionView is one ledger row with display formatting applied.
type TransactionView struct {
	ID          uuid.UUID `json:"id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Amount      string    `json:"amount"`
	AmountMinor int64     `json:"amount_minor"`
	Description string    `json:"description"`
	Detail      string    `json:"detail,omitempty"`
	Account     string    `json:"account,omitempty"`
	Category    string    `json:"category,omitempty"`
	IsShared    bool      `json:"is_shared"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// Overview is the full dashboard payload.
type Overview struct {
	View       string            `json:"view"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	KPIs       KPIs              `json:"kpis"`
	Trend      []TrendPoint      `json:"trend"`
	Allocation []AllocationSlice `json:"allocation"`
	Top        []TransactionView `json:"top_expenses"`
	Recent     []TransactionView `json:"recent"`
}

// Filter narrows overview and listing queries.
type Filter struct {
	View       string
	From       *time.Time
	To         *time.Time
	Categories []string
	Search     string
	MinMinor   *int64
	MaxMinor   *int64
	Limit      int
}

// Service reads the ledger on behalf of a view.
type Service struct {
	txRepo   transaction.TransactionRepo
	userRepo user.UserRepo
	logger   *slog.Logger
}

func NewService(txRepo transaction.TransactionRepo, userRepo user.UserRepo, logger *slog.Logger) *Service {
	return &Service{
		txRepo:   txRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

// ResolveView maps a view name to the user IDs it covers.
func (s *Service) ResolveView(ctx context.Context, view string) ([]uuid.UUID, error) {
	view = strings.ToLower(strings.TrimSpace(view))
	if view == "" || view == ViewAll {
		users, err := s.userRepo.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, fmt.Errorf("no users configured: %w", common.ErrNotFound)
		}
		ids := make([]uuid.UUID, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		return ids, nil
	}

	u, err := s.userRepo.GetByName(ctx, view)
	if err != nil {
		return nil, err
	}
	return []uuid.UUID{u.ID}, nil
}

// Overview assembles KPIs, trend, allocation, top expenses and the most
// recent movements for a view. The period defaults to the current
// calendar month.
func (s *Service) Overview(ctx context.Context, filter Filter) (*Overview, error) {
	userIDs, err := s.ResolveView(ctx, filter.View)
	if err != nil {
		return nil, err
	}

	from, to := periodOrDefault(filter.From, filter.To)

	kpi, err := s.txRepo.KPIs(ctx, userIDs, from, to)
	if err != nil {
		return nil, err
	}

	trend, err := s.txRepo.MonthlyTrend(ctx, userIDs, defaultTrendDepth)
	if err != nil {
		return nil, err
	}

	allocation, err := s.txRepo.Allocation(ctx, userIDs, from, to)
	if err != nil {
		return nil, err
	}

	top, err := s.txRepo.TopExpenses(ctx, userIDs, from, to, topExpensesLimit)
	if err != nil {
		return nil, err
	}

	recent, err := s.txRepo.ListTransactions(ctx, transaction.ListFilter{
		UserIDs:    userIDs,
		From:       &from,
		To:         &to,
		Categories: filter.Categories,
		Search:     filter.Search,
		MinMinor:   filter.MinMinor,
		MaxMinor:   filter.MaxMinor,
		Limit:      recentLimit,
	})
	if err != nil {
		return nil, err
	}

	view := filter.View
	if view == "" {
		view = ViewAll
	}

	return &Overview{
		View: strings.ToLower(view),
		From: from.Format("2006-01-02"),
		To:   to.Format("2006-01-02"),
		KPIs: KPIs{
			Income:   money.FormatEUR(kpi.IncomeMinor),
			Expenses: money.FormatEUR(-kpi.ExpenseMinor),
			Net:      money.FormatEUR(kpi.NetMinor),
		},
		Trend:      trendViews(trend),
		Allocation: allocationViews(allocation),
		Top:        transactionViews(top),
		Recent:     transactionViews(recent),
	}, nil
}

// Transactions returns a filtered listing for a view.
func (s *Service) Transactions(ctx context.Context, filter Filter) ([]TransactionView, error) {
	userIDs, err := s.ResolveView(ctx, filter.View)
	if err != nil {
		return nil, err
	}

	txs, err := s.txRepo.ListTransactions(ctx, transaction.ListFilter{
		UserIDs:    userIDs,
		From:       filter.From,
		To:         filter.To,
		Categories: filter.Categories,
		Search:     filter.Search,
		MinMinor:   filter.MinMinor,
		MaxMinor:   filter.MaxMinor,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	return transactionViews(txs), nil
}

// periodOrDefault fills missing bounds with the current calendar month.
func periodOrDefault(from, to *time.Time) (time.Time, time.Time) {
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	f, t := monthStart, monthEnd
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}
	return f, t
}

func trendViews(points []*transaction.MonthlyPoint) []TrendPoint {
	out := make([]TrendPoint, len(points))
	for i, p := range points {
		out[i] = TrendPoint{
			Month:      p.Month.Format("2006-01"),
			Category:   p.Category,
			Total:      money.FormatEUR(p.TotalMinor),
			TotalMinor: p.TotalMinor,
		}
	}
	return out
}

func allocationViews(slices []*transaction.AllocationSlice) []AllocationSlice {
	var total int64
	for _, s := range slices {
		total += s.TotalMinor
	}

	out := make([]AllocationSlice, len(slices))
	for i, s := range slices {
		percent := 0.0
		if total > 0 {
			percent = float64(s.TotalMinor) / float64(total) * 100
		}
		out[i] = AllocationSlice{
			Category:   s.Category,
			Total:      money.FormatEUR(s.TotalMinor),
			TotalMinor: s.TotalMinor,
			Percent:    percent,
		}
	}
	return out
}

func transactionViews(txs []*transaction.Transaction) []TransactionView {
	out := make([]TransactionView, len(txs))
	for i, tx := range txs {
		category := tx.CategoryHint
		if tx.CategoryName != nil {
			category = *tx.CategoryName
		}
		out[i] = TransactionView{
			ID:          tx.ID,
			Date:        tx.TransactionDate.Format("2006-01-02"),
			Amount:      money.FormatEUR(tx.AmountMinor),
			AmountMinor: tx.AmountMinor,
			Description: tx.Description,
			Detail:      tx.Detail,
			Account:     tx.Account,
			Category:    category,
			IsShared:    tx.IsShared,
			Confidence:  tx.Confidence,
		}
	}
	return out
}
