package transaction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/category"
	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/import/normalizer"
	"github.com/doubloon-app/doubloon/internal/domain/user"
	"github.com/doubloon-app/doubloon/pkg/money"
)

const defaultSplitPercent = 50

// CreateRequest is a manually entered ledger row. Amount accepts the same
// formats as bank exports, so "-87,45" and "-87.45" both work.
type CreateRequest struct {
	User         string `json:"user"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Detail       string `json:"detail,omitempty"`
	Category     string `json:"category,omitempty"`
	IsShared     bool   `json:"is_shared,omitempty"`
	SplitPercent int    `json:"split_percent,omitempty"`
}

// BalanceView is one partner balance with display-ready fields.
type BalanceView struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	Debtor        string     `json:"debtor"`
	Creditor      string     `json:"creditor"`
	Amount        string     `json:"amount"`
	AmountMinor   int64      `json:"amount_minor"`
	Settled       bool       `json:"settled"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// Handler serves manual transaction entry and partner balances.
type Handler struct {
	txRepo   TransactionRepo
	userRepo user.UserRepo
	catRepo  category.CategoryRepo
	logger   *slog.Logger
}

func NewHandler(txRepo TransactionRepo, userRepo user.UserRepo, catRepo category.CategoryRepo, logger *slog.Logger) *Handler {
	return &Handler{txRepo: txRepo, userRepo: userRepo, catRepo: catRepo, logger: logger}
}

// Create handles POST /api/transactions. A shared negative amount also
// records the partner's owed split.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, fmt.Errorf("invalid request body: %w", common.ErrBadRequest))
		return
	}

	tx, debtorID, err := h.buildTransaction(r, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.txRepo.CreateTransaction(r.Context(), tx, debtorID); err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusCreated, tx)
}

func (h *Handler) buildTransaction(r *http.Request, req CreateRequest) (*Transaction, *uuid.UUID, error) {
	if req.User == "" || req.Date == "" || req.Amount == "" || strings.TrimSpace(req.Description) == "" {
		return nil, nil, fmt.Errorf("user, date, amount and description are required: %w", common.ErrBadRequest)
	}

	payer, err := h.userRepo.GetByName(r.Context(), req.User)
	if err != nil {
		return nil, nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date %q: %w", req.Date, common.ErrBadRequest)
	}

	amount, ok := normalizer.ParseSmartAmount(req.Amount)
	if !ok {
		return nil, nil, fmt.Errorf("invalid amount %q: %w", req.Amount, common.ErrBadRequest)
	}

	split := req.SplitPercent
	if split == 0 {
		split = defaultSplitPercent
	}
	if split < 0 || split > 100 {
		return nil, nil, fmt.Errorf("split_percent must be between 0 and 100: %w", common.ErrBadRequest)
	}

	tx := &Transaction{
		ID:              uuid.New(),
		UserID:          payer.ID,
		TransactionDate: date,
		AmountMinor:     normalizer.AmountToMinor(amount),
		AmountRaw:       req.Amount,
		Description:     normalizer.CleanDescription(req.Description),
		Detail:          strings.TrimSpace(req.Detail),
		Currency:        "EUR",
		IsShared:        req.IsShared,
		SplitPercent:    split,
		ImportSource:    "manual",
	}

	if req.Category != "" {
		cat, err := h.catRepo.GetByName(r.Context(), req.Category)
		if err != nil {
			return nil, nil, fmt.Errorf("unknown category %q: %w", req.Category, common.ErrBadRequest)
		}
		tx.CategoryID = &cat.ID
		tx.CategoryHint = cat.Name
	}

	var debtorID *uuid.UUID
	if tx.IsShared && tx.AmountMinor < 0 {
		partner, err := h.partnerOf(r, payer.ID)
		if err != nil {
			return nil, nil, err
		}
		debtorID = &partner.ID
	}

	return tx, debtorID, nil
}

// partnerOf returns the other household member. Shared expenses need
// exactly one counterparty to owe the split to.
func (h *Handler) partnerOf(r *http.Request, payerID uuid.UUID) (*user.User, error) {
	members, err := h.userRepo.ListUsers(r.Context())
	if err != nil {
		return nil, err
	}

	var partner *user.User
	for _, m := range members {
		if m.ID != payerID {
			if partner != nil {
				return nil, fmt.Errorf("more than one possible partner for shared expense: %w", common.ErrBadRequest)
			}
			partner = m
		}
	}
	if partner == nil {
		return nil, fmt.Errorf("no partner registered for shared expense: %w", common.ErrBadRequest)
	}
	return partner, nil
}

// Balances handles GET /api/balances?user=&settled=.
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	userName := r.URL.Query().Get("user")
	if userName == "" {
		common.WriteError(w, fmt.Errorf("user is required: %w", common.ErrBadRequest))
		return
	}

	u, err := h.userRepo.GetByName(r.Context(), userName)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	includeSettled := r.URL.Query().Get("settled") == "true"
	balances, err := h.txRepo.ListPartnerBalances(r.Context(), u.ID, includeSettled)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	members, err := h.userRepo.ListUsers(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	views := make([]*BalanceView, 0, len(balances))
	var totalMinor int64
	for _, b := range balances {
		views = append(views, &BalanceView{
			ID:            b.ID,
			TransactionID: b.TransactionID,
			Debtor:        names[b.DebtorUserID],
			Creditor:      names[b.CreditorUserID],
			Amount:        money.FormatEUR(b.AmountMinor),
			AmountMinor:   b.AmountMinor,
			Settled:       b.Settled,
			SettledAt:     b.SettledAt,
		})
		if !b.Settled {
			totalMinor += b.AmountMinor
		}
	}

	common.WriteJSON(w, http.StatusOK, map[string]any{
		"balances":          views,
		"outstanding":       money.FormatEUR(totalMinor),
		"outstanding_minor": totalMinor,
	})
}

// Settle handles POST /api/balances/{id}/settle.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteError(w, fmt.Errorf("invalid balance id: %w", common.ErrBadRequest))
		return
	}

	if err := h.txRepo.SettlePartnerBalance(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}
