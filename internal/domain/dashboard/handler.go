package dashboard

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/import/normalizer"
)

// Handler serves the dashboard JSON endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Overview handles GET /api/dashboard/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	overview, err := h.service.Overview(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, overview)
}

// Transactions handles GET /api/transactions.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	txs, err := h.service.Transactions(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// filterFromQuery parses the shared view/period/filter query parameters.
// Amount bounds accept the same formats as statement imports, so "87,45"
// works the way a bank export would.
func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		View:   q.Get("view"),
		Search: q.Get("q"),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q: %w", raw, common.ErrBadRequest)
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q: %w", raw, common.ErrBadRequest)
		}
		filter.To = &t
	}

	if raw := q.Get("categories"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.Categories = append(filter.Categories, name)
			}
		}
	}

	if raw := q.Get("min"); raw != "" {
		amount, ok := normalizer.ParseSmartAmount(raw)
		if !ok {
			return filter, fmt.Errorf("invalid min amount %q: %w", raw, common.ErrBadRequest)
		}
		minMinor := normalizer.AmountToMinor(amount)
		filter.MinMinor = &minMinor
	}
	if raw := q.Get("max"); raw != "" {
		amount, ok := normalizer.ParseSmartAmount(raw)
		if !ok {
			return filter, fmt.Errorf("invalid max amount %q: %w", raw, common.ErrBadRequest)
		}
		maxMinor := normalizer.AmountToMinor(amount)
		filter.MaxMinor = &maxMinor
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q: %w", raw, common.ErrBadRequest)
		}
		filter.Limit = limit
	}

	return filter, nil
}
