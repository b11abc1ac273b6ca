package classify

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/user"
)

const defaultBatchLimit = 50

// Handler serves the classification trigger endpoint.
type Handler struct {
	service  *Service
	userRepo user.UserRepo
	logger   *slog.Logger
}

func NewHandler(service *Service, userRepo user.UserRepo, logger *slog.Logger) *Handler {
	return &Handler{service: service, userRepo: userRepo, logger: logger}
}

// Run handles POST /api/classify?user=&limit=. Without a user it walks the
// backlog of every member.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userIDs []uuid.UUID
	if name := q.Get("user"); name != "" {
		u, err := h.userRepo.GetByName(r.Context(), name)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		userIDs = []uuid.UUID{u.ID}
	} else {
		members, err := h.userRepo.ListUsers(r.Context())
		if err != nil {
			common.WriteError(w, err)
			return
		}
		for _, m := range members {
			userIDs = append(userIDs, m.ID)
		}
	}

	limit := defaultBatchLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			common.WriteError(w, fmt.Errorf("invalid limit %q: %w", raw, common.ErrBadRequest))
			return
		}
		limit = parsed
	}

	result, err := h.service.Run(r.Context(), userIDs, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, result)
}
