// Package handler exposes statement imports over HTTP.
package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/doubloon-app/doubloon/internal/domain/common"
	"github.com/doubloon-app/doubloon/internal/domain/import/service"
	"github.com/doubloon-app/doubloon/internal/domain/user"
)

// Uploads above this size are rejected before parsing.
const maxUploadBytes = 16 << 20

// Handler serves the import endpoints.
type Handler struct {
	service  *service.ImportService
	userRepo user.UserRepo
	logger   *slog.Logger
}

func NewHandler(svc *service.ImportService, userRepo user.UserRepo, logger *slog.Logger) *Handler {
	return &Handler{service: svc, userRepo: userRepo, logger: logger}
}

// Import handles POST /api/import?provider=&user=. The statement is read
// from the multipart "file" field when present, the raw body otherwise.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	providerName := r.URL.Query().Get("provider")
	userName := r.URL.Query().Get("user")
	if providerName == "" || userName == "" {
		common.WriteError(w, fmt.Errorf("provider and user are required: %w", common.ErrBadRequest))
		return
	}

	u, err := h.userRepo.GetOrCreateByName(r.Context(), userName)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	fileName, data, err := readUpload(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	result, err := h.service.ImportFile(r.Context(), u.ID, providerName, fileName, data)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, result)
}

// Job handles GET /api/import/jobs/{id}.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		common.WriteError(w, fmt.Errorf("invalid job id: %w", common.ErrBadRequest))
		return
	}

	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, job)
}

// Providers handles GET /api/import/providers.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]any{"providers": h.service.Providers()})
}

func readUpload(r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", nil, fmt.Errorf("invalid multipart upload: %w", common.ErrBadRequest)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("multipart upload has no file field: %w", common.ErrBadRequest)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty upload: %w", common.ErrBadRequest)
	}
	return "upload", data, nil
}
