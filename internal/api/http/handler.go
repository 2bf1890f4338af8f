package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veranemoloko/download-resolver/internal/domain"
	errpkg "github.com/veranemoloko/download-resolver/internal/errors"
	"github.com/veranemoloko/download-resolver/internal/validation"
)

// DownloadServiceI defines the download operations the HTTP layer needs.
type DownloadServiceI interface {
	CreateDownload(ctx context.Context, req domain.CreateDownloadRequest) (*domain.Download, error)
	GetDownload(ctx context.Context, id uuid.UUID) (*domain.Download, error)
	PendingPromptFor(id uuid.UUID) *domain.PendingPrompt
	Confirm(ctx context.Context, id uuid.UUID, req domain.ConfirmDownloadRequest) (*domain.Download, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) (*domain.Download, error)
}

// DownloadHandler handles HTTP requests for downloads.
type DownloadHandler struct {
	downloadService DownloadServiceI
	validator       *validator.Validate
	logger          *slog.Logger
}

// NewDownloadHandler creates a new DownloadHandler with the provided service and logger.
func NewDownloadHandler(downloadService DownloadServiceI, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
		validator:       validation.New(),
		logger:          logger,
	}
}

// CreateDownload handles POST /downloads.
func (h *DownloadHandler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.downloadService.CreateDownload(ctx, req)
	if err != nil {
		if errors.Is(err, errpkg.ErrServiceShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
			return
		}
		h.logger.Error("failed to create download", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"download_id": d.ID,
	})
}

// GetDownload handles GET /downloads/{downloadID}.
func (h *DownloadHandler) GetDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.downloadID(w, r)
	if !ok {
		return
	}

	d, err := h.downloadService.GetDownload(ctx, id)
	if err != nil {
		if errors.Is(err, errpkg.ErrDownloadNotFound) {
			writeError(w, http.StatusNotFound, "download not found")
			return
		}
		h.logger.Error("failed to get download", "download_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(d))
}

// ConfirmDownload handles POST /downloads/{downloadID}/confirm, answering a
// pending target confirmation prompt.
func (h *DownloadHandler) ConfirmDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.downloadID(w, r)
	if !ok {
		return
	}

	var req domain.ConfirmDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.downloadService.Confirm(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, errpkg.ErrDownloadNotFound):
			writeError(w, http.StatusNotFound, "download not found")
		case errors.Is(err, errpkg.ErrNoPendingPrompt):
			writeError(w, http.StatusConflict, "no pending prompt for download")
		default:
			h.logger.Error("failed to confirm download", "download_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(d))
}

// CancelDownload handles DELETE /downloads/{downloadID}.
func (h *DownloadHandler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.downloadID(w, r)
	if !ok {
		return
	}

	if err := h.downloadService.Cancel(ctx, id); err != nil {
		switch {
		case errors.Is(err, errpkg.ErrDownloadNotFound):
			writeError(w, http.StatusNotFound, "download not found")
		case errors.Is(err, errpkg.ErrAlreadyTerminal):
			writeError(w, http.StatusConflict, "download already finished")
		default:
			h.logger.Error("failed to cancel download", "download_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ResumeDownload handles POST /downloads/{downloadID}/resume.
func (h *DownloadHandler) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.downloadID(w, r)
	if !ok {
		return
	}

	d, err := h.downloadService.Resume(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, errpkg.ErrDownloadNotFound):
			writeError(w, http.StatusNotFound, "download not found")
		case errors.Is(err, errpkg.ErrAlreadyTerminal):
			writeError(w, http.StatusConflict, "download is not interrupted")
		default:
			h.logger.Error("failed to resume download", "download_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(d))
}

func (h *DownloadHandler) downloadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "downloadID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid download ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *DownloadHandler) toResponse(d *domain.Download) domain.DownloadResponse {
	return domain.DownloadResponse{
		ID:            d.ID,
		URL:           d.Request.URL,
		State:         d.State(),
		DangerType:    d.DangerType(),
		Target:        d.TargetInfo(),
		PendingPrompt: h.downloadService.PendingPromptFor(d.ID),
		BytesReceived: d.BytesReceived(),
		Error:         d.Error(),
		CreatedAt:     d.CreatedAt(),
		UpdatedAt:     d.UpdatedAt(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
