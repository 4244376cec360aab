package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// ArchiveService defines the archive method the handler requires.
type ArchiveService interface {
	Archive(ctx context.Context, groupID string) (string, error)
}

// ArchiveHandler serves the on-demand archive endpoint.
type ArchiveHandler struct {
	archive ArchiveService
	logger  *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archive ArchiveService, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, logger: logger}
}

// ArchiveGroup exports a closed group's ledger history to blob storage.
// POST /api/groups/{id}/archive
func (h *ArchiveHandler) ArchiveGroup(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing group id")
		return
	}

	path, err := h.archive.Archive(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive group failed",
			slog.String("group_id", id),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
