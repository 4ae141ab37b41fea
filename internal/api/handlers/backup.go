package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eargollo/selector/internal/backup"
	"github.com/eargollo/selector/internal/store"
)

// BackupHandler drives decision consolidation and the backup lifecycle.
type BackupHandler struct {
	Backup *backup.Manager
	Store  *store.Store
}

// Consolidate handles POST /api/backup/consolidate {directory}: moves every
// delete-marked image of the directory into the backup area.
func (h *BackupHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Directory == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "directory is required")
		return
	}

	decisions, err := h.Store.Decisions(r.Context(), body.Directory)
	if err != nil {
		slog.Error("consolidate: load decisions", "dir", body.Directory, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if len(decisions) == 0 {
		writeError(w, http.StatusConflict, "NO_DECISIONS", "no recorded decisions for "+body.Directory)
		return
	}

	moved, err := h.Backup.Consolidate(r.Context(), body.Directory, decisions)
	if err != nil {
		slog.Error("consolidate", "dir", body.Directory, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"directory":   body.Directory,
		"files_moved": moved,
	})
}

// List handles GET /api/backup.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Backup.List(r.Context())
	if err != nil {
		slog.Error("backup list", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[backup.Item]{Items: items, Total: len(items)})
}

// Restore handles POST /api/backup/{id}/restore.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid backup ID")
		return
	}

	err = h.Backup.Restore(r.Context(), id)
	var conflict *backup.ErrRestoreConflict
	switch {
	case errors.Is(err, backup.ErrNotBackedUp):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "RESTORE_CONFLICT", err.Error())
	case err != nil:
		slog.Error("backup restore", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"restored": id})
	}
}

// PurgeAll handles DELETE /api/backup.
func (h *BackupHandler) PurgeAll(w http.ResponseWriter, r *http.Request) {
	count, bytesFreed, err := h.Backup.PurgeAll(r.Context())
	if err != nil {
		slog.Error("backup purge", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files_purged": count,
		"bytes_freed":  bytesFreed,
	})
}
