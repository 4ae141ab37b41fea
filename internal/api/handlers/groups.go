package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eargollo/selector/internal/store"
)

// GroupsHandler serves completed-group history.
type GroupsHandler struct {
	Store *store.Store
}

// List handles GET /api/groups?dir=: the directory's completed groups,
// newest first.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeError(w, http.StatusBadRequest, "MISSING_DIR", "dir query parameter is required")
		return
	}

	groups, err := h.Store.Groups(r.Context(), dir)
	if err != nil {
		slog.Error("groups list", "dir", dir, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if groups == nil {
		groups = []store.GroupRecord{}
	}
	writeJSON(w, http.StatusOK, ListResponse[store.GroupRecord]{Items: groups, Total: len(groups)})
}
