package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/eargollo/selector/internal/grid"
	"github.com/eargollo/selector/internal/mask"
	"github.com/eargollo/selector/internal/session"
)

// SessionHandler exposes the grid session: opening a directory and the four
// event operations plus group finalisation.
type SessionHandler struct {
	Sessions *session.Manager
}

// Open handles GET /api/session?dir=. It (re)opens the directory, replaying
// stored group history into the mask.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeError(w, http.StatusBadRequest, "MISSING_DIR", "dir query parameter is required")
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "directory not found: "+dir)
		return
	}

	s, err := h.Sessions.Open(r.Context(), dir)
	if err != nil {
		var re *mask.ReconstructionError
		if errors.As(err, &re) {
			writeError(w, http.StatusConflict, "CORRUPT_HISTORY", re.Error())
			return
		}
		slog.Error("session open", "dir", dir, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// State handles GET /api/session/state.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

// Activate handles POST /api/session/activate {row, col}.
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}

	var body struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	st, err := s.Activate(body.Row, body.Col)
	if err != nil {
		writeEventError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Move handles POST /api/session/move {direction}.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}

	var body struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	dir, err := grid.ParseDirection(body.Direction)
	if err != nil {
		writeEventError(w, err)
		return
	}

	st, err := s.Move(dir)
	if err != nil {
		writeEventError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Resize handles POST /api/session/resize {rows, cols}.
func (h *SessionHandler) Resize(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}

	var body struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	st, err := s.Resize(body.Rows, body.Cols)
	if err != nil {
		writeEventError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Decide handles POST /api/session/decision {decision}.
func (h *SessionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}

	var body struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	decision, err := grid.ParseKeepState(body.Decision)
	if err != nil {
		writeEventError(w, err)
		return
	}

	st, err := s.Decide(decision)
	if err != nil {
		writeEventError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Finalize handles POST /api/session/finalize: flushes the current group to
// the store and hides its images from the pool.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "NO_SESSION", err.Error())
		return
	}

	rec, st, err := s.FinalizeGroup(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyGroup):
			writeError(w, http.StatusConflict, "EMPTY_GROUP", err.Error())
		case errors.Is(err, session.ErrUndecided):
			writeError(w, http.StatusConflict, "UNDECIDED", err.Error())
		default:
			writeEventError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"group": rec,
		"state": st,
	})
}

// writeEventError maps session/grid errors onto the API taxonomy: malformed
// events are the caller's fault, invariant violations are ours and are
// reported loudly rather than patched.
func writeEventError(w http.ResponseWriter, err error) {
	var inv *grid.InvariantError
	switch {
	case errors.Is(err, grid.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, "MALFORMED_EVENT", err.Error())
	case errors.Is(err, session.ErrNoImage):
		writeError(w, http.StatusBadRequest, "NO_IMAGE", err.Error())
	case errors.As(err, &inv):
		slog.Error("grid invariant violated", "error", err)
		writeError(w, http.StatusInternalServerError, "INVARIANT_VIOLATION", err.Error())
	default:
		slog.Error("session event", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
