package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/eargollo/selector/internal/library"
	"github.com/eargollo/selector/internal/media"
)

// ImagesHandler serves image bytes, thumbnails and capture metadata.
type ImagesHandler struct {
	// LibraryRoot bounds the Locate search.
	LibraryRoot   string
	LocateWorkers int
}

// imageParams validates the dir/name query pair. Rejecting names with path
// separators keeps requests inside the stated directory.
func imageParams(w http.ResponseWriter, r *http.Request) (dir, name string, ok bool) {
	q := r.URL.Query()
	dir, name = q.Get("dir"), q.Get("name")
	if dir == "" || name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "dir and name query parameters are required")
		return "", "", false
	}
	if filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name must be a plain filename")
		return "", "", false
	}
	return dir, name, true
}

// Serve handles GET /api/images?dir=&name=: the original bytes for the zoom
// panel.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	dir, name, ok := imageParams(w, r)
	if !ok {
		return
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "image not found")
		return
	}

	w.Header().Set("Content-Type", media.ContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

// Thumbnail handles GET /api/images/thumbnail?dir=&name=: a 320x320 JPEG
// for the grid cells.
func (h *ImagesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	dir, name, ok := imageParams(w, r)
	if !ok {
		return
	}

	thumb, err := media.Thumbnail(filepath.Join(dir, name), 320, 320)
	if err != nil {
		slog.Error("images thumbnail", "dir", dir, "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "thumbnail generation failed")
		return
	}
	if thumb == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "image not found or not previewable")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb) //nolint:errcheck
}

// Info handles GET /api/images/info?dir=&name=: dimensions plus EXIF basics
// for the zoom panel.
func (h *ImagesHandler) Info(w http.ResponseWriter, r *http.Request) {
	dir, name, ok := imageParams(w, r)
	if !ok {
		return
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "image not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": name,
		"size":     info.Size(),
		"modified": info.ModTime().UTC(),
		"mime":     media.ContentType(name),
		"capture":  media.ExtractCaptureInfo(path),
	})
}

// Locate handles GET /api/locate?name=: every directory under the library
// root containing the named image, for the directory picker.
func (h *ImagesHandler) Locate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" || filepath.Base(name) != name {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name must be a plain filename")
		return
	}

	dirs, err := library.Locate(r.Context(), h.LibraryRoot, name, h.LocateWorkers)
	if err != nil {
		slog.Error("locate", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[string]{Items: dirs, Total: len(dirs)})
}
