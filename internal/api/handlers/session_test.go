package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	internaldb "github.com/eargollo/selector/internal/db"
	"github.com/eargollo/selector/internal/session"
	"github.com/eargollo/selector/internal/store"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "test.db")
	db, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.RunMigrations(db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// newSessionHandler builds a SessionHandler plus a directory seeded with the
// named image files.
func newSessionHandler(tb testing.TB, images ...string) (*SessionHandler, string) {
	tb.Helper()
	dir := tb.TempDir()
	for _, name := range images {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			tb.Fatalf("seed %s: %v", name, err)
		}
	}
	st := store.New(mustOpenDB(tb))
	return &SessionHandler{Sessions: session.NewManager(st, 2, 2)}, dir
}

func decodeJSON(tb testing.TB, rec *httptest.ResponseRecorder, out interface{}) {
	tb.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		tb.Fatalf("decode response: %v", err)
	}
}

// errorCode extracts the machine-readable code from an error response.
func errorCode(tb testing.TB, rec *httptest.ResponseRecorder) string {
	tb.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(tb, rec, &body)
	return body.Error.Code
}

// TestOpenMissingDirectory verifies a nonexistent directory yields 404.
func TestOpenMissingDirectory(t *testing.T) {
	h, dir := newSessionHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session?dir="+filepath.Join(dir, "nope"), nil)
	rec := httptest.NewRecorder()
	h.Open(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

// TestOpenAndActivate opens a directory and activates the first cell through
// the HTTP surface.
func TestOpenAndActivate(t *testing.T) {
	h, dir := newSessionHandler(t, "a.jpg", "b.jpg")

	rec := httptest.NewRecorder()
	h.Open(rec, httptest.NewRequest(http.MethodGet, "/api/session?dir="+dir, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open: got %d, want 200: %s", rec.Code, rec.Body)
	}
	var opened session.State
	decodeJSON(t, rec, &opened)
	if opened.TotalImages != 2 || opened.FocusedIndex != 0 {
		t.Fatalf("open state: %+v", opened)
	}

	rec = httptest.NewRecorder()
	h.Activate(rec, httptest.NewRequest(http.MethodPost, "/api/session/activate",
		strings.NewReader(`{"row":0,"col":1}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: got %d: %s", rec.Code, rec.Body)
	}
	var st session.State
	decodeJSON(t, rec, &st)
	if st.FocusedIndex != 1 || st.FocusedImage != "b.jpg" {
		t.Errorf("got focus %d (%q), want 1 (b.jpg)", st.FocusedIndex, st.FocusedImage)
	}
	if !st.Cells[0][1].Grouped {
		t.Error("activated cell is not grouped")
	}
}

// TestEventsWithoutSession verifies event endpoints 404 before any open.
func TestEventsWithoutSession(t *testing.T) {
	h := &SessionHandler{Sessions: session.NewManager(store.New(mustOpenDB(t)), 2, 2)}

	rec := httptest.NewRecorder()
	h.Move(rec, httptest.NewRequest(http.MethodPost, "/api/session/move",
		strings.NewReader(`{"direction":"left"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NO_SESSION" {
		t.Errorf("got code %q, want NO_SESSION", code)
	}
}

// TestMalformedEvents verifies unknown directions and out-of-extent cells map
// to 400 MALFORMED_EVENT.
func TestMalformedEvents(t *testing.T) {
	h, dir := newSessionHandler(t, "a.jpg")
	rec := httptest.NewRecorder()
	h.Open(rec, httptest.NewRequest(http.MethodGet, "/api/session?dir="+dir, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open: %d", rec.Code)
	}

	cases := []struct {
		name string
		call func(rec *httptest.ResponseRecorder)
	}{
		{"bad direction", func(rec *httptest.ResponseRecorder) {
			h.Move(rec, httptest.NewRequest(http.MethodPost, "/api/session/move",
				strings.NewReader(`{"direction":"diagonal"}`)))
		}},
		{"cell outside extent", func(rec *httptest.ResponseRecorder) {
			h.Activate(rec, httptest.NewRequest(http.MethodPost, "/api/session/activate",
				strings.NewReader(`{"row":5,"col":5}`)))
		}},
		{"bad decision", func(rec *httptest.ResponseRecorder) {
			h.Decide(rec, httptest.NewRequest(http.MethodPost, "/api/session/decision",
				strings.NewReader(`{"decision":"maybe"}`)))
		}},
		{"oversized resize", func(rec *httptest.ResponseRecorder) {
			h.Resize(rec, httptest.NewRequest(http.MethodPost, "/api/session/resize",
				strings.NewReader(`{"rows":9,"cols":9}`)))
		}},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.call(rec)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", tc.name, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "MALFORMED_EVENT" {
			t.Errorf("%s: got code %q, want MALFORMED_EVENT", tc.name, code)
		}
	}
}

// TestFinalizeConflicts verifies the 409 mapping for empty and undecided
// groups.
func TestFinalizeConflicts(t *testing.T) {
	h, dir := newSessionHandler(t, "a.jpg", "b.jpg")
	rec := httptest.NewRecorder()
	h.Open(rec, httptest.NewRequest(http.MethodGet, "/api/session?dir="+dir, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Finalize(rec, httptest.NewRequest(http.MethodPost, "/api/session/finalize", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("empty group: got %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "EMPTY_GROUP" {
		t.Errorf("empty group: got code %q, want EMPTY_GROUP", code)
	}

	rec = httptest.NewRecorder()
	h.Activate(rec, httptest.NewRequest(http.MethodPost, "/api/session/activate",
		strings.NewReader(`{"row":0,"col":0}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Finalize(rec, httptest.NewRequest(http.MethodPost, "/api/session/finalize", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("undecided: got %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "UNDECIDED" {
		t.Errorf("undecided: got code %q, want UNDECIDED", code)
	}
}
