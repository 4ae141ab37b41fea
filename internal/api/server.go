// Package api wires the HTTP surface: the JSON API plus the embedded UI.
package api

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/selector/internal/api/handlers"
	"github.com/eargollo/selector/internal/backup"
	"github.com/eargollo/selector/internal/config"
	"github.com/eargollo/selector/internal/session"
	"github.com/eargollo/selector/internal/store"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(
	addr string,
	cfg *config.Config,
	sessions *session.Manager,
	st *store.Store,
	backupMgr *backup.Manager,
	version string,
	templatesFS fs.FS,
	staticFS fs.FS,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	sessionH := &handlers.SessionHandler{Sessions: sessions}
	imagesH := &handlers.ImagesHandler{
		LibraryRoot:   cfg.LibraryRoot,
		LocateWorkers: cfg.LocateWorkers,
	}
	groupsH := &handlers.GroupsHandler{Store: st}
	backupH := &handlers.BackupHandler{Backup: backupMgr, Store: st}

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionH.Open)
		r.Get("/session/state", sessionH.State)
		r.Post("/session/activate", sessionH.Activate)
		r.Post("/session/move", sessionH.Move)
		r.Post("/session/resize", sessionH.Resize)
		r.Post("/session/decision", sessionH.Decide)
		r.Post("/session/finalize", sessionH.Finalize)

		r.Get("/images", imagesH.Serve)
		r.Get("/images/thumbnail", imagesH.Thumbnail)
		r.Get("/images/info", imagesH.Info)
		r.Get("/locate", imagesH.Locate)

		r.Get("/groups", groupsH.List)

		r.Post("/backup/consolidate", backupH.Consolidate)
		r.Get("/backup", backupH.List)
		r.Post("/backup/{id}/restore", backupH.Restore)
		r.Delete("/backup", backupH.PurgeAll)
	})

	if staticFS != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}
	if templatesFS != nil {
		ps := &pageServer{version: version, templatesFS: templatesFS}
		r.Get("/", ps.indexPage)
	}

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: r},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// pageServer renders the single-page UI shell; all state comes from the API.
type pageServer struct {
	version     string
	templatesFS fs.FS
}

func (ps *pageServer) indexPage(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(ps.templatesFS, "index.html")
	if err != nil {
		slog.Error("parse index template", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, map[string]string{"Version": ps.version}); err != nil {
		slog.Error("render index template", "error", err)
	}
}
