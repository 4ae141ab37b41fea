package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eargollo/selector/internal/api"
	"github.com/eargollo/selector/internal/backup"
	"github.com/eargollo/selector/internal/config"
	"github.com/eargollo/selector/internal/db"
	"github.com/eargollo/selector/internal/scheduler"
	"github.com/eargollo/selector/internal/session"
	"github.com/eargollo/selector/internal/store"
	"github.com/eargollo/selector/web"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Re-configure logging with the level from config (default: info).
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("selector starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"library_root", cfg.LibraryRoot)

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// ── Store, sessions, backup ────────────────────────────────────────────
	st := store.New(database)
	sessions := session.NewManager(st, cfg.DefaultRows, cfg.DefaultCols)
	backupMgr := backup.New(database, cfg.BackupDir, cfg.BackupRetentionDays)

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	if err := sched.AddJob("0 3 * * *", func() {
		slog.Info("backup retention purge triggered")
		if err := backupMgr.PurgeExpired(context.Background()); err != nil {
			slog.Error("backup retention purge failed", "error", err)
		}
	}); err != nil {
		slog.Warn("failed to register retention purge job", "error", err)
	}

	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(cfg.HTTPAddr, cfg, sessions, st, backupMgr, version, web.Templates(), web.Static())
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("selector stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
