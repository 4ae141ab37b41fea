// Package backup consolidates keep/delete decisions against the filesystem.
// Images marked delete are never unlinked directly: they move into a dated
// backup directory and expire after a retention period.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

// ErrNotBackedUp is returned when the item is not in 'backed_up' state
// (unknown id, already purged, or already restored).
var ErrNotBackedUp = errors.New("backup item not found or already purged/restored")

// ErrRestoreConflict is returned when the restore target path is occupied.
type ErrRestoreConflict struct {
	Path string
}

func (e *ErrRestoreConflict) Error() string {
	return fmt.Sprintf("a file already exists at %q", e.Path)
}

// Manager moves delete-marked images into the backup directory and back.
type Manager struct {
	db            *sql.DB
	backupDir     string
	retentionDays int
}

// New creates a backup Manager.
func New(db *sql.DB, backupDir string, retentionDays int) *Manager {
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &Manager{db: db, backupDir: backupDir, retentionDays: retentionDays}
}

// Consolidate applies the directory's recorded decisions to disk: every
// file whose decision is delete is moved into the backup directory and
// recorded. Files already gone are skipped (a previous consolidation took
// them). Returns how many files were moved.
func (m *Manager) Consolidate(ctx context.Context, directory string, decisions map[string]bool) (int, error) {
	names := make([]string, 0, len(decisions))
	for name, keep := range decisions {
		if !keep {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	moved := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return moved, ctx.Err()
		}
		originalPath := filepath.Join(directory, name)
		info, err := os.Stat(originalPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("stat %q: %w", originalPath, err)
		}

		if _, err := m.moveToBackup(ctx, directory, name, originalPath, info.Size()); err != nil {
			return moved, err
		}
		moved++
	}

	slog.Info("consolidation complete", "directory", directory, "files_moved", moved)
	return moved, nil
}

// moveToBackup moves one file into the backup directory and records it.
func (m *Manager) moveToBackup(ctx context.Context, directory, name, originalPath string, size int64) (int64, error) {
	backupPath := m.buildBackupPath(originalPath)
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return 0, fmt.Errorf("create backup subdir: %w", err)
	}
	if err := moveFile(originalPath, backupPath); err != nil {
		return 0, fmt.Errorf("move to backup: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(m.retentionDays) * 24 * time.Hour)

	res, err := m.db.ExecContext(ctx, `
		INSERT INTO backups
			(directory, filename, original_path, backup_path, file_size,
			 moved_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'backed_up')`,
		directory, name, originalPath, backupPath, size,
		now.Unix(), expiresAt.Unix())
	if err != nil {
		// Best-effort rollback so the image is not stranded.
		if rerr := moveFile(backupPath, originalPath); rerr != nil {
			slog.Error("rollback move-to-backup failed", "path", originalPath, "error", rerr)
		}
		return 0, fmt.Errorf("insert backup record: %w", err)
	}

	id, _ := res.LastInsertId()
	slog.Info("image backed up", "path", originalPath, "backup_id", id,
		"expires_at", expiresAt.Format(time.RFC3339))
	return id, nil
}

// Restore moves a backed-up image back to its original path.
func (m *Manager) Restore(ctx context.Context, backupID int64) error {
	var originalPath, backupPath string
	err := m.db.QueryRowContext(ctx,
		`SELECT original_path, backup_path FROM backups WHERE id = ? AND status = 'backed_up'`,
		backupID,
	).Scan(&originalPath, &backupPath)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotBackedUp
	}
	if err != nil {
		return fmt.Errorf("lookup backup item %d: %w", backupID, err)
	}

	if _, err := os.Stat(originalPath); err == nil {
		return &ErrRestoreConflict{Path: originalPath}
	}
	if err := os.MkdirAll(filepath.Dir(originalPath), 0o755); err != nil {
		return fmt.Errorf("recreate restore dir: %w", err)
	}
	if err := moveFile(backupPath, originalPath); err != nil {
		return fmt.Errorf("restore file: %w", err)
	}

	if _, err := m.db.ExecContext(ctx,
		`UPDATE backups SET status='restored', restored_at=? WHERE id=?`,
		time.Now().Unix(), backupID,
	); err != nil {
		slog.Error("update backup status after restore", "backup_id", backupID, "error", err)
	}

	slog.Info("image restored", "path", originalPath, "backup_id", backupID)
	return nil
}

// Item is one backup row for the history view.
type Item struct {
	ID           int64     `json:"id"`
	Directory    string    `json:"directory"`
	Filename     string    `json:"filename"`
	OriginalPath string    `json:"original_path"`
	BackupPath   string    `json:"backup_path"`
	FileSize     int64     `json:"file_size"`
	MovedAt      time.Time `json:"moved_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// List returns all active (not yet purged or restored) backup items,
// newest first.
func (m *Manager) List(ctx context.Context) ([]Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, directory, filename, original_path, backup_path, file_size, moved_at, expires_at
		FROM backups WHERE status = 'backed_up'
		ORDER BY moved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query backups: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var movedAt, expiresAt int64
		if err := rows.Scan(&it.ID, &it.Directory, &it.Filename, &it.OriginalPath,
			&it.BackupPath, &it.FileSize, &movedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		it.MovedAt = time.Unix(movedAt, 0).UTC()
		it.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}

// PurgeExpired removes backup files whose retention has lapsed. Intended to
// run from the scheduler.
func (m *Manager) PurgeExpired(ctx context.Context) error {
	count, bytes, err := m.purge(ctx,
		`SELECT id, backup_path, file_size FROM backups
		 WHERE status = 'backed_up' AND expires_at < ?`,
		time.Now().Unix())
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("backup purge complete", "files_purged", count, "bytes_freed", bytes)
	}
	return nil
}

// PurgeAll removes every active backup file immediately.
func (m *Manager) PurgeAll(ctx context.Context) (count, bytesFreed int64, err error) {
	return m.purge(ctx,
		`SELECT id, backup_path, file_size FROM backups WHERE status = 'backed_up'`)
}

func (m *Manager) purge(ctx context.Context, query string, args ...interface{}) (count, bytesFreed int64, err error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("query backups for purge: %w", err)
	}
	defer rows.Close()

	type purgeItem struct {
		id         int64
		backupPath string
		fileSize   int64
	}
	var items []purgeItem
	for rows.Next() {
		var it purgeItem
		if err := rows.Scan(&it.id, &it.backupPath, &it.fileSize); err != nil {
			return count, bytesFreed, fmt.Errorf("scan purge row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return count, bytesFreed, err
	}

	now := time.Now().Unix()
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}

		// Treat "already gone" as success; anything else leaves the row
		// in 'backed_up' so a later purge retries.
		if rerr := os.Remove(it.backupPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			slog.Warn("purge: remove file failed", "path", it.backupPath, "error", rerr)
			continue
		}

		if _, dbErr := m.db.ExecContext(ctx,
			`UPDATE backups SET status='purged', purged_at=? WHERE id=?`,
			now, it.id,
		); dbErr != nil {
			slog.Error("purge: update backup status", "backup_id", it.id, "error", dbErr)
		}

		count++
		bytesFreed += it.fileSize
	}
	return count, bytesFreed, nil
}

// buildBackupPath returns a unique path inside backupDir for the original
// file: backupDir/YYYY-MM-DD/<unix_nano>_<basename>.
func (m *Manager) buildBackupPath(originalPath string) string {
	now := time.Now()
	filename := fmt.Sprintf("%d_%s", now.UnixNano(), filepath.Base(originalPath))
	return filepath.Join(m.backupDir, now.Format("2006-01-02"), filename)
}

// moveFile tries os.Rename first; falls back to copy+delete across devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var le *os.LinkError
	if errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV) {
		return copyThenDelete(src, dst)
	}
	return err
}

// copyThenDelete copies src to dst then removes src. dst is cleaned up on
// error.
func copyThenDelete(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
