// Package store persists completed duplicate groups and replays their
// selection history for the mask reconstructor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GroupImage is one image's entry in a completed group.
type GroupImage struct {
	Filename string `json:"filename"`
	Keep     bool   `json:"keep"`
	// Position is the image's index within the pool of images still
	// visible when the group was completed — not an absolute index into
	// the directory listing. Earlier groups shrink the pool for later
	// ones, which is why Selections returns history in completion order.
	Position int `json:"position"`
}

// GroupRecord is a completed group as handed off by the session. ID is
// derived from the creation timestamp, which makes it unique per group and
// sorts history chronologically.
type GroupRecord struct {
	ID        int64        `json:"id"`
	Directory string       `json:"directory"`
	CreatedAt time.Time    `json:"created_at"`
	Images    []GroupImage `json:"images"`
}

// Store reads and writes group records in SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store on an already-migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveGroup inserts one row per image in the group, all sharing the
// timestamp-derived group id. An empty group is rejected: finalisation
// should never produce one.
func (s *Store) SaveGroup(ctx context.Context, rec *GroupRecord) error {
	if len(rec.Images) == 0 {
		return fmt.Errorf("store: refusing to save empty group for %q", rec.Directory)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	// Microsecond resolution keeps ids unique even for back-to-back groups.
	if rec.ID == 0 {
		rec.ID = rec.CreatedAt.UnixMicro()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save group: %w", err)
	}
	defer tx.Rollback()

	for _, img := range rec.Images {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO image_groups (group_id, directory, filename, keep, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Directory, img.Filename, img.Keep, img.Position, rec.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("store: insert group row %q: %w", img.Filename, err)
		}
	}
	return tx.Commit()
}

// Selections returns, for each completed group of the directory, the set of
// pool-relative positions it claimed — ordered by completion (group id
// ascending), which is the order the mask reconstructor requires.
func (s *Store) Selections(ctx context.Context, directory string) ([][]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, position FROM image_groups
		WHERE directory = ?
		ORDER BY group_id ASC, position ASC`, directory)
	if err != nil {
		return nil, fmt.Errorf("store: query selections for %q: %w", directory, err)
	}
	defer rows.Close()

	var out [][]int
	lastGroup := int64(-1)
	for rows.Next() {
		var groupID int64
		var position int
		if err := rows.Scan(&groupID, &position); err != nil {
			return nil, fmt.Errorf("store: scan selection row: %w", err)
		}
		if groupID != lastGroup {
			out = append(out, nil)
			lastGroup = groupID
		}
		out[len(out)-1] = append(out[len(out)-1], position)
	}
	return out, rows.Err()
}

// Groups returns the directory's completed groups, newest first, for the
// history view.
func (s *Store) Groups(ctx context.Context, directory string) ([]GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, filename, keep, position, created_at FROM image_groups
		WHERE directory = ?
		ORDER BY group_id DESC, position ASC`, directory)
	if err != nil {
		return nil, fmt.Errorf("store: query groups for %q: %w", directory, err)
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var (
			groupID   int64
			img       GroupImage
			createdAt int64
		)
		if err := rows.Scan(&groupID, &img.Filename, &img.Keep, &img.Position, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan group row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != groupID {
			out = append(out, GroupRecord{
				ID:        groupID,
				Directory: directory,
				CreatedAt: time.Unix(createdAt, 0).UTC(),
			})
		}
		last := &out[len(out)-1]
		last.Images = append(last.Images, img)
	}
	return out, rows.Err()
}

// Decisions returns every filename with a recorded decision for the
// directory, mapped to its keep flag. When an image appears in several
// groups the most recent decision wins. Backs consolidation.
func (s *Store) Decisions(ctx context.Context, directory string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, keep FROM image_groups
		WHERE directory = ?
		ORDER BY group_id ASC`, directory)
	if err != nil {
		return nil, fmt.Errorf("store: query decisions for %q: %w", directory, err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var filename string
		var keep bool
		if err := rows.Scan(&filename, &keep); err != nil {
			return nil, fmt.Errorf("store: scan decision row: %w", err)
		}
		out[filename] = keep
	}
	return out, rows.Err()
}
