// Package session ties one directory's image list, group history and grid
// together and dispatches user events against them, one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/selector/internal/grid"
	"github.com/eargollo/selector/internal/library"
	"github.com/eargollo/selector/internal/mask"
	"github.com/eargollo/selector/internal/store"
)

// ErrNoImage rejects activation of a visible cell that has no image behind
// it (the tail of the grid when fewer images remain than cells).
var ErrNoImage = errors.New("session: cell has no image")

// ErrEmptyGroup rejects finalisation when no cell is grouped.
var ErrEmptyGroup = errors.New("session: no images are grouped")

// ErrUndecided rejects finalisation while any grouped image still lacks a
// keep/delete decision.
var ErrUndecided = errors.New("session: every grouped image needs a keep or delete decision")

// Session owns the curation state for one directory: the full ordered image
// container, the mask of images claimed by completed groups, and the grid.
// All event methods serialise on an internal mutex, matching the one-event-
// at-a-time dispatch model; nothing here suspends mid-transition.
type Session struct {
	mu        sync.Mutex
	id        string
	directory string
	store     *store.Store

	images  []string // full container, stable for the session
	claimed []bool   // absolute mask over images
	visible []string // images not yet claimed, in container order

	grid *grid.Grid
}

// State is the complete renderable snapshot returned after every event.
type State struct {
	ID           string        `json:"id"`
	Directory    string        `json:"directory"`
	Rows         int           `json:"rows"`
	Cols         int           `json:"cols"`
	Cells        [][]grid.Cell `json:"cells"`
	Images       []string      `json:"images"`        // visible images, row-major over the extent
	FocusedIndex int           `json:"focused_index"` // -1 when deactivation removed the cursor
	FocusedImage string        `json:"focused_image,omitempty"`
	TotalImages  int           `json:"total_images"`
	Claimed      int           `json:"claimed"`
}

// Open loads the directory's images and completed-group history, rebuilds
// the mask so already-processed images stay hidden, and starts a fresh grid
// with the given extent.
func Open(ctx context.Context, st *store.Store, directory string, rows, cols int) (*Session, error) {
	images, err := library.List(directory)
	if err != nil {
		return nil, err
	}

	history, err := st.Selections(ctx, directory)
	if err != nil {
		return nil, err
	}
	claimed, err := mask.Reconstruct(history, len(images))
	if err != nil {
		return nil, fmt.Errorf("session: replay history for %q: %w", directory, err)
	}

	g, err := grid.New(rows, cols)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.NewString(),
		directory: directory,
		store:     st,
		images:    images,
		claimed:   claimed,
		grid:      g,
	}
	s.rebuildVisible()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Directory returns the directory this session curates.
func (s *Session) Directory() string { return s.directory }

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Activate toggles the cell at (row, col) per the grid's activation table.
// Cells beyond the remaining image list are rejected before the grid sees
// them, so grouping can never claim a nonexistent image.
func (s *Session) Activate(row, col int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := col + row*s.grid.Cols(); row >= 0 && row < s.grid.Rows() &&
		col >= 0 && col < s.grid.Cols() && idx >= len(s.visible) {
		return State{}, fmt.Errorf("%w: cell (%d,%d)", ErrNoImage, row, col)
	}
	if _, err := s.grid.Activate(row, col); err != nil {
		return State{}, err
	}
	return s.snapshot(), nil
}

// Move relocates the focus cursor one step, wrapping within the visible
// extent.
func (s *Session) Move(dir grid.Direction) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.grid.MoveFocus(dir); err != nil {
		return State{}, err
	}
	return s.snapshot(), nil
}

// Resize changes the visible extent. Grouping and decisions do not survive:
// a resize starts a fresh pass over the remaining images.
func (s *Session) Resize(rows, cols int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.grid.Resize(rows, cols); err != nil {
		return State{}, err
	}
	return s.snapshot(), nil
}

// Decide toggles a keep/delete decision on the focused group member.
func (s *Session) Decide(decision grid.KeepState) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.grid.ToggleDecision(decision); err != nil {
		return State{}, err
	}
	return s.snapshot(), nil
}

// FinalizeGroup flushes the current group: every grouped cell must carry a
// decision. The group is persisted with pool-relative positions, the mask
// is extended so its images disappear from the pool, and the grid resets
// for the next pass.
func (s *Session) FinalizeGroup(ctx context.Context) (*store.GroupRecord, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var positions []int
	var groupImages []store.GroupImage
	for i, row := range s.grid.Visible() {
		for j, cell := range row {
			if !cell.Grouped {
				continue
			}
			pos := j + i*s.grid.Cols()
			if pos >= len(s.visible) {
				return nil, State{}, fmt.Errorf("%w: cell (%d,%d)", ErrNoImage, i, j)
			}
			if cell.Keep == grid.KeepNone {
				return nil, State{}, fmt.Errorf("%w: %q", ErrUndecided, s.visible[pos])
			}
			positions = append(positions, pos)
			groupImages = append(groupImages, store.GroupImage{
				Filename: s.visible[pos],
				Keep:     cell.Keep == grid.Keep,
				Position: pos,
			})
		}
	}
	if len(groupImages) == 0 {
		return nil, State{}, ErrEmptyGroup
	}

	rec := &store.GroupRecord{
		Directory: s.directory,
		CreatedAt: time.Now(),
		Images:    groupImages,
	}
	if err := s.store.SaveGroup(ctx, rec); err != nil {
		return nil, State{}, err
	}

	// The just-saved positions are relative to the current pool, which is
	// exactly what Apply consumes on top of the existing mask.
	if err := mask.Apply(s.claimed, positions); err != nil {
		return nil, State{}, fmt.Errorf("session: extend mask: %w", err)
	}
	s.rebuildVisible()

	if _, err := s.grid.Resize(s.grid.Rows(), s.grid.Cols()); err != nil {
		return nil, State{}, err
	}
	return rec, s.snapshot(), nil
}

// rebuildVisible refilters the container through the mask.
func (s *Session) rebuildVisible() {
	s.visible = s.visible[:0]
	for i, name := range s.images {
		if !s.claimed[i] {
			s.visible = append(s.visible, name)
		}
	}
}

// snapshot builds a State under the lock.
func (s *Session) snapshot() State {
	st := State{
		ID:           s.id,
		Directory:    s.directory,
		Rows:         s.grid.Rows(),
		Cols:         s.grid.Cols(),
		Cells:        s.grid.Visible(),
		TotalImages:  len(s.images),
		Claimed:      len(s.images) - len(s.visible),
		FocusedIndex: -1,
	}

	n := st.Rows * st.Cols
	if n > len(s.visible) {
		n = len(s.visible)
	}
	st.Images = append([]string{}, s.visible[:n]...)

	if idx, ok := s.grid.FocusedIndex(); ok {
		st.FocusedIndex = idx
		if idx < len(s.visible) {
			st.FocusedImage = s.visible[idx]
		}
	}
	return st
}
