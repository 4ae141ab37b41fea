// Package grid implements the in-memory state machine behind the image
// selection grid: a fixed-capacity board of cells, a movable focus cursor,
// duplicate-group membership and per-cell keep/delete decisions.
//
// The grid is the canonical state; the web UI only renders snapshots of it
// and forwards raw events back.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Maximum board dimensions. The visible extent can be anything from 1x1 up
// to this; hidden cells keep whatever state they had when they were hidden.
const (
	RowsMax = 7
	ColsMax = 7
)

// KeepState is the decision recorded for a grouped cell.
type KeepState int

const (
	KeepNone KeepState = iota
	Keep
	Delete
)

func (k KeepState) String() string {
	switch k {
	case Keep:
		return "keep"
	case Delete:
		return "delete"
	default:
		return "none"
	}
}

// MarshalJSON renders the decision as its wire string ("none", "keep",
// "delete").
func (k KeepState) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the wire strings produced by MarshalJSON.
func (k *KeepState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*k = KeepNone
		return nil
	case "keep":
		*k = Keep
		return nil
	case "delete":
		*k = Delete
		return nil
	}
	return fmt.Errorf("unknown keep state %q", s)
}

// ParseKeepState converts a wire value ("keep", "delete") to a KeepState.
func ParseKeepState(s string) (KeepState, error) {
	switch s {
	case "keep":
		return Keep, nil
	case "delete":
		return Delete, nil
	default:
		return KeepNone, fmt.Errorf("%w: keep state %q", ErrMalformedEvent, s)
	}
}

// Direction is a focus movement.
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection converts a wire value to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrMalformedEvent, s)
	}
}

// ErrMalformedEvent is wrapped by every rejection of an event that names a
// cell, direction or extent the grid does not have. No state is mutated when
// it is returned.
var ErrMalformedEvent = errors.New("grid: malformed event")

// InvariantError reports a broken focus invariant: anything other than
// exactly one focused cell in the visible region when one is required.
// It indicates a caller bug and is never repaired silently.
type InvariantError struct {
	Focused int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("grid: focus invariant violated: %d focused cells in visible region", e.Focused)
}

// Cell is one board position. Keep is only meaningful while Grouped is true;
// every transition that clears Grouped clears Keep with it.
type Cell struct {
	Grouped bool      `json:"grouped"`
	Focused bool      `json:"focused"`
	Keep    KeepState `json:"keep"`
}

// Grid is a RowsMax x ColsMax board with a live visible extent. Only the
// top-left rows x cols sub-array is interactive; wraparound and neighbour
// math never sees hidden cells.
type Grid struct {
	cells [RowsMax][ColsMax]Cell
	rows  int
	cols  int
}

// New returns a grid with the given visible extent, fully reset and with
// focus on (0,0).
func New(rows, cols int) (*Grid, error) {
	g := &Grid{}
	if _, err := g.Resize(rows, cols); err != nil {
		return nil, err
	}
	return g, nil
}

// Rows returns the visible row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the visible column count.
func (g *Grid) Cols() int { return g.cols }

// Cell returns a copy of the cell at (row, col) on the full board.
func (g *Grid) Cell(row, col int) Cell { return g.cells[row][col] }

// Visible returns a copy of the visible sub-array in row-major order.
func (g *Grid) Visible() [][]Cell {
	out := make([][]Cell, g.rows)
	for i := 0; i < g.rows; i++ {
		out[i] = make([]Cell, g.cols)
		copy(out[i], g.cells[i][:g.cols])
	}
	return out
}

// FocusedIndex returns the row-major image index (col + row*cols) of the
// focused visible cell, or false if no visible cell holds focus.
func (g *Grid) FocusedIndex() (int, bool) {
	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			if g.cells[i][j].Focused {
				return j + i*g.cols, true
			}
		}
	}
	return 0, false
}

// Activate toggles the cell at (row, col) through the activation table:
//
//	ungrouped            -> grouped + focused
//	grouped, unfocused   -> grouped + focused
//	grouped, focused     -> fully reset (leaves the grid without focus)
//
// Any other visible cell holding focus is demoted; its grouping and decision
// are untouched. Returns the image index of the target cell.
func (g *Grid) Activate(row, col int) (int, error) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return 0, fmt.Errorf("%w: cell (%d,%d) outside visible %dx%d extent",
			ErrMalformedEvent, row, col, g.rows, g.cols)
	}

	target := &g.cells[row][col]
	deactivated := false
	switch {
	case target.Grouped && target.Focused:
		// Second activation of the focused group member undoes everything,
		// including its decision.
		*target = Cell{}
		deactivated = true
	default:
		target.Grouped = true
		target.Focused = true
	}

	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			if i == row && j == col {
				continue
			}
			g.cells[i][j].Focused = false
		}
	}

	if err := g.checkFocus(deactivated); err != nil {
		return 0, err
	}
	return col + row*g.cols, nil
}

// MoveFocus relocates focus one step in the given direction, wrapping within
// the visible extent. Grouping and decisions are never touched. Returns the
// image index of the newly focused cell.
func (g *Grid) MoveFocus(dir Direction) (int, error) {
	row, col, ok := g.focusedCell()
	if !ok {
		return 0, &InvariantError{Focused: 0}
	}

	switch dir {
	case Left:
		col = (col - 1 + g.cols) % g.cols
	case Right:
		col = (col + 1) % g.cols
	case Up:
		row = (row - 1 + g.rows) % g.rows
	case Down:
		row = (row + 1) % g.rows
	default:
		return 0, fmt.Errorf("%w: direction %d", ErrMalformedEvent, int(dir))
	}

	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			g.cells[i][j].Focused = i == row && j == col
		}
	}
	return col + row*g.cols, nil
}

// Resize changes the visible extent and hard-resets the whole board: every
// cell loses grouping, focus and decision, then (0,0) gains focus. Prior
// grouping does not survive a resize.
func (g *Grid) Resize(rows, cols int) (int, error) {
	if rows < 1 || rows > RowsMax || cols < 1 || cols > ColsMax {
		return 0, fmt.Errorf("%w: extent %dx%d outside 1..%dx1..%d",
			ErrMalformedEvent, rows, cols, RowsMax, ColsMax)
	}
	g.rows = rows
	g.cols = cols
	for i := range g.cells {
		for j := range g.cells[i] {
			g.cells[i][j] = Cell{}
		}
	}
	g.cells[0][0].Focused = true
	return 0, nil
}

// ToggleDecision applies a keep/delete decision to the focused cell. The
// decision toggles: requesting the current state clears it, requesting the
// other state replaces it. A focused cell outside the current group is left
// alone, matching the interaction model (only group members get decisions).
// Returns the image index of the focused cell.
func (g *Grid) ToggleDecision(decision KeepState) (int, error) {
	if decision != Keep && decision != Delete {
		return 0, fmt.Errorf("%w: decision %d", ErrMalformedEvent, int(decision))
	}
	row, col, ok := g.focusedCell()
	if !ok {
		return 0, &InvariantError{Focused: 0}
	}

	cell := &g.cells[row][col]
	if cell.Grouped {
		if cell.Keep == decision {
			cell.Keep = KeepNone
		} else {
			cell.Keep = decision
		}
	}
	return col + row*g.cols, nil
}

// focusedCell scans the visible region for the focus cursor.
func (g *Grid) focusedCell() (row, col int, ok bool) {
	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			if g.cells[i][j].Focused {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// checkFocus verifies the post-transition focus count. More than one focused
// cell is always a caller bug. Zero is legal only immediately after the
// deactivation transition, which is the one path that removes the cursor.
func (g *Grid) checkFocus(deactivated bool) error {
	count := 0
	for i := 0; i < g.rows; i++ {
		for j := 0; j < g.cols; j++ {
			if g.cells[i][j].Focused {
				count++
			}
		}
	}
	if count > 1 || (count == 0 && !deactivated) {
		return &InvariantError{Focused: count}
	}
	return nil
}
