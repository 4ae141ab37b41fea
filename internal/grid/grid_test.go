package grid

import (
	"errors"
	"math/rand"
	"testing"
)

// TestActivateTransitionTable drives a single cell through the full
// activation table and checks each resulting state.
func TestActivateTransitionTable(t *testing.T) {
	g, err := New(3, 3)
	if err != nil {
		t.Fatal(err)
	}

	// Idle cell: activation groups it and hands it focus.
	if _, err := g.Activate(1, 2); err != nil {
		t.Fatalf("activate idle cell: %v", err)
	}
	c := g.Cell(1, 2)
	if !c.Grouped || !c.Focused || c.Keep != KeepNone {
		t.Fatalf("after first activation: %+v", c)
	}
	if g.Cell(0, 0).Focused {
		t.Error("initial focus holder was not demoted")
	}

	// Grouped + focused: activation fully resets the cell.
	if _, err := g.Activate(1, 2); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if c := g.Cell(1, 2); c.Grouped || c.Focused || c.Keep != KeepNone {
		t.Fatalf("after round trip: %+v, want zero cell", c)
	}

	// Grouped but unfocused: activation re-focuses without touching grouping.
	if _, err := g.Activate(0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Activate(2, 2); err != nil {
		t.Fatal(err)
	}
	if c := g.Cell(0, 0); !c.Grouped || c.Focused {
		t.Fatalf("grouped cell after losing focus: %+v", c)
	}
	if _, err := g.Activate(0, 0); err != nil {
		t.Fatal(err)
	}
	if c := g.Cell(0, 0); !c.Grouped || !c.Focused {
		t.Fatalf("grouped cell after re-activation: %+v", c)
	}
}

// TestActivatePreservesOtherDecisions checks that demoting the focus holder
// leaves its grouping and keep/delete decision alone.
func TestActivatePreservesOtherDecisions(t *testing.T) {
	g, _ := New(2, 2)
	if _, err := g.Activate(0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := g.ToggleDecision(Keep); err != nil {
		t.Fatal(err)
	}

	if _, err := g.Activate(1, 1); err != nil {
		t.Fatal(err)
	}
	c := g.Cell(0, 1)
	if !c.Grouped || c.Keep != Keep {
		t.Fatalf("demoted cell lost state: %+v", c)
	}
	if c.Focused {
		t.Error("demoted cell still focused")
	}
}

// TestActivateOutOfBounds verifies events outside the visible extent are
// rejected without mutating anything, including cells that exist on the
// board but are currently hidden.
func TestActivateOutOfBounds(t *testing.T) {
	g, _ := New(2, 2)
	for _, pos := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}, {5, 5}} {
		_, err := g.Activate(pos[0], pos[1])
		if !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("Activate(%d,%d): got %v, want ErrMalformedEvent", pos[0], pos[1], err)
		}
	}
	if idx, ok := g.FocusedIndex(); !ok || idx != 0 {
		t.Errorf("focus moved by rejected events: idx=%d ok=%v", idx, ok)
	}
}

// TestSingleFocusProperty fires a long random sequence of activations and
// verifies at most one visible cell ever holds focus.
func TestSingleFocusProperty(t *testing.T) {
	g, _ := New(4, 5)
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 2000; step++ {
		if _, err := g.Activate(rng.Intn(4), rng.Intn(5)); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		count := 0
		for _, row := range g.Visible() {
			for _, c := range row {
				if c.Focused {
					count++
				}
			}
		}
		if count > 1 {
			t.Fatalf("step %d: %d focused cells", step, count)
		}
	}
}

// TestMoveFocusWraps walks focus a full lap in every direction and expects
// it back at its origin.
func TestMoveFocusWraps(t *testing.T) {
	const rows, cols = 3, 4
	g, _ := New(rows, cols)

	laps := map[Direction]int{Left: cols, Right: cols, Up: rows, Down: rows}
	for dir, n := range laps {
		start, ok := g.FocusedIndex()
		if !ok {
			t.Fatal("no focus before lap")
		}
		for i := 0; i < n; i++ {
			if _, err := g.MoveFocus(dir); err != nil {
				t.Fatalf("%v step %d: %v", dir, i, err)
			}
		}
		if end, _ := g.FocusedIndex(); end != start {
			t.Errorf("%v lap: focus at %d, want %d", dir, end, start)
		}
	}
}

// TestMoveFocusIgnoresHiddenCells resizes down to a single column and checks
// horizontal movement wraps within the visible extent only.
func TestMoveFocusIgnoresHiddenCells(t *testing.T) {
	g, _ := New(3, 1)
	if idx, err := g.MoveFocus(Right); err != nil || idx != 0 {
		t.Errorf("Right on 1-wide grid: idx=%d err=%v, want stay at 0", idx, err)
	}
	if idx, err := g.MoveFocus(Down); err != nil || idx != 1 {
		t.Errorf("Down: idx=%d err=%v, want 1", idx, err)
	}
	if idx, err := g.MoveFocus(Up); err != nil || idx != 0 {
		t.Errorf("Up: idx=%d err=%v, want 0", idx, err)
	}
}

// TestMoveFocusDoesNotTouchGrouping verifies movement changes focus and
// nothing else.
func TestMoveFocusDoesNotTouchGrouping(t *testing.T) {
	g, _ := New(2, 3)
	if _, err := g.Activate(1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := g.ToggleDecision(Delete); err != nil {
		t.Fatal(err)
	}

	if _, err := g.MoveFocus(Right); err != nil {
		t.Fatal(err)
	}
	c := g.Cell(1, 1)
	if !c.Grouped || c.Keep != Delete {
		t.Fatalf("movement disturbed grouped cell: %+v", c)
	}
	if c.Focused {
		t.Error("origin cell kept focus after move")
	}
	if !g.Cell(1, 2).Focused {
		t.Error("destination cell did not gain focus")
	}
}

// TestMoveFocusWithoutCursor deactivates the only focused cell, then
// expects movement to surface the invariant violation instead of patching it.
func TestMoveFocusWithoutCursor(t *testing.T) {
	g, _ := New(2, 2)
	if _, err := g.Activate(0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Activate(0, 0); err != nil { // full reset, cursor gone
		t.Fatal(err)
	}

	_, err := g.MoveFocus(Left)
	var inv *InvariantError
	if !errors.As(err, &inv) || inv.Focused != 0 {
		t.Fatalf("got %v, want InvariantError with 0 focused", err)
	}
}

// TestToggleDecisionWithoutCursor deactivates the only focused cell, then
// expects a decision to surface the invariant violation like movement does.
func TestToggleDecisionWithoutCursor(t *testing.T) {
	g, _ := New(2, 2)
	if _, err := g.Activate(0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Activate(0, 0); err != nil { // full reset, cursor gone
		t.Fatal(err)
	}

	_, err := g.ToggleDecision(Keep)
	var inv *InvariantError
	if !errors.As(err, &inv) || inv.Focused != 0 {
		t.Fatalf("got %v, want InvariantError with 0 focused", err)
	}
}

// TestResizeResetsEverything groups and marks a few cells, resizes, and
// checks the hard reset: only (0,0) focused, nothing grouped or decided.
func TestResizeResetsEverything(t *testing.T) {
	g, _ := New(4, 4)
	for _, pos := range [][2]int{{0, 0}, {1, 3}, {2, 2}} {
		if _, err := g.Activate(pos[0], pos[1]); err != nil {
			t.Fatal(err)
		}
		if _, err := g.ToggleDecision(Keep); err != nil {
			t.Fatal(err)
		}
	}

	idx, err := g.Resize(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("resize focused index %d, want 0", idx)
	}
	for i, row := range g.Visible() {
		for j, c := range row {
			wantFocus := i == 0 && j == 0
			if c.Focused != wantFocus || c.Grouped || c.Keep != KeepNone {
				t.Errorf("cell (%d,%d) after resize: %+v", i, j, c)
			}
		}
	}
}

// TestResizeRejectsBadExtent covers extents outside 1..RowsMax / 1..ColsMax.
func TestResizeRejectsBadExtent(t *testing.T) {
	g, _ := New(2, 2)
	for _, ext := range [][2]int{{0, 3}, {3, 0}, {RowsMax + 1, 2}, {2, ColsMax + 1}} {
		if _, err := g.Resize(ext[0], ext[1]); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("Resize(%d,%d): got %v, want ErrMalformedEvent", ext[0], ext[1], err)
		}
	}
	if g.Rows() != 2 || g.Cols() != 2 {
		t.Error("rejected resize changed the extent")
	}
}

// TestToggleDecision covers the keep/delete cycle on a grouped focused cell
// and the no-op on a focused cell outside the group.
func TestToggleDecision(t *testing.T) {
	g, _ := New(2, 2)

	// Focused but not grouped: decision is a no-op.
	if _, err := g.ToggleDecision(Keep); err != nil {
		t.Fatal(err)
	}
	if c := g.Cell(0, 0); c.Keep != KeepNone {
		t.Fatalf("decision applied to ungrouped cell: %+v", c)
	}

	if _, err := g.Activate(0, 0); err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		press KeepState
		want  KeepState
	}{
		{Keep, Keep},       // set
		{Keep, KeepNone},   // same press clears
		{Delete, Delete},   // set the other way
		{Keep, Keep},       // replaces delete
		{Delete, Delete},   // replaces keep
		{Delete, KeepNone}, // clears again
	}
	for i, s := range steps {
		if _, err := g.ToggleDecision(s.press); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := g.Cell(0, 0).Keep; got != s.want {
			t.Errorf("step %d: keep=%v, want %v", i, got, s.want)
		}
	}

	if _, err := g.ToggleDecision(KeepNone); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("ToggleDecision(KeepNone): got %v, want ErrMalformedEvent", err)
	}
}

// TestParseDirection covers the wire-value parsing for events.
func TestParseDirection(t *testing.T) {
	for s, want := range map[string]Direction{"left": Left, "right": Right, "up": Up, "down": Down} {
		got, err := ParseDirection(s)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("ParseDirection(sideways): got %v, want ErrMalformedEvent", err)
	}
}
