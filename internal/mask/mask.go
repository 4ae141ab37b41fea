// Package mask rebuilds the absolute "already processed" mask for a
// directory's image list from the history of completed groups.
//
// Each group recorded the positions of its images relative to the pool of
// images still visible when the group was formed, not absolute indices.
// Reconstruction therefore replays the groups in completion order: every
// group is resolved against the images the earlier groups left unclaimed.
package mask

import (
	"errors"
	"fmt"
)

// ReconstructionError reports a group whose recorded position cannot be
// resolved because the remaining pool is too small. It means the stored
// history does not match the image list; reconstruction never guesses
// past it.
type ReconstructionError struct {
	Group     int // index of the offending group, in completion order
	Position  int // the requested pool-relative position
	Available int // how many unclaimed images the pool actually had
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("mask: group %d selects position %d but only %d images remain unclaimed",
		e.Group, e.Position, e.Available)
}

// Apply claims the images selected by one group's pool-relative positions,
// mutating m in place. The mask is scanned left to right and positions are
// counted over unclaimed entries only, so m must already reflect every
// earlier group. On error m is left unchanged.
func Apply(m []bool, positions []int) error {
	if len(positions) == 0 {
		return nil
	}

	wanted := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 0 {
			return &ReconstructionError{Position: pos, Available: countUnclaimed(m)}
		}
		wanted[pos] = true
	}

	var claim []int
	available := 0
	for i, claimed := range m {
		if claimed {
			continue
		}
		if wanted[available] {
			claim = append(claim, i)
			delete(wanted, available)
		}
		available++
	}

	if len(wanted) > 0 {
		// Report the lowest unsatisfied position for diagnosis.
		unmet := -1
		for pos := range wanted {
			if unmet == -1 || pos < unmet {
				unmet = pos
			}
		}
		return &ReconstructionError{Position: unmet, Available: available}
	}

	for _, i := range claim {
		m[i] = true
	}
	return nil
}

func countUnclaimed(m []bool) int {
	n := 0
	for _, claimed := range m {
		if !claimed {
			n++
		}
	}
	return n
}

// Reconstruct maps the given sequence of pool-relative selection sets onto a
// boolean mask over the full image list: mask[i] is true when image i was
// claimed by some completed group. Groups must be supplied in completion
// order — the order is semantic, since each group's positions count only the
// images its predecessors left behind.
func Reconstruct(groups [][]int, totalImages int) ([]bool, error) {
	out := make([]bool, totalImages)
	for gi, group := range groups {
		if err := Apply(out, group); err != nil {
			var re *ReconstructionError
			if errors.As(err, &re) {
				re.Group = gi
			}
			return nil, err
		}
	}
	return out, nil
}
