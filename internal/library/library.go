// Package library provides the image list for a directory and a filesystem
// search for locating a named image.
package library

import (
	"fmt"
	"os"
	"sort"

	"github.com/eargollo/selector/internal/media"
)

// List returns the filenames of all images directly inside dir, sorted by
// name. The order is stable across calls for an unchanged directory, which
// the session layer relies on: grid positions and stored group history are
// both indices into this list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images in %q: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}
		if !media.IsImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
