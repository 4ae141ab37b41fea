package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// dirQueue is an unbounded, concurrency-safe queue of directory paths with a
// pending counter so workers know when the whole tree has been visited.
//
// Termination protocol: Push increments pending before enqueuing; Done
// decrements it after a directory's children have all been pushed. When
// pending reaches zero the queue closes and wakes every blocked Pop.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	pending atomic.Int64
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *dirQueue) Push(dir string) {
	q.pending.Add(1)
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue closes.
func (q *dirQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return item, true
}

func (q *dirQueue) Done() {
	if q.pending.Add(-1) == 0 {
		q.Close()
	}
}

// Close unblocks every Pop regardless of pending work. Used on cancellation.
func (q *dirQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Locate walks the tree under root with numWorkers goroutines and returns
// every directory that directly contains a file named filename, sorted by
// path. Unreadable directories and symlinks are skipped. Backs the
// directory picker: given just an image's name, find where it lives.
func Locate(ctx context.Context, root, filename string, numWorkers int) ([]string, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	q := newDirQueue()
	q.Push(root)

	// Wake any blocked Pop if the caller gives up mid-walk.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-watchDone:
		}
	}()

	var mu sync.Mutex
	var found []string

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				dir, ok := q.Pop()
				if !ok {
					return
				}

				entries, err := os.ReadDir(dir)
				if err != nil {
					q.Done()
					continue
				}
				for _, entry := range entries {
					if entry.Type()&fs.ModeSymlink != 0 {
						continue
					}
					if entry.IsDir() {
						q.Push(filepath.Join(dir, entry.Name()))
						continue
					}
					if entry.Name() == filename {
						mu.Lock()
						found = append(found, dir)
						mu.Unlock()
					}
				}
				q.Done()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
