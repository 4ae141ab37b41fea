package session

import (
	"context"
	"errors"
	"sync"

	"github.com/eargollo/selector/internal/store"
)

// ErrNoSession is returned by Current before any directory has been opened.
var ErrNoSession = errors.New("session: no directory open")

// Manager holds the single active session. Opening a directory discards the
// previous session outright — no event ever spans a directory switch.
type Manager struct {
	mu          sync.Mutex
	store       *store.Store
	defaultRows int
	defaultCols int
	current     *Session
}

// NewManager creates a Manager that opens sessions with the given default
// grid extent.
func NewManager(st *store.Store, defaultRows, defaultCols int) *Manager {
	return &Manager{store: st, defaultRows: defaultRows, defaultCols: defaultCols}
}

// Open builds a fresh session for directory, replacing any current one.
func (m *Manager) Open(ctx context.Context, directory string) (*Session, error) {
	s, err := Open(ctx, m.store, directory, m.defaultRows, m.defaultCols)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Current returns the active session.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}
