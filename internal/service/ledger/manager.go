package ledger

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrManagerClosed is returned by SignIn after Close.
var ErrManagerClosed = errors.New("session manager closed")

// Manager tracks one live session per user.
type Manager struct {
	stores Stores
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	group    singleflight.Group
}

// NewManager creates a manager that opens sessions over stores.
func NewManager(stores Stores, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		stores:   stores,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// SignIn opens a fresh session for principal. An existing session for the
// same user is replaced and fully closed before SignIn returns.
func (m *Manager) SignIn(ctx context.Context, principal Principal) (*Session, error) {
	session, err := Open(ctx, principal, m.stores, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		session.Close()
		return nil, ErrManagerClosed
	}
	previous := m.sessions[principal.UserID]
	m.sessions[principal.UserID] = session
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
		m.logger.Info("session replaced",
			zap.String("user", principal.UserID),
			zap.String("previous", previous.ID()),
			zap.String("current", session.ID()),
		)
	}
	return session, nil
}

// Acquire returns the live session for principal, signing in when there is
// none. Concurrent first calls for one user share a single sign-in.
func (m *Manager) Acquire(ctx context.Context, principal Principal) (*Session, error) {
	if principal.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if session, err := m.Session(principal.UserID); err == nil {
		return session, nil
	}

	v, err, _ := m.group.Do(principal.UserID, func() (any, error) {
		if session, err := m.Session(principal.UserID); err == nil {
			return session, nil
		}
		return m.SignIn(ctx, principal)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Session returns the live session of userID.
func (m *Manager) Session(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[userID]
	if !ok || session.Closed() {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// SignOut closes the session of userID, if any.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	session := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

// Close signs every user out. Later sign-ins fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
