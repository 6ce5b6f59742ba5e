// Package session owns the process-wide authentication state: whether a user
// is logged in and who they are.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lumachat/lumachat/internal/domain"
	"github.com/lumachat/lumachat/internal/storage"
	"github.com/lumachat/lumachat/pkg/log"
)

// StorageKey is the fixed key the session state is persisted under.
const StorageKey = "auth-storage"

// persistedState is the wire shape of the persisted session record.
type persistedState struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	User            *domain.User `json:"user"`
}

// Store is the single source of truth for "who is logged in". It is a
// process singleton owned by the application wiring, not a package global.
type Store struct {
	mu            sync.RWMutex
	authenticated bool
	user          *domain.User

	state storage.StateStore
}

// NewStore creates a logged-out session store persisting through state.
func NewStore(state storage.StateStore) *Store {
	return &Store{state: state}
}

// Initialize rehydrates the session from the persisted record. A missing
// record leaves the store logged out; a malformed one is discarded with a
// warning, never an error.
func (s *Store) Initialize(ctx context.Context) {
	l := log.Ctx(ctx)

	raw, err := s.state.Load(ctx, StorageKey)
	if err != nil {
		if err != storage.ErrNotFound {
			l.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to load stored session")
		}
		return
	}

	var stored persistedState
	if err := json.Unmarshal(raw, &stored); err != nil {
		l.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to parse stored session")
		return
	}
	if !stored.IsAuthenticated || stored.User == nil {
		// Not a valid logged-in record; stay logged out.
		return
	}

	s.mu.Lock()
	s.authenticated = true
	s.user = stored.User
	s.mu.Unlock()

	l.Debug().Str(log.FieldUserID, stored.User.ID).Msg("session restored")
}

// Login installs the user and persists the new state. User fields are the
// caller's responsibility to validate.
func (s *Store) Login(ctx context.Context, user domain.User) {
	s.mu.Lock()
	s.authenticated = true
	s.user = &user
	s.mu.Unlock()

	s.persist(ctx)
}

// Logout clears the session and purges the persisted record.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.authenticated = false
	s.user = nil
	s.mu.Unlock()

	if err := s.state.Delete(ctx, StorageKey); err != nil {
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to purge stored session")
	}
}

// IsAuthenticated reports whether a user is logged in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User returns a copy of the current user, or nil when logged out.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Session returns a snapshot of the session state.
func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.Session{IsAuthenticated: s.authenticated}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// persist writes the current state. Persistence failures are non-fatal; the
// in-memory state stays authoritative.
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	state := persistedState{IsAuthenticated: s.authenticated, User: s.user}
	s.mu.RUnlock()

	if err := s.state.Save(ctx, StorageKey, state); err != nil {
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Warn().Err(err).Str(log.FieldStorageKey, StorageKey).Msg("failed to persist session")
	}
}
