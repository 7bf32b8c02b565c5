package session

import (
	"context"
	"sync"
)

// MemoryStore implements Store using an in-memory map. Suitable for the
// single-process deployment this engine targets; swap for a shared store if
// sessions must survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Create persists a new session.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	return nil
}

// Get retrieves a session by ID. Returns nil, nil if not found.
// The returned session is a snapshot; mutate only through store methods.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	snapshot := *sess
	return &snapshot, nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteBySchema removes any session bound to schema.
func (s *MemoryStore) DeleteBySchema(_ context.Context, schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.Schema == schema {
			delete(s.sessions, id)
		}
	}
	return nil
}

// List returns all sessions.
func (s *MemoryStore) List(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		snapshot := *sess
		result = append(result, &snapshot)
	}
	return result, nil
}

// RevealHint increments the revealed-hint counter under the store lock,
// capped at the question's hint count, and returns the revealed prefix.
func (s *MemoryStore) RevealHint(_ context.Context, id string) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, 0, ErrNotFound
	}

	all := sess.Question.Hints
	if sess.HintsRevealed < len(all) {
		sess.HintsRevealed++
	}
	return all[:sess.HintsRevealed], sess.HintsRevealed, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
