// Package session provides the registry of active practice sessions.
// It defines the Store interface and the Session type that binds an isolated
// schema, a question, and hint-reveal progress to an opaque token.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/admmpy/aide/pkg/question"
)

// ErrNotFound is returned by mutating store operations that require the
// session to exist. Plain reads report absence as nil, nil instead.
var ErrNotFound = errors.New("session not found")

// Session represents one active practice session.
type Session struct {
	// ID is the opaque unique session token.
	ID string

	// Schema is the isolated practice schema bound 1:1 to this session.
	// Immutable after creation.
	Schema string

	// Question is the question this session is testing against.
	Question *question.Question

	// HintsRevealed counts hints disclosed so far. Monotonically
	// non-decreasing, mutated only through Store.RevealHint.
	HintsRevealed int

	// CreatedAt is when the session's schema was provisioned.
	CreatedAt time.Time
}

// Store defines the interface for session registries.
//
// Sessions only exist in a Store after their schema was provisioned
// successfully, so a session found here is always ready for checks and
// hints.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID. Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteBySchema removes any session bound to schema. Used by the
	// garbage collector so dropped schemas do not leave orphaned entries.
	DeleteBySchema(ctx context.Context, schema string) error

	// List returns all sessions.
	List(ctx context.Context) ([]*Session, error)

	// RevealHint increments the session's revealed-hint counter, capped at
	// the question's hint count, and returns the revealed prefix. The
	// increment is serialized per store; two concurrent calls cannot
	// double-increment past the cap. Returns ErrNotFound if the session
	// does not exist, so a hintless question stays distinguishable from a
	// missing session.
	RevealHint(ctx context.Context, id string) (hints []string, revealed int, err error)
}
