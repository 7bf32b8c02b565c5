package practice

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's caller-facing failure classes. Transports
// map these onto status codes; the engine never retries any of them.
var (
	// ErrSessionNotFound: the session token is unknown (or its schema was
	// already reclaimed).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSchemaMismatch: the request names a schema that is not the one
	// bound to the session.
	ErrSchemaMismatch = errors.New("schema does not match session")

	// ErrInvalidSchema: the schema name failed validation and was never
	// interpolated into SQL.
	ErrInvalidSchema = errors.New("invalid schema name format")

	// ErrStatementBlocked: a free query started with a denied statement
	// keyword.
	ErrStatementBlocked = errors.New("statement type not allowed in free query mode")
)

// SetupError reports a failure while materializing a question's dataset.
// The schema may be left partially populated; the sweep reclaims it.
type SetupError struct {
	Schema string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to set up practice schema %s: %v", e.Schema, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
