// Package sandbox provisions isolated schemas for practice sessions.
// Every schema name that reaches interpolated SQL must pass ValidateSchemaName
// first; the provisioner enforces this itself as a second line of defense.
package sandbox

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SchemaPrefix is the reserved prefix for practice schemas. The garbage
// collector only ever considers schemas carrying this prefix.
const SchemaPrefix = "practice_"

// schemaNamePattern matches the prefix followed by exactly 8 lowercase hex
// characters. Nothing else is a valid practice schema name.
var schemaNamePattern = regexp.MustCompile(`^practice_[0-9a-f]{8}$`)

// ErrInvalidSchemaName is returned when a schema name fails validation.
var ErrInvalidSchemaName = fmt.Errorf("invalid practice schema name")

// ValidateSchemaName reports whether name is a well-formed practice schema
// name. Pure predicate, no side effects.
func ValidateSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// NewSchemaName generates a fresh practice schema name with 32 bits of
// randomness, enough to make collisions negligible across active sessions.
func NewSchemaName() string {
	u := uuid.New()
	return SchemaPrefix + hex.EncodeToString(u[:4])
}

// MetadataRecorder records schema creation times for the metadata-tracked
// garbage collection strategy. A nil recorder disables tracking.
type MetadataRecorder interface {
	Record(ctx context.Context, schema string) error
}

// Provisioner creates practice schemas and materializes question setup SQL
// inside them.
type Provisioner struct {
	db       *sql.DB
	recorder MetadataRecorder
	logger   *slog.Logger
}

// NewProvisioner creates a Provisioner. recorder may be nil.
func NewProvisioner(db *sql.DB, recorder MetadataRecorder, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{db: db, recorder: recorder, logger: logger}
}

// Provision creates schema idempotently and executes setupSQL inside it.
// The schema creation, search_path switch, and setup batch run pinned to a
// single pooled connection. setupSQL is not wrapped in a transaction; a
// failing batch may leave the schema partially populated.
//
// The metadata row is recorded before the schema exists, so a setup failure
// or a crash anywhere after this point leaves a row the sweep will find. A
// row without a schema is cleaned by the sweep's orphan purge.
func (p *Provisioner) Provision(ctx context.Context, schema, setupSQL string) error {
	if !ValidateSchemaName(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, schema); err != nil {
			// The schema is usable without its metadata row; the sweep's
			// heuristic fallback still covers it.
			p.logger.Warn("recording schema metadata failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
		}
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() {
		// The connection returns to the pool; restore its search_path so the
		// next borrower does not inherit this session's schema.
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SET search_path TO public")
		_ = conn.Close()
	}()

	quoted := pq.QuoteIdentifier(schema)

	if _, err := conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET search_path TO "+quoted); err != nil {
		return fmt.Errorf("setting search_path: %w", err)
	}
	if _, err := conn.ExecContext(ctx, setupSQL); err != nil {
		return fmt.Errorf("executing setup sql: %w", err)
	}

	p.logger.Info("provisioned practice schema", slog.String("schema", schema))
	return nil
}

// Drop removes a practice schema and everything in it. A schema that is
// already gone is success, not failure.
func (p *Provisioner) Drop(ctx context.Context, schema string) error {
	if !ValidateSchemaName(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}
	_, err := p.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(schema)+" CASCADE")
	if err != nil {
		return fmt.Errorf("dropping schema: %w", err)
	}
	return nil
}
