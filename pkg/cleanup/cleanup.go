// Package cleanup reclaims practice schemas whose age exceeds a threshold.
//
// Two interchangeable strategies are provided: a metadata-tracked sweep over
// the practice_schemas table, and a heuristic sweep that infers age from the
// storage layer when no metadata exists. Both treat an already-absent schema
// as success.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/admmpy/aide/pkg/sandbox"
)

// DefaultMaxAge is how old a schema must be before a sweep reclaims it.
const DefaultMaxAge = 2 * time.Hour

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SessionPurger removes session entries bound to a dropped schema. Typically
// satisfied by session.Store; nil disables purging.
type SessionPurger interface {
	DeleteBySchema(ctx context.Context, schema string) error
}

// Recorder tracks schema creation times in the practice_schemas table. It
// satisfies sandbox.MetadataRecorder.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a Recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts a metadata row for schema. Re-recording an existing schema
// is a no-op.
func (r *Recorder) Record(ctx context.Context, schema string) error {
	query, args, err := psq.
		Insert("practice_schemas").
		Columns("schema_name", "created_at").
		Values(schema, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (schema_name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording schema: %w", err)
	}
	return nil
}

// Sweeper drops stale practice schemas.
type Sweeper struct {
	db       *sql.DB
	sessions SessionPurger
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. sessions may be nil.
func NewSweeper(db *sql.DB, sessions SessionPurger, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{db: db, sessions: sessions, logger: logger}
}

// SweepMetadata drops every schema whose practice_schemas row is older than
// maxAge, removes the metadata rows, then deletes rows whose schema no
// longer exists (self-healing after a partial earlier failure). It returns
// the names of dropped schemas.
func (s *Sweeper) SweepMetadata(ctx context.Context, maxAge time.Duration) ([]string, error) {
	query, args, err := psq.
		Select("schema_name").
		From("practice_schemas").
		Where(sq.Lt{"created_at": time.Now().Add(-maxAge)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting stale schemas: %w", err)
	}
	stale, err := collectNames(rows)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, schema := range stale {
		if err := s.dropSchema(ctx, schema); err != nil {
			s.logger.Error("dropping stale schema failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.deleteMetadata(ctx, schema); err != nil {
			s.logger.Error("deleting schema metadata failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
		}
		dropped = append(dropped, schema)
	}

	// Orphaned metadata: rows whose schema is already gone.
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM practice_schemas m
		WHERE NOT EXISTS (
			SELECT 1 FROM information_schema.schemata s
			WHERE s.schema_name = m.schema_name
		)
	`); err != nil {
		s.logger.Error("purging orphaned metadata failed", slog.String("error", err.Error()))
	}

	return dropped, nil
}

// SweepHeuristic drops stale schemas without metadata, inferring age from
// the storage file behind each schema's oldest table. A schema whose age
// cannot be determined is dropped only if it contains zero tables — never
// destructively guess on a populated schema of unknown age.
func (s *Sweeper) SweepHeuristic(ctx context.Context, maxAge time.Duration) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name LIKE 'practice\_%'
	`)
	if err != nil {
		return nil, fmt.Errorf("listing practice schemas: %w", err)
	}
	schemas, err := collectNames(rows)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, schema := range schemas {
		if !sandbox.ValidateSchemaName(schema) {
			// Prefix match but invalid shape: never interpolate it.
			s.logger.Warn("skipping schema with unexpected name", slog.String("schema", schema))
			continue
		}

		stale, err := s.isStale(ctx, schema, maxAge)
		if err != nil {
			s.logger.Error("determining schema age failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !stale {
			continue
		}
		if err := s.dropSchema(ctx, schema); err != nil {
			s.logger.Error("dropping stale schema failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
			continue
		}
		dropped = append(dropped, schema)
	}
	return dropped, nil
}

// isStale infers a schema's age from the storage file creation time of its
// oldest table. PostgreSQL does not track schema creation time directly, so
// this is approximate; undeterminable age means stale only when the schema
// is empty.
func (s *Sweeper) isStale(ctx context.Context, schema string, maxAge time.Duration) (bool, error) {
	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(
			(SELECT creation FROM pg_stat_file(pg_relation_filepath(c.oid)))
		)
		FROM pg_class c
		JOIN pg_namespace n ON c.relnamespace = n.oid
		WHERE n.nspname = $1 AND c.relkind = 'r'
	`, schema).Scan(&oldest)
	if err != nil {
		return false, fmt.Errorf("querying table age: %w", err)
	}

	if oldest.Valid {
		return time.Since(oldest.Time) > maxAge, nil
	}

	var tableCount int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = $1
	`, schema).Scan(&tableCount)
	if err != nil {
		return false, fmt.Errorf("counting tables: %w", err)
	}
	return tableCount == 0, nil
}

// dropSchema removes the schema and any session bound to it. Already-gone
// schemas are success.
func (s *Sweeper) dropSchema(ctx context.Context, schema string) error {
	if !sandbox.ValidateSchemaName(schema) {
		return fmt.Errorf("%w: %q", sandbox.ErrInvalidSchemaName, schema)
	}
	if _, err := s.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(schema)+" CASCADE"); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteBySchema(ctx, schema); err != nil {
			s.logger.Warn("purging session for dropped schema failed",
				slog.String("schema", schema),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("dropped practice schema", slog.String("schema", schema))
	return nil
}

func (s *Sweeper) deleteMetadata(ctx context.Context, schema string) error {
	query, args, err := psq.
		Delete("practice_schemas").
		Where(sq.Eq{"schema_name": schema}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func collectNames(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning schema name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema names: %w", err)
	}
	return names, nil
}

// Verify the recorder satisfies the provisioner's interface.
var _ sandbox.MetadataRecorder = (*Recorder)(nil)
