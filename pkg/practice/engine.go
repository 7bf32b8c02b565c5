// Package practice is the practice-session engine: it admits requests,
// provisions isolated schemas, verifies answers, reveals hints, and tears
// sessions down.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/admmpy/aide/internal/observability"
	"github.com/admmpy/aide/pkg/question"
	"github.com/admmpy/aide/pkg/ratelimit"
	"github.com/admmpy/aide/pkg/sandbox"
	"github.com/admmpy/aide/pkg/session"
	"github.com/admmpy/aide/pkg/sqlexec"
	"github.com/admmpy/aide/pkg/verify"
)

// blockedKeywords are statement types a free query may not start with when
// no practice schema scopes it. Checked against the leading keyword only.
var blockedKeywords = []string{
	"DROP", "TRUNCATE", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "GRANT", "REVOKE",
}

// Engine coordinates the sandbox components behind the exposed operations.
// All state it owns is injected; there are no package-level registries.
type Engine struct {
	generator   question.Generator
	sessions    session.Store
	limiter     *ratelimit.Limiter
	executor    *sqlexec.Executor
	provisioner *sandbox.Provisioner
	verifier    *verify.Verifier
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// New creates an Engine. metrics may be nil to disable instrumentation.
func New(
	generator question.Generator,
	sessions session.Store,
	limiter *ratelimit.Limiter,
	executor *sqlexec.Executor,
	provisioner *sandbox.Provisioner,
	verifier *verify.Verifier,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		generator:   generator,
		sessions:    sessions,
		limiter:     limiter,
		executor:    executor,
		provisioner: provisioner,
		verifier:    verifier,
		metrics:     metrics,
		logger:      logger,
	}
}

// StartResult is returned when a session starts.
type StartResult struct {
	Question  *question.Question `json:"question"`
	Schema    string             `json:"schema_name"`
	SessionID string             `json:"session_id"`
}

// StartSession generates a question, provisions an isolated schema for it,
// and registers the session. clientKey must be a stable caller identity —
// rate limiting keyed on anything minted inside this call cannot limit
// anyone.
func (e *Engine) StartSession(ctx context.Context, clientKey string, difficulty question.Difficulty, domain string) (*StartResult, error) {
	return e.start(ctx, clientKey, "generate", func(ctx context.Context) (*question.Question, error) {
		return e.generator.Generate(ctx, difficulty, domain)
	})
}

// StartCustomSession is StartSession for a free-form prompt.
func (e *Engine) StartCustomSession(ctx context.Context, clientKey, prompt string) (*StartResult, error) {
	return e.start(ctx, clientKey, "custom", func(ctx context.Context) (*question.Question, error) {
		return e.generator.GenerateCustom(ctx, prompt)
	})
}

func (e *Engine) start(ctx context.Context, clientKey, mode string, generate func(context.Context) (*question.Question, error)) (*StartResult, error) {
	if err := e.limiter.Allow(clientKey); err != nil {
		return nil, err
	}

	// Generation failures pass through untouched: the generator already
	// classified them, and this layer never retries.
	q, err := generate(ctx)
	if err != nil {
		return nil, err
	}

	schema := sandbox.NewSchemaName()
	setupStart := time.Now()
	if err := e.provisioner.Provision(ctx, schema, q.SetupSQL); err != nil {
		return nil, &SetupError{Schema: schema, Err: err}
	}
	e.observeQuery("setup", time.Since(setupStart))

	sess := &session.Session{
		ID:        uuid.New().String(),
		Schema:    schema,
		Question:  q,
		CreatedAt: time.Now(),
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("registering session: %w", err)
	}

	if e.metrics != nil {
		e.metrics.SessionsStarted.WithLabelValues(mode).Inc()
	}
	e.logger.Info("practice session started",
		slog.String("session_id", sess.ID),
		slog.String("schema", schema),
		slog.String("title", q.Title),
	)

	return &StartResult{Question: q, Schema: schema, SessionID: sess.ID}, nil
}

// CheckResult is returned by CheckAnswer.
type CheckResult struct {
	Correct  bool
	User     sqlexec.Result
	Expected sqlexec.Result
	RowDiff  int
}

// CheckAnswer verifies query against the session's reference query inside
// the session's own schema. The schema in the request must be exactly the
// one bound to the session; no foreign schema may be attached.
func (e *Engine) CheckAnswer(ctx context.Context, sessionID, schema, query string) (*CheckResult, error) {
	if !sandbox.ValidateSchemaName(schema) {
		return nil, ErrInvalidSchema
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Schema != schema {
		return nil, ErrSchemaMismatch
	}

	verdict, err := e.verifier.Check(ctx, schema, query, sess.Question.ExpectedQuery)
	if err != nil {
		// Reference query failed: a defect in generated content, not in the
		// user's input. Logged loudly and surfaced as its own case.
		e.logger.Error("reference query inconsistency",
			slog.String("session_id", sessionID),
			slog.String("schema", schema),
			slog.String("error", err.Error()),
		)
		e.observeCheck("error")
		return nil, err
	}

	e.observeQuery("user", time.Duration(verdict.User.TimeMS()*float64(time.Millisecond)))
	if verdict.Expected.OK() {
		e.observeQuery("expected", time.Duration(verdict.Expected.TimeMS()*float64(time.Millisecond)))
	}
	switch {
	case !verdict.User.OK():
		e.observeCheck("error")
	case verdict.Correct:
		e.observeCheck("correct")
	default:
		e.observeCheck("incorrect")
	}

	return &CheckResult{
		Correct:  verdict.Correct,
		User:     verdict.User,
		Expected: verdict.Expected,
		RowDiff:  verdict.RowDiff,
	}, nil
}

// HintResult is returned by GetHint.
type HintResult struct {
	Hints    []string `json:"hints"`
	Revealed int      `json:"revealed_count"`
}

// GetHint reveals one more of the session's hints, capped at the total. At
// the cap it returns the full list unchanged.
func (e *Engine) GetHint(ctx context.Context, sessionID string) (*HintResult, error) {
	hints, revealed, err := e.sessions.RevealHint(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("revealing hint: %w", err)
	}
	if e.metrics != nil {
		e.metrics.HintsServed.Inc()
	}
	return &HintResult{Hints: hints, Revealed: revealed}, nil
}

// EndSession tears down a session: best-effort schema drop, then removal
// from the registry. A schema that is already gone still counts as success;
// teardown never blocks session removal.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (droppedSchema string, err error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return "", ErrSessionNotFound
	}
	if !sandbox.ValidateSchemaName(sess.Schema) {
		return "", ErrInvalidSchema
	}

	if err := e.provisioner.Drop(ctx, sess.Schema); err != nil {
		// Best effort: the sweep will reclaim whatever this left behind.
		e.logger.Warn("dropping session schema failed",
			slog.String("session_id", sessionID),
			slog.String("schema", sess.Schema),
			slog.String("error", err.Error()),
		)
	} else if e.metrics != nil {
		e.metrics.SchemasDropped.WithLabelValues("session_end").Inc()
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return "", fmt.Errorf("removing session: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SessionsEnded.Inc()
	}
	e.logger.Info("practice session ended",
		slog.String("session_id", sessionID),
		slog.String("schema", sess.Schema),
	)
	return sess.Schema, nil
}

// RunFreeQuery executes an ad-hoc query. Without a schema the query runs
// against the default search path, so mutating statement types are rejected
// before execution; inside a practice schema they are allowed.
func (e *Engine) RunFreeQuery(ctx context.Context, query, schema string) (sqlexec.Result, error) {
	trimmed := strings.TrimSpace(query)

	if schema == "" {
		upper := strings.ToUpper(trimmed)
		for _, kw := range blockedKeywords {
			if strings.HasPrefix(upper, kw) {
				return sqlexec.Result{}, fmt.Errorf("%w: %s", ErrStatementBlocked, kw)
			}
		}
	} else if !sandbox.ValidateSchemaName(schema) {
		return sqlexec.Result{}, ErrInvalidSchema
	}

	res := e.executor.Execute(ctx, trimmed, sqlexec.Options{Schema: schema})
	e.observeQuery("free", time.Duration(res.TimeMS()*float64(time.Millisecond)))
	return res, nil
}

func (e *Engine) observeCheck(outcome string) {
	if e.metrics != nil {
		e.metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) observeQuery(kind string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}
