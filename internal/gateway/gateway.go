// Package gateway implements the HTTP API in front of the practice engine.
//
// Rate limiting is keyed on the client-supplied X-Client-ID header. A key
// minted inside the request being limited cannot limit anyone, so callers
// without a stable identity share the anonymous bucket.
package gateway

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/admmpy/aide/pkg/practice"
)

// anonymousClientKey is the shared rate-limit bucket for callers that do not
// send X-Client-ID.
const anonymousClientKey = "anonymous"

// ErrorBody is the standard error response shape.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr string

	// MetricsRegistry, when set, mounts promhttp on /metrics.
	MetricsRegistry *prometheus.Registry
}

// Gateway is the HTTP API server.
type Gateway struct {
	config Config
	engine *practice.Engine
	db     *sql.DB
	logger *slog.Logger
	server *http.Server
	okapi  *okapi.Okapi
}

// New creates a Gateway around the practice engine. db is used only for the
// readiness probe.
func New(cfg Config, engine *practice.Engine, db *sql.DB, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config: cfg,
		engine: engine,
		db:     db,
		logger: logger,
		okapi:  okapi.New(),
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is
// canceled.
func (g *Gateway) Start(ctx context.Context) error {
	v1 := g.okapi.Group("/v1")

	v1.Post("/practice/generate", g.handleGenerate,
		okapi.DocSummary("Generate a practice question with an isolated dataset"),
		okapi.DocTags("Practice"),
		okapi.DocRequestBody(GenerateRequest{}),
		okapi.DocResponse(GenerateResponse{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)
	v1.Post("/practice/generate-custom", g.handleGenerateCustom,
		okapi.DocSummary("Generate a practice question from a free-form prompt"),
		okapi.DocTags("Practice"),
		okapi.DocRequestBody(GenerateCustomRequest{}),
		okapi.DocResponse(GenerateResponse{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)
	v1.Post("/practice/check", g.handleCheck,
		okapi.DocSummary("Check a candidate answer against the reference query"),
		okapi.DocTags("Practice"),
		okapi.DocRequestBody(CheckRequest{}),
		okapi.DocResponse(CheckResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	v1.Get("/practice/hint/{session_id}", g.handleHint,
		okapi.DocSummary("Reveal one more hint for a session"),
		okapi.DocTags("Practice"),
		okapi.DocPathParam("session_id", "string", "Session token"),
		okapi.DocResponse(HintResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	v1.Delete("/practice/session/{session_id}", g.handleEndSession,
		okapi.DocSummary("End a session and drop its schema"),
		okapi.DocTags("Practice"),
		okapi.DocPathParam("session_id", "string", "Session token"),
		okapi.DocResponse(EndSessionResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	v1.Post("/sql/execute", g.handleSQLExecute,
		okapi.DocSummary("Execute an ad-hoc SQL query"),
		okapi.DocTags("SQL"),
		okapi.DocRequestBody(SQLExecuteRequest{}),
		okapi.DocResponse(SQLExecuteResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)

	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		g.okapi.HandleStd("GET", "/metrics",
			promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting", slog.String("addr", g.config.ListenAddr))
	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(okapi.M{"status": "ok"})
}

func (g *Gateway) handleReadiness(c *okapi.Context) error {
	pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := g.db.PingContext(pingCtx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, okapi.M{"status": "database unreachable"})
	}
	return c.OK(okapi.M{"status": "ready"})
}

// clientKey resolves the rate-limit identity for a request.
func clientKey(c *okapi.Context) string {
	if id := c.Header("X-Client-ID"); id != "" {
		return id
	}
	return anonymousClientKey
}
