package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/admmpy/aide/internal/config"
	"github.com/admmpy/aide/internal/gateway"
	"github.com/admmpy/aide/internal/observability"
	"github.com/admmpy/aide/pkg/cleanup"
	"github.com/admmpy/aide/pkg/database"
	"github.com/admmpy/aide/pkg/database/migrate"
	"github.com/admmpy/aide/pkg/practice"
	"github.com/admmpy/aide/pkg/question/ollama"
	"github.com/admmpy/aide/pkg/ratelimit"
	"github.com/admmpy/aide/pkg/sandbox"
	"github.com/admmpy/aide/pkg/session"
	"github.com/admmpy/aide/pkg/sqlexec"
	"github.com/admmpy/aide/pkg/verify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the practice API server",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := signalContext()
	defer cancel()

	db, err := database.Open(ctx, database.Config{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrate.Run(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	metrics := observability.NewMetrics()
	sessions := session.NewMemoryStore()
	recorder := cleanup.NewRecorder(db)

	generator := ollama.New(ollama.Config{
		BaseURL:   cfg.Ollama.BaseURL,
		Model:     cfg.Ollama.Model,
		MaxTables: cfg.Practice.MaxTables,
		MaxRows:   cfg.Practice.MaxRows,
	}, logger)

	executor := sqlexec.New(db, cfg.Query.MaxRows, cfg.QueryTimeout(), logger)
	provisioner := sandbox.NewProvisioner(db, recorder, logger)
	verifier := verify.New(executor)
	limiter := ratelimit.NewLimiter(ratelimit.Config{PerMinute: cfg.Practice.RateLimitPerMinute})

	engine := practice.New(generator, sessions, limiter, executor, provisioner, verifier, metrics, logger)

	// Out-of-band schema reclamation.
	if cfg.Practice.SweepSchedule != "" {
		sweeper := cleanup.NewSweeper(db, sessions, logger)
		scheduler, err := cleanup.NewScheduler(
			sweeper,
			cfg.Practice.SweepSchedule,
			cfg.SweepMaxAge(),
			cleanup.Strategy(cfg.Practice.SweepStrategy),
			logger,
		)
		if err != nil {
			return err
		}
		go scheduler.Run(ctx)
	}

	gw := gateway.New(gateway.Config{
		ListenAddr:      cfg.Server.ListenAddr,
		MetricsRegistry: metrics.Registry,
	}, engine, db, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- gw.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return gw.Stop(context.Background())
	case err := <-errCh:
		return err
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
