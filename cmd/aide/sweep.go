package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/admmpy/aide/internal/config"
	"github.com/admmpy/aide/pkg/cleanup"
	"github.com/admmpy/aide/pkg/database"
)

var (
	sweepMaxAge    time.Duration
	sweepHeuristic bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Drop practice schemas older than the age threshold",
	Long: `Sweep reclaims stale practice schemas out-of-band. The default strategy
reads the practice_schemas metadata table; --heuristic infers age from the
storage layer instead and only drops empty schemas when age is unknown.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", cleanup.DefaultMaxAge, "maximum schema age before reclamation")
	sweepCmd.Flags().BoolVar(&sweepHeuristic, "heuristic", false, "use the metadata-free heuristic strategy")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := cmd.Context()
	db, err := database.Open(ctx, database.Config{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sweeper := cleanup.NewSweeper(db, nil, logger)

	var dropped []string
	if sweepHeuristic {
		dropped, err = sweeper.SweepHeuristic(ctx, sweepMaxAge)
	} else {
		dropped, err = sweeper.SweepMetadata(ctx, sweepMaxAge)
	}
	if err != nil {
		return err
	}

	for _, schema := range dropped {
		fmt.Printf("dropped schema: %s\n", schema)
	}
	fmt.Printf("sweep complete, dropped %d schemas\n", len(dropped))
	return nil
}
