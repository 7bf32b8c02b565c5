package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Strategy selects which sweep a scheduled run uses.
type Strategy string

// Sweep strategies.
const (
	StrategyMetadata  Strategy = "metadata"
	StrategyHeuristic Strategy = "heuristic"
)

// Scheduler runs sweeps on a cron schedule, out-of-band from request
// handling.
type Scheduler struct {
	sweeper  *Sweeper
	schedule cron.Schedule
	maxAge   time.Duration
	strategy Strategy
	logger   *slog.Logger
}

// NewScheduler parses spec as a standard 5-field cron expression and builds
// a scheduler around sweeper.
func NewScheduler(sweeper *Sweeper, spec string, maxAge time.Duration, strategy Strategy, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", spec, err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if strategy == "" {
		strategy = StrategyMetadata
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		maxAge:   maxAge,
		strategy: strategy,
		logger:   logger,
	}, nil
}

// Run blocks, sweeping at each scheduled activation until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("schema sweep scheduler started",
		slog.String("strategy", string(s.strategy)),
		slog.Duration("max_age", s.maxAge),
	)
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("schema sweep scheduler stopped")
			return
		case <-timer.C:
		}

		dropped, err := s.sweep(ctx)
		if err != nil {
			s.logger.Error("scheduled sweep failed", slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("scheduled sweep complete", slog.Int("dropped", len(dropped)))
	}
}

func (s *Scheduler) sweep(ctx context.Context) ([]string, error) {
	if s.strategy == StrategyHeuristic {
		return s.sweeper.SweepHeuristic(ctx, s.maxAge)
	}
	return s.sweeper.SweepMetadata(ctx, s.maxAge)
}
