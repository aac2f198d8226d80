package distribution

import (
	"context"
	"fmt"
	"time"

	"yieldtree/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires the daily and monthly batch drivers on cron schedules.
type Scheduler struct {
	engine       Engine
	cron         *cron.Cron
	log          *zap.Logger
	runOnStartup bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewScheduler registers both jobs in the configured timezone. It does not
// start them.
func NewScheduler(engine Engine, cfg config.DistributionConfig, log *zap.Logger) (*Scheduler, error) {
	if engine == nil {
		panic("distribution engine is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid distribution timezone %q: %w", cfg.Timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:       engine,
		cron:         cron.New(cron.WithLocation(loc)),
		log:          log,
		runOnStartup: cfg.RunOnStartup,
		ctx:          ctx,
		cancel:       cancel,
	}

	if _, err := s.cron.AddFunc(cfg.DailySpec, func() { s.run(PeriodDaily) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid daily schedule %q: %w", cfg.DailySpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.MonthlySpec, func() { s.run(PeriodMonthly) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid monthly schedule %q: %w", cfg.MonthlySpec, err)
	}
	return s, nil
}

// Start starts the cron loop. With run-on-startup enabled the daily run also
// fires once immediately; it is a no-op for users already paid today.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("distribution scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	if s.runOnStartup {
		go s.run(PeriodDaily)
	}
}

// Stop cancels in-flight runs and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("distribution scheduler stopped")
}

func (s *Scheduler) run(period PeriodType) {
	if s.ctx.Err() != nil {
		return
	}
	result, err := s.engine.ProcessDistribution(s.ctx, period)
	if err != nil {
		s.log.Error("scheduled distribution failed", zap.String("period", string(period)), zap.Error(err))
		return
	}
	s.log.Info("scheduled distribution complete",
		zap.String("period", string(period)),
		zap.String("run_id", result.RunID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))
}
