package hub

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often idle connections are collected.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically evicts idle connections from a registry.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewSweeper schedules reg.Sweep every interval. Nothing runs until Start.
func NewSweeper(reg *Registry, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{reg: reg, interval: interval, logger: logger}

	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// RunOnce sweeps the registry immediately.
func (s *Sweeper) RunOnce() {
	evicted := s.reg.Sweep(s.reg.clock.Now())
	if len(evicted) > 0 {
		s.logger.Info("idle sweep finished", zap.Int("evicted", len(evicted)), zap.Int("remaining", s.reg.Len()))
	}
}

// Start begins the periodic sweep.
func (s *Sweeper) Start() {
	s.logger.Info("idle sweeper started", zap.Duration("interval", s.interval), zap.Duration("idle_timeout", s.reg.idleTimeout))
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
