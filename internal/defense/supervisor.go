package defense

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Supervisor runs the defense tiers together. Each tier is independent:
// one failing to start degrades coverage but never stops the others.
type Supervisor struct {
	tuner    *OOMTuner
	reaper   *Reaper
	guardian *Guardian
	metrics  *Metrics
	logger   *zap.Logger

	metricsAddr string
}

// NewSupervisor wires the three tiers. metricsAddr empty disables the
// Prometheus listener.
func NewSupervisor(
	tuner *OOMTuner,
	reaper *Reaper,
	guardian *Guardian,
	metrics *Metrics,
	metricsAddr string,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		tuner:       tuner,
		reaper:      reaper,
		guardian:    guardian,
		metrics:     metrics,
		metricsAddr: metricsAddr,
		logger:      logger,
	}
}

// Run tunes tier 1 once, then runs the reaper and guardian loops until
// the context is canceled. Always returns the context's error; tier
// failures degrade, they do not abort.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.tuner.Tune(); err != nil {
		degraded := &domain.SupervisorDegraded{Tier: "oom-tuner", Err: err}
		s.logger.Warn("tier degraded", zap.Error(degraded))
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.reaper.Run(ctx); err != nil && ctx.Err() == nil {
			degraded := &domain.SupervisorDegraded{Tier: "reaper", Err: err}
			s.logger.Warn("tier degraded", zap.Error(degraded))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.guardian.Run(ctx); err != nil && ctx.Err() == nil {
			degraded := &domain.SupervisorDegraded{Tier: "guardian", Err: err}
			s.logger.Warn("tier degraded", zap.Error(degraded))
		}
	}()

	if s.metricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.metrics.Serve(ctx, s.metricsAddr, s.logger); err != nil {
				degraded := &domain.SupervisorDegraded{Tier: "metrics", Err: err}
				s.logger.Warn("tier degraded", zap.Error(degraded))
			}
		}()
	}

	s.logger.Info("defense supervisor running")
	wg.Wait()
	return ctx.Err()
}
