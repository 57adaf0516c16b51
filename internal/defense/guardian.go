package defense

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Guardian is tier 3: a coarse periodic check that reclaims page cache
// before pressure reaches the point where the reaper has to kill.
type Guardian struct {
	mem     domain.MemoryReader
	files   domain.PrivilegedFileStore
	policy  domain.ThresholdPolicy
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	// onEvent, when set, receives every cycle's pressure event.
	onEvent func(domain.MemoryPressureEvent)
}

// NewGuardian creates the tier-3 guardian.
func NewGuardian(
	mem domain.MemoryReader,
	files domain.PrivilegedFileStore,
	policy domain.ThresholdPolicy,
	metrics *Metrics,
	logger *zap.Logger,
) *Guardian {
	return &Guardian{
		mem:     mem,
		files:   files,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// OnEvent registers a sink for pressure events. Call before Run.
func (g *Guardian) OnEvent(fn func(domain.MemoryPressureEvent)) {
	g.onEvent = fn
}

// Run starts the guardian loop. Blocks until context is canceled.
func (g *Guardian) Run(ctx context.Context) error {
	g.logger.Info("guardian started",
		zap.Duration("interval", g.policy.GuardianInterval),
		zap.Float64("high_watermark", g.policy.HighWatermark),
		zap.Float64("critical_watermark", g.policy.CriticalWatermark))

	ticker := time.NewTicker(g.policy.GuardianInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("guardian stopping")
			return ctx.Err()

		case <-ticker.C:
			g.cycle()
		}
	}
}

// TierFor classifies a usage reading against the policy watermarks.
// Watermarks are checked highest first so a reading past both lands on
// CRITICAL directly, never stepping through HIGH.
func TierFor(usedPercent float64, policy domain.ThresholdPolicy) domain.PressureTier {
	switch {
	case usedPercent > policy.CriticalWatermark:
		return domain.TierCritical
	case usedPercent > policy.HighWatermark:
		return domain.TierHigh
	default:
		return domain.TierNormal
	}
}

// cycle takes one reading, classifies it, and reclaims accordingly.
// Each cycle is classified independently; a recovered reading drops the
// tier back to NORMAL with no hysteresis.
func (g *Guardian) cycle() {
	stats, err := g.mem.Snapshot()
	if err != nil {
		g.logger.Warn("memory snapshot failed", zap.Error(err))
		return
	}

	tier := TierFor(stats.UsedPercent, g.policy)
	action := "none"

	switch tier {
	case domain.TierHigh:
		// Reclaim the page cache only; dentries and inodes stay warm.
		if err := g.writeControl(dropCachesPath, "1"); err != nil {
			g.logger.Warn("page cache drop failed", zap.Error(err))
		} else {
			action = "dropped page cache"
			g.metrics.CacheDropped()
		}

	case domain.TierCritical:
		if err := g.writeControl(dropCachesPath, "3"); err != nil {
			g.logger.Warn("full cache drop failed", zap.Error(err))
		} else {
			action = "dropped all caches"
			g.metrics.CacheDropped()
		}
		if err := g.writeControl(compactMemoryPath, "1"); err != nil {
			g.logger.Warn("memory compaction failed", zap.Error(err))
		} else {
			action += ", compacted memory"
		}
	}

	g.metrics.ObservePressure(stats.UsedPercent, tier)

	if tier != domain.TierNormal {
		g.logger.Info("memory pressure",
			zap.String("tier", string(tier)),
			zap.Float64("used_percent", stats.UsedPercent),
			zap.String("action", action))
	}

	if g.onEvent != nil {
		g.onEvent(domain.MemoryPressureEvent{
			UsedPercent: stats.UsedPercent,
			Tier:        tier,
			ActionTaken: action,
			ObservedAt:  g.now(),
		})
	}
}

func (g *Guardian) writeControl(path, value string) error {
	return g.files.WriteFile(path, []byte(value+"\n"), 0644)
}
