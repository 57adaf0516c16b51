package defense

import (
	"context"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// EmergencyCleaner runs the synchronous on-demand cleanup: reclaim
// everything reclaimable first, and only reach for the kill list when
// usage stays above the emergency watermark after reclamation.
type EmergencyCleaner struct {
	mem      domain.MemoryReader
	files    domain.PrivilegedFileStore
	services domain.ServiceController
	procs    domain.ProcessManager
	policy   domain.ThresholdPolicy
	metrics  *Metrics
	logger   *zap.Logger
}

// NewEmergencyCleaner wires the cleanup with its collaborators.
func NewEmergencyCleaner(
	mem domain.MemoryReader,
	files domain.PrivilegedFileStore,
	services domain.ServiceController,
	procs domain.ProcessManager,
	policy domain.ThresholdPolicy,
	metrics *Metrics,
	logger *zap.Logger,
) *EmergencyCleaner {
	return &EmergencyCleaner{
		mem:      mem,
		files:    files,
		services: services,
		procs:    procs,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes the full cleanup sequence and reports the before, mid,
// and final measurements. Reclamation failures are logged and skipped;
// only a failed initial measurement aborts the run.
func (e *EmergencyCleaner) Run(ctx context.Context) (domain.EmergencyReport, error) {
	var report domain.EmergencyReport

	before, err := e.mem.Snapshot()
	if err != nil {
		return report, &domain.DetectionError{Source: "memory", Err: err}
	}
	report.Before = before
	e.metrics.EmergencyRun()

	e.logger.Info("emergency cleanup started",
		zap.Float64("used_percent", before.UsedPercent))

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Phase 1: reclaim without touching any process.
	if err := e.files.WriteFile(dropCachesPath, []byte("3\n"), 0644); err != nil {
		e.logger.Warn("cache drop failed", zap.Error(err))
	}
	if err := e.files.WriteFile(compactMemoryPath, []byte("1\n"), 0644); err != nil {
		e.logger.Warn("memory compaction failed", zap.Error(err))
	}
	report.SwapToggled = e.toggleSwap(before)

	mid, err := e.mem.Snapshot()
	if err != nil {
		e.logger.Warn("mid-cleanup snapshot failed", zap.Error(err))
		mid = before
	}
	report.AfterReclaim = mid

	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Phase 2: terminate applications, least essential first, but only
	// when reclamation alone was not enough.
	if mid.UsedPercent > e.policy.EmergencyWatermark {
		report.Killed = e.killVictims(ctx, mid.UsedPercent)
	} else {
		e.logger.Info("reclamation sufficient, no processes terminated",
			zap.Float64("used_percent", mid.UsedPercent))
	}

	final, err := e.mem.Snapshot()
	if err != nil {
		e.logger.Warn("final snapshot failed", zap.Error(err))
		final = mid
	}
	report.Final = final

	e.logger.Info("emergency cleanup finished",
		zap.Float64("before_percent", before.UsedPercent),
		zap.Float64("final_percent", final.UsedPercent),
		zap.Int("killed", len(report.Killed)),
		zap.Bool("swap_toggled", report.SwapToggled))

	return report, nil
}

// toggleSwap cycles swap off and on to force swapped pages back through
// the allocator. Skipped when no swap is configured; an off/on pair
// that fails midway is reported as not toggled.
func (e *EmergencyCleaner) toggleSwap(stats domain.MemoryStats) bool {
	if stats.SwapTotalMB == 0 {
		return false
	}
	// Refusing the toggle is safer than swapping off pages that cannot
	// fit back into RAM.
	if stats.AvailableMB < stats.SwapTotalMB-stats.SwapFreeMB {
		e.logger.Warn("swap in use exceeds available memory, skipping toggle")
		return false
	}

	if err := e.services.SwapOffAll(); err != nil {
		e.logger.Warn("swapoff failed", zap.Error(err))
		return false
	}
	if err := e.services.SwapOnAll(); err != nil {
		e.logger.Error("swapon after toggle failed, swap is now offline", zap.Error(err))
		return false
	}
	return true
}

// killVictims walks the fixed emergency kill list in order and stops as
// soon as usage falls back under the watermark.
func (e *EmergencyCleaner) killVictims(ctx context.Context, usedPercent float64) []string {
	var killed []string

	for _, pattern := range e.policy.EmergencyVictims {
		if err := ctx.Err(); err != nil {
			return killed
		}
		if usedPercent <= e.policy.EmergencyWatermark {
			break
		}

		procs, err := e.procs.List()
		if err != nil {
			e.logger.Warn("process scan failed", zap.Error(err))
			return killed
		}

		matched := false
		for _, p := range procs {
			if !matchesAny(p.Name, []string{pattern}) {
				continue
			}
			if err := e.procs.Kill(p.PID); err != nil {
				e.logger.Warn("emergency kill failed",
					zap.Int("pid", p.PID),
					zap.String("name", p.Name),
					zap.Error(err))
				continue
			}
			matched = true
			killed = append(killed, p.Name)
			e.logger.Info("emergency kill",
				zap.Int("pid", p.PID),
				zap.String("name", p.Name))
		}

		if matched {
			if stats, err := e.mem.Snapshot(); err == nil {
				usedPercent = stats.UsedPercent
			}
		}
	}

	return killed
}
