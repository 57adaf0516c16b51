package defense

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// reaperState tracks where the tier-2 loop is in its cycle. The reaper
// only scans the process table after a confirmed breach, keeping the
// idle path to a single memory snapshot.
type reaperState int

const (
	stateIdle reaperState = iota
	stateScanning
	stateKill
)

func (s reaperState) String() string {
	switch s {
	case stateScanning:
		return "scanning"
	case stateKill:
		return "kill"
	default:
		return "idle"
	}
}

// Reaper is tier 2: a fast polling loop that terminates the largest
// preferred victim when available memory and free swap are both
// exhausted past their thresholds.
type Reaper struct {
	mem     domain.MemoryReader
	procs   domain.ProcessManager
	policy  domain.ThresholdPolicy
	metrics *Metrics
	logger  *zap.Logger
}

// NewReaper creates the tier-2 reaper.
func NewReaper(
	mem domain.MemoryReader,
	procs domain.ProcessManager,
	policy domain.ThresholdPolicy,
	metrics *Metrics,
	logger *zap.Logger,
) *Reaper {
	return &Reaper{
		mem:     mem,
		procs:   procs,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}
}

// Run starts the reaper loop. Blocks until context is canceled.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("reaper started",
		zap.Duration("interval", r.policy.ReaperInterval),
		zap.Float64("mem_kill_percent", r.policy.MemKillPercent),
		zap.Float64("swap_kill_percent", r.policy.SwapKillPercent))

	ticker := time.NewTicker(r.policy.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopping")
			return ctx.Err()

		case <-ticker.C:
			r.cycle()
		}
	}
}

// cycle advances the state machine one full pass: Idle, then Scanning
// on breach, then Kill when a victim is found.
func (r *Reaper) cycle() {
	stats, err := r.mem.Snapshot()
	if err != nil {
		r.logger.Warn("memory snapshot failed", zap.Error(err))
		return
	}

	if !r.breached(stats) {
		return
	}
	r.logger.Debug("threshold breach",
		zap.Stringer("state", stateScanning),
		zap.Float64("available_percent", stats.AvailablePercent),
		zap.Float64("swap_free_percent", stats.SwapFreePercent))

	procs, err := r.procs.List()
	if err != nil {
		r.logger.Warn("process scan failed", zap.Error(err))
		return
	}

	victim := r.selectVictim(procs)
	if victim == nil {
		r.logger.Debug("no preferred victim found, standing down",
			zap.Stringer("state", stateIdle))
		return
	}

	r.logger.Debug("victim selected", zap.Stringer("state", stateKill))
	if err := r.procs.Kill(victim.PID); err != nil {
		r.logger.Error("victim kill failed",
			zap.Int("pid", victim.PID),
			zap.String("name", victim.Name),
			zap.Error(err))
		return
	}

	r.metrics.VictimKilled()
	r.logger.Info("reaper terminated process",
		zap.Int("pid", victim.PID),
		zap.String("name", victim.Name),
		zap.Float64("memory_percent", victim.MemoryPercent),
		zap.Float64("available_percent", stats.AvailablePercent),
		zap.Float64("swap_free_percent", stats.SwapFreePercent))
}

// breached reports whether BOTH exhaustion conditions hold. Either
// resource alone recovering is enough to stand the reaper down.
func (r *Reaper) breached(stats domain.MemoryStats) bool {
	return stats.AvailablePercent < r.policy.MemKillPercent &&
		stats.SwapFreePercent < r.policy.SwapKillPercent
}

// selectVictim picks the largest process whose name matches a preferred
// victim pattern. Protected processes are never selected, even when
// they match a pattern or dominate memory.
func (r *Reaper) selectVictim(procs []domain.ProcessInfo) *domain.ProcessInfo {
	var victim *domain.ProcessInfo

	for i := range procs {
		p := &procs[i]
		if r.isProtected(p.Name) {
			continue
		}
		if !matchesAny(p.Name, r.policy.PreferredVictims) {
			continue
		}
		if victim == nil || p.MemoryPercent > victim.MemoryPercent {
			victim = p
		}
	}

	return victim
}

func (r *Reaper) isProtected(name string) bool {
	return matchesAny(name, r.policy.ProtectedProcesses)
}

// matchesAny does case-insensitive substring matching, the same loose
// match users get from pkill -f.
func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pat := range patterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
