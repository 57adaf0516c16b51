// Package defense implements the tiered memory-pressure defense: a
// one-shot kernel OOM tuner, a fast-polling reaper, a coarse guardian,
// and an on-demand emergency cleanup. Tiers run as independent
// goroutines with no shared state beyond the metrics registry.
package defense

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Kernel control files the defense tiers write through the file store.
const (
	panicOnOOMPath     = "/proc/sys/vm/panic_on_oom"
	oomKillAllocating  = "/proc/sys/vm/oom_kill_allocating_task"
	selfOOMScorePath   = "/proc/self/oom_score_adj"
	dropCachesPath     = "/proc/sys/vm/drop_caches"
	compactMemoryPath  = "/proc/sys/vm/compact_memory"
	supervisorOOMScore = "-500"
)

// OOMTuner is tier 1: it sets the kernel's OOM killer behavior once at
// supervisor startup. Runtime writes go through procfs rather than
// sysctl.conf so they never outlive the supervisor's session.
type OOMTuner struct {
	files      domain.PrivilegedFileStore
	aggressive bool
	logger     *zap.Logger
}

// NewOOMTuner builds the tier-1 tuner. aggressive selects the faster
// kill strategy used on low-memory hosts.
func NewOOMTuner(files domain.PrivilegedFileStore, aggressive bool, logger *zap.Logger) *OOMTuner {
	return &OOMTuner{files: files, aggressive: aggressive, logger: logger}
}

// Tune applies the OOM sysctls and shields the supervisor process
// itself from the kernel killer.
func (t *OOMTuner) Tune() error {
	// Never panic the box on OOM; kill something instead.
	if err := t.writeControl(panicOnOOMPath, "0"); err != nil {
		return err
	}

	// On low-memory hosts, killing the allocating task is faster than a
	// full badness scan and frees memory before the stall is felt.
	killAllocating := "0"
	if t.aggressive {
		killAllocating = "1"
	}
	if err := t.writeControl(oomKillAllocating, killAllocating); err != nil {
		return err
	}

	// The supervisor must survive the pressure it is defending against.
	if err := t.writeControl(selfOOMScorePath, supervisorOOMScore); err != nil {
		return err
	}

	t.logger.Info("kernel OOM controls tuned",
		zap.Bool("aggressive", t.aggressive))
	return nil
}

func (t *OOMTuner) writeControl(path, value string) error {
	if err := t.files.WriteFile(path, []byte(value+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
