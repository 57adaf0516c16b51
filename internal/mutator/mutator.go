package mutator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Target paths mutated by one optimization pass.
const (
	sysctlConfPath    = "/etc/sysctl.conf"
	fstabPath         = "/etc/fstab"
	swapFilePath      = "/swapfile"
	zramUnitPath      = "/etc/systemd/system/ubuntu-tools-zram.service"
	governorUnitPath  = "/etc/systemd/system/ubuntu-tools-governor.service"
	networkUnitPath   = "/etc/systemd/system/ubuntu-tools-net.service"
	schedulerRulePath = "/etc/udev/rules.d/60-ubuntu-tools-iosched.rules"
)

// Mutator applies and rolls back configuration mutations.
type Mutator struct {
	files    domain.PrivilegedFileStore
	backups  domain.BackupStore
	services domain.ServiceController
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a configuration mutator.
func New(
	files domain.PrivilegedFileStore,
	backups domain.BackupStore,
	services domain.ServiceController,
	logger *zap.Logger,
) *Mutator {
	return &Mutator{
		files:    files,
		backups:  backups,
		services: services,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply runs every mutation for the profile, strictly in order. A failed
// step aborts only that step; the error is collected and the remaining
// targets still run, except where a later target depends on the failed
// one (the mount table omits the swap file line when swap creation
// failed). The joined error is non-nil if any step failed.
func (m *Mutator) Apply(ctx context.Context, prof domain.OptimizationProfile, fp domain.HostFingerprint) (domain.ApplyReport, error) {
	var report domain.ApplyReport
	var errs []error

	swapFileReady := false

	type step struct {
		name string
		skip bool
		run  func() (*domain.ConfigMutation, error)
	}

	steps := []step{
		{name: "sysctl", run: func() (*domain.ConfigMutation, error) {
			return m.applySysctl(prof)
		}},
		{name: "swapfile", run: func() (*domain.ConfigMutation, error) {
			mut, err := m.applySwapFile(prof)
			// A deferred activation still leaves a usable swap file for
			// the mount table to reference.
			swapFileReady = mut != nil
			return mut, err
		}},
		{name: "zram", skip: !prof.ZRAMEnabled, run: func() (*domain.ConfigMutation, error) {
			return m.applyZram(prof)
		}},
		{name: "io-scheduler", run: func() (*domain.ConfigMutation, error) {
			return m.applyScheduler(fp.StorageClass)
		}},
		{name: "cpu-governor", run: func() (*domain.ConfigMutation, error) {
			return m.applyGovernor(fp.IsLaptop)
		}},
		{name: "network-tuning", skip: fp.NetworkInterface == "", run: func() (*domain.ConfigMutation, error) {
			return m.applyNetwork(fp.NetworkInterface)
		}},
		{name: "fstab", run: func() (*domain.ConfigMutation, error) {
			return m.applyFstab(prof, swapFileReady)
		}},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.skip {
			continue
		}

		mut, err := s.run()
		if err != nil {
			var deferred *domain.ActivationDeferred
			if errors.As(err, &deferred) {
				// Written and verified; only activation waits for reboot.
				report.Warnings = append(report.Warnings, deferred.Error())
				m.logger.Warn("activation deferred",
					zap.String("mutation", s.name),
					zap.String("reason", deferred.Reason))
			} else {
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				m.logger.Error("mutation failed",
					zap.String("mutation", s.name),
					zap.Error(err))
				continue
			}
		}
		if mut != nil {
			report.Mutations = append(report.Mutations, *mut)
			m.logger.Info("mutation applied",
				zap.String("mutation", mut.Name),
				zap.String("target", mut.TargetPath),
				zap.String("backup", mut.BackupPath),
				zap.Bool("reboot_required", mut.RebootRequired))
		}
	}

	return report, errors.Join(errs...)
}

// writeVerified performs the backup/write/verify core shared by every
// file-based mutation. The backup is written before the first byte of the
// target is altered; a backup failure aborts the mutation.
func (m *Mutator) writeVerified(name, path string, content []byte) (*domain.ConfigMutation, error) {
	var backupPath string
	if m.files.Exists(path) {
		prev, err := m.files.ReadFile(path)
		if err != nil {
			return nil, &domain.BackupError{Target: path, Err: err}
		}
		backupPath, err = m.backups.Save(path, prev)
		if err != nil {
			return nil, &domain.BackupError{Target: path, Err: err}
		}
	}

	if err := m.files.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	readBack, err := m.files.ReadFile(path)
	if err != nil || !bytes.Equal(readBack, content) {
		return nil, &domain.VerificationError{Target: path}
	}

	return &domain.ConfigMutation{
		Name:       name,
		TargetPath: path,
		BackupPath: backupPath,
		AppliedAt:  m.now(),
	}, nil
}

// upsertBlockVerified edits a shared file: strip the tool's previous
// block, insert the new one, then backup/write/verify as usual.
func (m *Mutator) upsertBlockVerified(name, path, body string) (*domain.ConfigMutation, error) {
	var existing string
	if m.files.Exists(path) {
		data, err := m.files.ReadFile(path)
		if err != nil {
			return nil, &domain.BackupError{Target: path, Err: err}
		}
		existing = string(data)
	}
	return m.writeVerified(name, path, []byte(upsertManagedBlock(existing, body)))
}

func (m *Mutator) applySysctl(prof domain.OptimizationProfile) (*domain.ConfigMutation, error) {
	mut, err := m.upsertBlockVerified("sysctl", sysctlConfPath, renderSysctlBlock(prof))
	if err != nil {
		return nil, err
	}
	if err := m.services.ReloadSysctl(); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{Target: sysctlConfPath, Reason: err.Error()}
	}
	return mut, nil
}

// applySwapFile sizes the swap file and formats it. The file's bytes are
// swap pages, not configuration, so no backup is filed for this target.
func (m *Mutator) applySwapFile(prof domain.OptimizationProfile) (*domain.ConfigMutation, error) {
	if m.files.Exists(swapFilePath) {
		// Take the old file offline before resizing under it.
		if err := m.services.SwapOff(swapFilePath); err != nil {
			m.logger.Debug("swapoff before resize failed (file may not be active)",
				zap.Error(err))
		}
	}

	if err := m.files.Allocate(swapFilePath, prof.SwapSizeMB*1024*1024); err != nil {
		return nil, fmt.Errorf("allocate swap file: %w", err)
	}
	if err := m.services.MakeSwap(swapFilePath); err != nil {
		return nil, fmt.Errorf("format swap file: %w", err)
	}

	mut := &domain.ConfigMutation{
		Name:       "swapfile",
		TargetPath: swapFilePath,
		AppliedAt:  m.now(),
	}
	if err := m.services.SwapOn(swapFilePath, fileSwapPriority); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{
			Target: swapFilePath,
			Reason: "swapon refused while existing swap is active; entry takes effect on reboot",
		}
	}
	return mut, nil
}

func (m *Mutator) applyZram(prof domain.OptimizationProfile) (*domain.ConfigMutation, error) {
	unit, err := renderZramUnit(prof.ZRAMSizeMB)
	if err != nil {
		return nil, err
	}
	mut, err := m.writeVerified("zram", zramUnitPath, []byte(unit))
	if err != nil {
		return nil, err
	}
	if err := m.activateUnit("ubuntu-tools-zram.service"); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{Target: zramUnitPath, Reason: err.Error()}
	}
	return mut, nil
}

func (m *Mutator) applyScheduler(class domain.StorageClass) (*domain.ConfigMutation, error) {
	mut, err := m.writeVerified("io-scheduler", schedulerRulePath, []byte(renderSchedulerRules(class)))
	if err != nil {
		return nil, err
	}
	if err := m.services.ReloadUdev(); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{Target: schedulerRulePath, Reason: err.Error()}
	}
	return mut, nil
}

func (m *Mutator) applyGovernor(isLaptop bool) (*domain.ConfigMutation, error) {
	unit, err := renderGovernorUnit(isLaptop)
	if err != nil {
		return nil, err
	}
	mut, err := m.writeVerified("cpu-governor", governorUnitPath, []byte(unit))
	if err != nil {
		return nil, err
	}
	if err := m.activateUnit("ubuntu-tools-governor.service"); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{Target: governorUnitPath, Reason: err.Error()}
	}
	return mut, nil
}

func (m *Mutator) applyNetwork(iface string) (*domain.ConfigMutation, error) {
	unit, err := renderNetworkUnit(iface)
	if err != nil {
		return nil, err
	}
	mut, err := m.writeVerified("network-tuning", networkUnitPath, []byte(unit))
	if err != nil {
		return nil, err
	}
	if err := m.activateUnit("ubuntu-tools-net.service"); err != nil {
		mut.RebootRequired = true
		return mut, &domain.ActivationDeferred{Target: networkUnitPath, Reason: err.Error()}
	}
	return mut, nil
}

func (m *Mutator) applyFstab(prof domain.OptimizationProfile, swapFileReady bool) (*domain.ConfigMutation, error) {
	return m.upsertBlockVerified("fstab", fstabPath, renderFstabBlock(prof, swapFileReady))
}

func (m *Mutator) activateUnit(name string) error {
	if err := m.services.DaemonReload(); err != nil {
		return err
	}
	return m.services.EnableService(name)
}

// Restore rolls every mutation back from its backup, newest first.
// Targets that had no prior file are removed. Calling it with nothing
// applied is a signaled no-op, not an error.
func (m *Mutator) Restore(ctx context.Context, mutations []domain.ConfigMutation) (domain.RestoreReport, error) {
	var report domain.RestoreReport
	var errs []error

	for i := len(mutations) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		mut := mutations[i]

		switch {
		case mut.BackupPath != "":
			data, err := m.backups.Load(mut.BackupPath)
			if err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", mut.TargetPath, err))
				report.Skipped = append(report.Skipped, mut.TargetPath)
				continue
			}
			if err := m.files.WriteFile(mut.TargetPath, data, 0644); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", mut.TargetPath, err))
				report.Skipped = append(report.Skipped, mut.TargetPath)
				continue
			}
			report.Restored = append(report.Restored, mut.TargetPath)

		case mut.Name == "swapfile":
			if err := m.services.SwapOff(mut.TargetPath); err != nil {
				m.logger.Debug("swapoff during restore failed", zap.Error(err))
			}
			if err := m.files.Remove(mut.TargetPath); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", mut.TargetPath, err))
				report.Skipped = append(report.Skipped, mut.TargetPath)
				continue
			}
			report.Removed = append(report.Removed, mut.TargetPath)

		default:
			// No prior file existed: undo means delete what we created.
			if err := m.files.Remove(mut.TargetPath); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", mut.TargetPath, err))
				report.Skipped = append(report.Skipped, mut.TargetPath)
				continue
			}
			report.Removed = append(report.Removed, mut.TargetPath)
		}
	}

	if len(mutations) > 0 {
		// Reactivate restored settings; failures are warnings, the files
		// themselves are already back.
		if err := m.services.ReloadSysctl(); err != nil {
			m.logger.Warn("sysctl reload after restore failed", zap.Error(err))
		}
		if err := m.services.DaemonReload(); err != nil {
			m.logger.Warn("daemon-reload after restore failed", zap.Error(err))
		}
		if err := m.services.ReloadUdev(); err != nil {
			m.logger.Warn("udev reload after restore failed", zap.Error(err))
		}
	}

	return report, errors.Join(errs...)
}
