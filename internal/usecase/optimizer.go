// Package usecase contains the orchestration logic for optimization runs.
package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/profile"
)

// ErrDeclined is returned when the operator rejects the confirmation
// prompt. Nothing has been mutated at that point.
var ErrDeclined = errors.New("optimization declined by operator")

// Packages required for compressed swap; installed best-effort before
// the zram unit is written.
var zramPackages = []string{"zram-tools", "util-linux"}

// Fingerprinter probes the host. Implementation: fingerprint.Prober.
type Fingerprinter interface {
	Fingerprint() (domain.HostFingerprint, error)
}

// MutationApplier applies and rolls back configuration mutations.
// Implementation: mutator.Mutator.
type MutationApplier interface {
	Apply(ctx context.Context, prof domain.OptimizationProfile, fp domain.HostFingerprint) (domain.ApplyReport, error)
	Restore(ctx context.Context, mutations []domain.ConfigMutation) (domain.RestoreReport, error)
}

// ConfirmFunc asks the operator to approve the derived profile before
// anything is mutated. A nil ConfirmFunc approves unconditionally.
type ConfirmFunc func(fp domain.HostFingerprint, prof domain.OptimizationProfile) bool

// Outcome is the result of one optimization run.
type Outcome struct {
	Fingerprint domain.HostFingerprint
	Profile     domain.OptimizationProfile
	Report      domain.ApplyReport
	RunID       int64
	Warnings    []string
}

// Optimizer drives the full run: probe, derive, confirm, ensure
// packages, mutate, record.
type Optimizer struct {
	prober     Fingerprinter
	mutator    MutationApplier
	installers domain.InstallerManager
	ledger     domain.RunLedger
	confirm    ConfirmFunc
	logger     *zap.Logger
}

// NewOptimizer creates the run orchestrator. ledger may be nil when run
// history is unavailable; the run proceeds unrecorded.
func NewOptimizer(
	prober Fingerprinter,
	mutator MutationApplier,
	installers domain.InstallerManager,
	ledger domain.RunLedger,
	confirm ConfirmFunc,
	logger *zap.Logger,
) *Optimizer {
	return &Optimizer{
		prober:     prober,
		mutator:    mutator,
		installers: installers,
		ledger:     ledger,
		confirm:    confirm,
		logger:     logger,
	}
}

// Run executes one optimization pass. A detection failure or a declined
// confirmation aborts before any mutation; package availability and
// ledger problems degrade to warnings.
func (o *Optimizer) Run(ctx context.Context) (Outcome, error) {
	var out Outcome

	fp, err := o.prober.Fingerprint()
	if err != nil {
		return out, err
	}
	out.Fingerprint = fp
	out.Profile = profile.Derive(fp)

	o.logger.Info("profile derived",
		zap.String("profile", string(out.Profile.Name)),
		zap.Uint64("total_memory_mb", fp.TotalMemoryMB),
		zap.String("storage_class", string(fp.StorageClass)))

	if o.confirm != nil && !o.confirm(fp, out.Profile) {
		o.logger.Info("run declined, nothing mutated")
		return out, ErrDeclined
	}

	if out.Profile.ZRAMEnabled {
		o.ensureZramPackages(&out)
	}

	report, applyErr := o.mutator.Apply(ctx, out.Profile, fp)
	out.Report = report
	out.Warnings = append(out.Warnings, report.Warnings...)

	// Record whatever was applied, even on a partial failure: the ledger
	// is what restore reads its rollback list from.
	o.recordRun(&out)

	if applyErr != nil {
		return out, applyErr
	}

	o.logger.Info("optimization complete",
		zap.Int("mutations", len(report.Mutations)),
		zap.Int("warnings", len(out.Warnings)),
		zap.Int64("run_id", out.RunID))
	return out, nil
}

// RestoreLast rolls back the most recent recorded run.
func (o *Optimizer) RestoreLast(ctx context.Context) (domain.RestoreReport, error) {
	if o.ledger == nil {
		return domain.RestoreReport{}, errors.New("no run ledger available")
	}

	last, err := o.ledger.LastRun()
	if err != nil {
		return domain.RestoreReport{}, err
	}
	if last == nil {
		return domain.RestoreReport{}, errors.New("no recorded run to restore")
	}

	o.logger.Info("restoring last run",
		zap.Int64("run_id", last.ID),
		zap.Time("started_at", last.StartedAt),
		zap.Int("mutations", len(last.Mutations)))

	return o.mutator.Restore(ctx, last.Mutations)
}

// ensureZramPackages installs the compressed-swap tooling. An
// unavailable package is a warning: the generated unit still works on
// hosts that already ship the binaries.
func (o *Optimizer) ensureZramPackages(out *Outcome) {
	if o.installers == nil {
		return
	}

	for _, pkg := range zramPackages {
		manager, err := o.installers.EnsureInstalled(pkg)
		if err != nil {
			var unavailable *domain.PackageUnavailable
			if errors.As(err, &unavailable) {
				out.Warnings = append(out.Warnings, unavailable.Error())
				o.logger.Warn("package unavailable, continuing",
					zap.String("package", pkg), zap.Error(err))
				continue
			}
			out.Warnings = append(out.Warnings, err.Error())
			o.logger.Warn("package install failed, continuing",
				zap.String("package", pkg), zap.Error(err))
			continue
		}
		if manager != "" {
			o.logger.Info("package present",
				zap.String("package", pkg), zap.String("manager", manager))
		}
	}
}

func (o *Optimizer) recordRun(out *Outcome) {
	if o.ledger == nil || len(out.Report.Mutations) == 0 {
		return
	}

	id, err := o.ledger.Record(domain.RunRecord{
		StartedAt:   out.Report.Mutations[0].AppliedAt,
		Fingerprint: out.Fingerprint,
		Profile:     out.Profile,
		Mutations:   out.Report.Mutations,
	})
	if err != nil {
		out.Warnings = append(out.Warnings, "run not recorded: "+err.Error())
		o.logger.Warn("ledger record failed", zap.Error(err))
		return
	}
	out.RunID = id
}
