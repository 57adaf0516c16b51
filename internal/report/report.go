// Package report renders run results as plain text for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/profile"
)

// Fingerprint renders the probed hardware facts.
func Fingerprint(fp domain.HostFingerprint) string {
	var b strings.Builder

	b.WriteString("=== Host Fingerprint ===\n")
	fmt.Fprintf(&b, "Total memory:     %d MB\n", fp.TotalMemoryMB)
	fmt.Fprintf(&b, "Available memory: %d MB\n", fp.AvailableMemoryMB)
	fmt.Fprintf(&b, "Storage class:    %s\n", fp.StorageClass)
	fmt.Fprintf(&b, "CPU cores:        %d\n", fp.CPUCores)
	fmt.Fprintf(&b, "GPU vendor:       %s\n", fp.GPUVendor)
	fmt.Fprintf(&b, "Chassis:          %s\n", chassis(fp))
	fmt.Fprintf(&b, "Desktop:          %s\n", fp.DesktopEnv)
	fmt.Fprintf(&b, "Network iface:    %s\n", orNone(fp.NetworkInterface))
	fmt.Fprintf(&b, "Kernel:           %s\n", fp.KernelVersion)
	b.WriteString("========================\n")

	return b.String()
}

// Profile renders the derived optimization parameters.
func Profile(fp domain.HostFingerprint, prof domain.OptimizationProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Profile: %s ===\n", prof.Name)
	fmt.Fprintf(&b, "Swap file:          %d MB\n", prof.SwapSizeMB)
	fmt.Fprintf(&b, "Swappiness:         %d\n", prof.Swappiness)
	if prof.ZRAMEnabled {
		fmt.Fprintf(&b, "zram:               %d MB\n", prof.ZRAMSizeMB)
	} else {
		b.WriteString("zram:               disabled\n")
	}
	fmt.Fprintf(&b, "tmpfs /tmp:         %d MB\n", prof.TmpfsSizeMB)
	fmt.Fprintf(&b, "VFS cache pressure: %d\n", prof.VFSCachePressure)
	fmt.Fprintf(&b, "min_free_kbytes:    %d\n", prof.MinFreeKB)
	fmt.Fprintf(&b, "Dirty ratio:        %d/%d\n", prof.DirtyRatio, prof.DirtyBackgroundRatio)
	fmt.Fprintf(&b, "I/O scheduler:      %s\n", profile.SchedulerFor(fp.StorageClass))
	fmt.Fprintf(&b, "CPU governor:       %s\n", profile.GovernorFor(fp.IsLaptop))
	b.WriteString(strings.Repeat("=", len(prof.Name)+17) + "\n")

	return b.String()
}

// Run renders the outcome of an optimization pass: what was changed,
// where the backups went, and what still needs a reboot.
func Run(fp domain.HostFingerprint, prof domain.OptimizationProfile, rep domain.ApplyReport, warnings []string) string {
	var b strings.Builder

	b.WriteString(Fingerprint(fp))
	b.WriteString("\n")
	b.WriteString(Profile(fp, prof))
	b.WriteString("\n=== Applied Mutations ===\n")

	if len(rep.Mutations) == 0 {
		b.WriteString("(none)\n")
	}
	rebootNeeded := false
	for _, m := range rep.Mutations {
		fmt.Fprintf(&b, "[%s] %s\n", m.Name, m.TargetPath)
		if m.BackupPath != "" {
			fmt.Fprintf(&b, "    backup: %s\n", m.BackupPath)
		} else {
			b.WriteString("    backup: (new file)\n")
		}
		if m.RebootRequired {
			b.WriteString("    activation: deferred until reboot\n")
			rebootNeeded = true
		}
	}

	if len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	if rebootNeeded {
		b.WriteString("\nSome changes take effect after the next reboot.\n")
	}
	b.WriteString("=========================\n")

	return b.String()
}

// Restore renders a rollback result.
func Restore(rep domain.RestoreReport) string {
	var b strings.Builder

	b.WriteString("=== Restore ===\n")
	for _, p := range rep.Restored {
		fmt.Fprintf(&b, "restored: %s\n", p)
	}
	for _, p := range rep.Removed {
		fmt.Fprintf(&b, "removed:  %s\n", p)
	}
	for _, p := range rep.Skipped {
		fmt.Fprintf(&b, "skipped:  %s\n", p)
	}
	if len(rep.Restored)+len(rep.Removed)+len(rep.Skipped) == 0 {
		b.WriteString("nothing to restore\n")
	}
	b.WriteString("===============\n")

	return b.String()
}

// Emergency renders the before/after measurements of a cleanup.
func Emergency(rep domain.EmergencyReport) string {
	var b strings.Builder

	b.WriteString("=== Emergency Cleanup ===\n")
	fmt.Fprintf(&b, "Before:        %.1f%% used (%d MB available)\n",
		rep.Before.UsedPercent, rep.Before.AvailableMB)
	fmt.Fprintf(&b, "After reclaim: %.1f%% used (%d MB available)\n",
		rep.AfterReclaim.UsedPercent, rep.AfterReclaim.AvailableMB)
	fmt.Fprintf(&b, "Final:         %.1f%% used (%d MB available)\n",
		rep.Final.UsedPercent, rep.Final.AvailableMB)
	fmt.Fprintf(&b, "Swap toggled:  %v\n", rep.SwapToggled)

	if len(rep.Killed) > 0 {
		b.WriteString("Terminated:\n")
		for _, name := range rep.Killed {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	} else {
		b.WriteString("Terminated:    (none)\n")
	}
	b.WriteString("=========================\n")

	return b.String()
}

// LastRun renders a ledger record for the report subcommand.
func LastRun(rec domain.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Run %d (%s) ===\n", rec.ID, rec.StartedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(Fingerprint(rec.Fingerprint))
	b.WriteString("\n")
	b.WriteString(Profile(rec.Fingerprint, rec.Profile))
	b.WriteString("\n=== Mutations ===\n")
	for _, m := range rec.Mutations {
		fmt.Fprintf(&b, "[%s] %s\n", m.Name, m.TargetPath)
		if m.BackupPath != "" {
			fmt.Fprintf(&b, "    backup: %s\n", m.BackupPath)
		}
	}
	b.WriteString("=================\n")

	return b.String()
}

func chassis(fp domain.HostFingerprint) string {
	switch {
	case fp.IsVirtualMachine:
		return "virtual machine"
	case fp.IsLaptop:
		return "laptop"
	default:
		return "desktop"
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
