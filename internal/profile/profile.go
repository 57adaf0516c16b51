// Package profile derives the optimization profile from a host fingerprint.
// Derivation is a pure, total function: a static ordered table of memory
// bands evaluated top-down, first band whose upper bound is not exceeded
// wins. No failure mode.
package profile

import (
	"github.com/Nerds489/ubuntu-tools/internal/config"
	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// band pairs an inclusive upper bound in MB with the profile values for
// hosts inside it. The last band is unbounded.
type band struct {
	upperMB uint64
	profile domain.OptimizationProfile
}

// Swappiness and cache pressure decrease monotonically as RAM grows;
// compressed swap is only enabled below the EXTREME band.
var bands = []band{
	{2048, domain.OptimizationProfile{
		Name: domain.ProfileMinimal, SwapSizeMB: 4096, Swappiness: 60,
		ZRAMEnabled: true, ZRAMSizeMB: 1024, TmpfsSizeMB: 256,
		VFSCachePressure: 100, MinFreeKB: 32768, DirtyRatio: 10, DirtyBackgroundRatio: 5,
	}},
	{4096, domain.OptimizationProfile{
		Name: domain.ProfileLow, SwapSizeMB: 4096, Swappiness: 40,
		ZRAMEnabled: true, ZRAMSizeMB: 2048, TmpfsSizeMB: 512,
		VFSCachePressure: 80, MinFreeKB: 49152, DirtyRatio: 15, DirtyBackgroundRatio: 5,
	}},
	{8192, domain.OptimizationProfile{
		Name: domain.ProfileMedium, SwapSizeMB: 2048, Swappiness: 30,
		ZRAMEnabled: true, ZRAMSizeMB: 4096, TmpfsSizeMB: 1024,
		VFSCachePressure: 66, MinFreeKB: 65536, DirtyRatio: 15, DirtyBackgroundRatio: 10,
	}},
	{16384, domain.OptimizationProfile{
		Name: domain.ProfileHigh, SwapSizeMB: 2048, Swappiness: 20,
		ZRAMEnabled: true, ZRAMSizeMB: 8192, TmpfsSizeMB: 2048,
		VFSCachePressure: 50, MinFreeKB: 98304, DirtyRatio: 20, DirtyBackgroundRatio: 10,
	}},
	{0, domain.OptimizationProfile{
		Name: domain.ProfileExtreme, SwapSizeMB: 1024, Swappiness: 10,
		ZRAMEnabled: false, ZRAMSizeMB: 0, TmpfsSizeMB: 4096,
		VFSCachePressure: 50, MinFreeKB: 131072, DirtyRatio: 20, DirtyBackgroundRatio: 10,
	}},
}

// Derive maps the fingerprint's total memory onto the band table.
// Boundary values resolve to the lower band (inclusive upper bound).
func Derive(fp domain.HostFingerprint) domain.OptimizationProfile {
	for _, b := range bands[:len(bands)-1] {
		if fp.TotalMemoryMB <= b.upperMB {
			return b.profile
		}
	}
	return bands[len(bands)-1].profile
}

// SchedulerFor selects the I/O scheduler. Orthogonal to the memory bands:
// a function of the storage class only.
func SchedulerFor(class domain.StorageClass) string {
	switch class {
	case domain.StorageNVMe, domain.StorageSSD:
		return "none"
	default:
		// Rotational disks and unknown devices get the safe choice.
		return "mq-deadline"
	}
}

// GovernorFor selects the CPU frequency governor from laptop status only.
func GovernorFor(isLaptop bool) string {
	if isLaptop {
		return "schedutil"
	}
	return "performance"
}

// protectedProcesses are core OS processes the reaper must never kill.
var protectedProcesses = []string{
	"systemd", "init", "kthreadd", "dbus-daemon", "NetworkManager",
	"sshd", "Xorg", "Xwayland", "gnome-shell", "plasmashell",
	"ubuntu-tools",
}

// preferredVictims are memory-hungry user applications, matched by name
// pattern, killed first under pressure.
var preferredVictims = []string{
	"chrome", "chromium", "firefox", "brave", "electron", "slack",
	"discord", "teams", "zoom", "spotify", "java", "gradle", "node",
}

// emergencyVictims is the fixed emergency kill list, least essential first.
var emergencyVictims = []string{
	"spotify", "discord", "slack", "teams", "zoom",
	"chrome", "chromium", "brave", "firefox",
}

// ThresholdPolicyFor fixes the defense constants from the fingerprint and
// configuration. The kill thresholds are halved at or below the low-memory
// cutoff so the reaper fires earlier on small hosts.
func ThresholdPolicyFor(fp domain.HostFingerprint, cfg config.Config) domain.ThresholdPolicy {
	memKill := cfg.ReaperMemPercent
	swapKill := cfg.ReaperSwapPercent
	if fp.TotalMemoryMB <= cfg.LowMemoryCutoffMB {
		memKill /= 2
		swapKill /= 2
	}

	return domain.ThresholdPolicy{
		MemKillPercent:     memKill,
		SwapKillPercent:    swapKill,
		LowMemoryCutoffMB:  cfg.LowMemoryCutoffMB,
		ReaperInterval:     cfg.ReaperInterval,
		GuardianInterval:   cfg.GuardianInterval,
		HighWatermark:      cfg.HighWatermark,
		CriticalWatermark:  cfg.CriticalWatermark,
		EmergencyWatermark: cfg.EmergencyWatermark,
		ProtectedProcesses: protectedProcesses,
		PreferredVictims:   preferredVictims,
		EmergencyVictims:   emergencyVictims,
	}
}
