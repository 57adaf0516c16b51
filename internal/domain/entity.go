// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// StorageClass classifies the primary block device.
type StorageClass string

const (
	StorageHDD     StorageClass = "hdd"
	StorageSSD     StorageClass = "ssd"
	StorageNVMe    StorageClass = "nvme"
	StorageUnknown StorageClass = "unknown"
)

// GPUVendor identifies the vendor of the first display-class PCI device.
type GPUVendor string

const (
	GPUNvidia  GPUVendor = "nvidia"
	GPUAMD     GPUVendor = "amd"
	GPUIntel   GPUVendor = "intel"
	GPUUnknown GPUVendor = "unknown"
)

// DesktopEnv identifies the active desktop environment.
type DesktopEnv string

const (
	DesktopGNOME    DesktopEnv = "gnome"
	DesktopKDE      DesktopEnv = "kde"
	DesktopXFCE     DesktopEnv = "xfce"
	DesktopCinnamon DesktopEnv = "cinnamon"
	DesktopMATE     DesktopEnv = "mate"
	DesktopUnknown  DesktopEnv = "unknown"
)

// HostFingerprint is an immutable snapshot of the machine's hardware and
// software environment. Created once per run; never mutated.
type HostFingerprint struct {
	TotalMemoryMB     uint64       `json:"total_memory_mb"`
	AvailableMemoryMB uint64       `json:"available_memory_mb"`
	StorageClass      StorageClass `json:"storage_class"`
	CPUCores          uint         `json:"cpu_cores"`
	GPUVendor         GPUVendor    `json:"gpu_vendor"`
	IsLaptop          bool         `json:"is_laptop"`
	IsVirtualMachine  bool         `json:"is_virtual_machine"`
	DesktopEnv        DesktopEnv   `json:"desktop_env"`
	NetworkInterface  string       `json:"network_interface"`
	KernelVersion     string       `json:"kernel_version"`
}

// ProfileName names one memory-size band of the optimization table.
type ProfileName string

const (
	ProfileMinimal ProfileName = "MINIMAL"
	ProfileLow     ProfileName = "LOW"
	ProfileMedium  ProfileName = "MEDIUM"
	ProfileHigh    ProfileName = "HIGH"
	ProfileExtreme ProfileName = "EXTREME"
)

// OptimizationProfile is the immutable set of tuned resource parameters
// derived from a host's memory size. Every field is a pure function of
// HostFingerprint.TotalMemoryMB; storage class and laptop status select
// the I/O scheduler and CPU governor separately.
type OptimizationProfile struct {
	Name                 ProfileName `json:"name"`
	SwapSizeMB           uint64      `json:"swap_size_mb"`
	Swappiness           uint        `json:"swappiness"`
	ZRAMEnabled          bool        `json:"zram_enabled"`
	ZRAMSizeMB           uint64      `json:"zram_size_mb"`
	TmpfsSizeMB          uint64      `json:"tmpfs_size_mb"`
	VFSCachePressure     uint        `json:"vfs_cache_pressure"`
	MinFreeKB            uint64      `json:"min_free_kb"`
	DirtyRatio           uint        `json:"dirty_ratio"`
	DirtyBackgroundRatio uint        `json:"dirty_background_ratio"`
}

// ConfigMutation records one applied configuration change.
// BackupPath is empty iff the target did not exist before the run.
type ConfigMutation struct {
	Name           string    `json:"name"`
	TargetPath     string    `json:"target_path"`
	BackupPath     string    `json:"backup_path,omitempty"`
	AppliedAt      time.Time `json:"applied_at"`
	RebootRequired bool      `json:"reboot_required"`
}

// ApplyReport is the outcome of one Configuration Mutator pass.
type ApplyReport struct {
	Mutations []ConfigMutation
	Warnings  []string
}

// RestoreReport is the outcome of rolling mutations back from their backups.
type RestoreReport struct {
	Restored []string
	Removed  []string // targets that had no prior file and were deleted
	Skipped  []string
}

// PressureTier is the memory-pressure escalation level observed by the
// periodic guardian.
type PressureTier string

const (
	TierNormal   PressureTier = "NORMAL"
	TierHigh     PressureTier = "HIGH"
	TierCritical PressureTier = "CRITICAL"
)

// MemoryPressureEvent is produced every guardian cycle. Ephemeral, not
// persisted.
type MemoryPressureEvent struct {
	UsedPercent float64
	Tier        PressureTier
	ActionTaken string
	ObservedAt  time.Time
}

// MemoryStats is a point-in-time memory accounting snapshot.
type MemoryStats struct {
	TotalMB          uint64
	AvailableMB      uint64
	UsedPercent      float64
	AvailablePercent float64
	SwapTotalMB      uint64
	SwapFreeMB       uint64
	SwapFreePercent  float64
}

// ThresholdPolicy fixes the defense-tier constants for the life of the
// supervisor. Chosen once from the fingerprint and configuration.
type ThresholdPolicy struct {
	// Reaper (tier 2) kills when available memory AND free swap both fall
	// below these percentages. Halved for hosts at or below the low-memory
	// cutoff.
	MemKillPercent    float64
	SwapKillPercent   float64
	LowMemoryCutoffMB uint64

	ReaperInterval   time.Duration
	GuardianInterval time.Duration

	// Guardian (tier 3) watermarks, in used-memory percent.
	HighWatermark     float64
	CriticalWatermark float64

	// Emergency cleanup only terminates applications when usage is still
	// above this after cache drop and compaction.
	EmergencyWatermark float64

	// ProtectedProcesses are never selected as reaper victims.
	ProtectedProcesses []string
	// PreferredVictims are name patterns the reaper kills first; the
	// largest matching process wins.
	PreferredVictims []string
	// EmergencyVictims is the fixed kill list for emergency cleanup,
	// least essential first.
	EmergencyVictims []string
}

// EmergencyReport carries the before/after measurements of an on-demand
// emergency cleanup.
type EmergencyReport struct {
	Before       MemoryStats
	AfterReclaim MemoryStats // measured after cache drop, compaction, swap toggle
	Final        MemoryStats
	Killed       []string
	SwapToggled  bool
}

// RunRecord is one optimization run as persisted in the run ledger.
type RunRecord struct {
	ID          int64
	StartedAt   time.Time
	Fingerprint HostFingerprint
	Profile     OptimizationProfile
	Mutations   []ConfigMutation
}
