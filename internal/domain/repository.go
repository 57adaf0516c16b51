package domain

import "os"

// MemoryReader provides memory accounting snapshots.
// Implementation: gopsutil. Tests substitute scripted readers.
type MemoryReader interface {
	// Snapshot returns current memory and swap usage.
	Snapshot() (MemoryStats, error)
}

// ProcessInfo describes one running process for victim selection.
type ProcessInfo struct {
	PID           int
	Name          string
	MemoryPercent float64
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil.
type ProcessManager interface {
	// List returns all running processes with their memory share.
	List() ([]ProcessInfo, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// PackageInstaller installs a named package through one package manager.
// Implementations: apt, dnf, pacman, zypper - selected once at startup by
// a capability probe, not re-detected on every call.
type PackageInstaller interface {
	// Name returns the manager name (e.g. "apt", "dnf").
	Name() string

	// IsAvailable returns true if this manager exists on this system.
	IsAvailable() bool

	// IsInstalled checks if the package is already installed.
	IsInstalled(pkg string) bool

	// Install installs the package non-interactively.
	Install(pkg string) error
}

// InstallerManager probes for available package managers once and
// dispatches installs to the first one found.
type InstallerManager interface {
	// Managers returns the probed package managers.
	Managers() []PackageInstaller

	// EnsureInstalled installs pkg if missing. Returns the manager name
	// that handled it, or a PackageUnavailable error.
	EnsureInstalled(pkg string) (string, error)
}

// PrivilegedFileStore reads and writes protected configuration files.
// Paths are absolute host paths; implementations may re-root them for
// testing.
type PrivilegedFileStore interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Exists(path string) bool
	Remove(path string) error

	// Allocate creates a file of exactly size bytes, preferring the
	// filesystem's fast allocation primitive and falling back to
	// zero-fill when unsupported.
	Allocate(path string, size uint64) error
}

// ServiceController restarts system services and reactivates settings
// without a reboot where the subsystem supports hot reload.
type ServiceController interface {
	RestartService(name string) error
	EnableService(name string) error
	DaemonReload() error
	ReloadSysctl() error
	ReloadUdev() error

	MakeSwap(path string) error
	SwapOn(path string, priority int) error
	SwapOff(path string) error
	SwapOffAll() error
	SwapOnAll() error
}

// BackupStore files timestamped backups of mutated targets. Backups
// accumulate and are never pruned or overwritten. The store holds bytes
// only; reading and rewriting the targets themselves goes through the
// PrivilegedFileStore.
type BackupStore interface {
	// Save files the target's pre-mutation bytes under a fresh
	// timestamped name and returns its path.
	Save(target string, data []byte) (string, error)

	// Load returns the exact bytes of a previously saved backup.
	Load(backupPath string) ([]byte, error)

	// List returns all backups recorded for a target, oldest first.
	List(target string) ([]string, error)
}

// RunLedger persists optimization run history on the local filesystem.
type RunLedger interface {
	// Record stores a run and returns its ledger ID.
	Record(rec RunRecord) (int64, error)

	// LastRun returns the most recent run, or nil if none recorded.
	LastRun() (*RunRecord, error)

	Close() error
}
