package domain

import "fmt"

// DetectionError means no readable memory-accounting source exists.
// Fatal: nothing downstream can proceed without the memory size.
type DetectionError struct {
	Source string
	Err    error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection failed for %s: %v", e.Source, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// BackupError means a backup could not be written before mutating a target.
// Fatal for that mutation: an unverified rollback path is unacceptable.
type BackupError struct {
	Target string
	Err    error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.Target, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// VerificationError means a written value did not take effect: the bytes
// read back from the target differ from what was written.
type VerificationError struct {
	Target string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: read-back differs from written content", e.Target)
}

// ActivationDeferred means a change was written and verified but requires
// a reboot to take effect. Non-fatal; surfaced to the operator.
type ActivationDeferred struct {
	Target string
	Reason string
}

func (e *ActivationDeferred) Error() string {
	return fmt.Sprintf("activation of %s deferred until reboot: %s", e.Target, e.Reason)
}

// PackageUnavailable means an optional tool could not be installed.
// Recoverable: skip that tool, warn, continue.
type PackageUnavailable struct {
	Package string
	Err     error
}

func (e *PackageUnavailable) Error() string {
	return fmt.Sprintf("package %s unavailable: %v", e.Package, e.Err)
}

func (e *PackageUnavailable) Unwrap() error { return e.Err }

// SupervisorDegraded means one defense tier could not start. Non-fatal:
// defense is layered and partial coverage is acceptable.
type SupervisorDegraded struct {
	Tier string
	Err  error
}

func (e *SupervisorDegraded) Error() string {
	return fmt.Sprintf("defense tier %s degraded: %v", e.Tier, e.Err)
}

func (e *SupervisorDegraded) Unwrap() error { return e.Err }
