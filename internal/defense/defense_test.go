package defense

import (
	"time"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// scriptedMemory replays a fixed sequence of snapshots, holding the
// last one once the script runs out.
type scriptedMemory struct {
	stats []domain.MemoryStats
	idx   int
	err   error
}

func (s *scriptedMemory) Snapshot() (domain.MemoryStats, error) {
	if s.err != nil {
		return domain.MemoryStats{}, s.err
	}
	if s.idx >= len(s.stats) {
		return s.stats[len(s.stats)-1], nil
	}
	st := s.stats[s.idx]
	s.idx++
	return st, nil
}

func usage(usedPercent float64) domain.MemoryStats {
	return domain.MemoryStats{
		TotalMB:          16384,
		AvailableMB:      uint64(16384 * (100 - usedPercent) / 100),
		UsedPercent:      usedPercent,
		AvailablePercent: 100 - usedPercent,
		SwapTotalMB:      4096,
		SwapFreeMB:       2048,
		SwapFreePercent:  50,
	}
}

// fakeProcs is an in-memory process table recording kills.
type fakeProcs struct {
	procs   []domain.ProcessInfo
	killed  []int
	killErr error
}

func (f *fakeProcs) List() ([]domain.ProcessInfo, error) { return f.procs, nil }

func (f *fakeProcs) Kill(pid int) error {
	if f.killErr != nil {
		return f.killErr
	}
	f.killed = append(f.killed, pid)
	// Killed processes drop out of later scans.
	remaining := f.procs[:0]
	for _, p := range f.procs {
		if p.PID != pid {
			remaining = append(remaining, p)
		}
	}
	f.procs = remaining
	return nil
}

func (f *fakeProcs) IsRunning(pid int) bool {
	for _, p := range f.procs {
		if p.PID == pid {
			return true
		}
	}
	return false
}

func testPolicy() domain.ThresholdPolicy {
	return domain.ThresholdPolicy{
		MemKillPercent:     10,
		SwapKillPercent:    10,
		LowMemoryCutoffMB:  8192,
		ReaperInterval:     10 * time.Millisecond,
		GuardianInterval:   10 * time.Millisecond,
		HighWatermark:      85,
		CriticalWatermark:  95,
		EmergencyWatermark: 90,
		ProtectedProcesses: []string{"systemd", "sshd", "Xorg", "gnome-shell"},
		PreferredVictims:   []string{"chrome", "firefox", "electron"},
		EmergencyVictims:   []string{"slack", "chrome", "firefox"},
	}
}
