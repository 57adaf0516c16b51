package infra

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// GopsutilMemoryReader implements domain.MemoryReader.
type GopsutilMemoryReader struct{}

// NewMemoryReader creates a memory reader backed by gopsutil.
func NewMemoryReader() *GopsutilMemoryReader {
	return &GopsutilMemoryReader{}
}

// Snapshot reads current memory and swap usage.
func (r *GopsutilMemoryReader) Snapshot() (domain.MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return domain.MemoryStats{}, &domain.DetectionError{Source: "memory", Err: err}
	}
	swap, err := mem.SwapMemory()
	if err != nil {
		// Swap accounting failing is not fatal: report no swap.
		swap = &mem.SwapMemoryStat{}
	}

	stats := domain.MemoryStats{
		TotalMB:     vm.Total / 1024 / 1024,
		AvailableMB: vm.Available / 1024 / 1024,
		UsedPercent: vm.UsedPercent,
		SwapTotalMB: swap.Total / 1024 / 1024,
		SwapFreeMB:  swap.Free / 1024 / 1024,
	}
	if vm.Total > 0 {
		stats.AvailablePercent = float64(vm.Available) / float64(vm.Total) * 100
	}
	if swap.Total > 0 {
		stats.SwapFreePercent = float64(swap.Free) / float64(swap.Total) * 100
	} else {
		// No swap configured: treat as fully free so the reaper's swap
		// condition never fires on its own.
		stats.SwapFreePercent = 100
	}
	return stats, nil
}

// Ensure GopsutilMemoryReader implements domain.MemoryReader.
var _ domain.MemoryReader = (*GopsutilMemoryReader)(nil)
