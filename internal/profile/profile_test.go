package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Nerds489/ubuntu-tools/internal/config"
	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

func fpWithMemory(totalMB uint64) domain.HostFingerprint {
	return domain.HostFingerprint{TotalMemoryMB: totalMB}
}

func TestDeriveBands(t *testing.T) {
	tests := []struct {
		name     string
		totalMB  uint64
		expected domain.ProfileName
	}{
		{"tiny host", 512, domain.ProfileMinimal},
		{"2GB boundary stays in lower band", 2048, domain.ProfileMinimal},
		{"just above 2GB", 2049, domain.ProfileLow},
		{"4GB boundary stays in lower band", 4096, domain.ProfileLow},
		{"just above 4GB", 4097, domain.ProfileMedium},
		{"8GB boundary stays in lower band", 8192, domain.ProfileMedium},
		{"just above 8GB", 8193, domain.ProfileHigh},
		{"16GB boundary stays in lower band", 16384, domain.ProfileHigh},
		{"just above 16GB", 16385, domain.ProfileExtreme},
		{"huge host", 262144, domain.ProfileExtreme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Derive(fpWithMemory(tt.totalMB))
			assert.Equal(t, tt.expected, p.Name)
		})
	}
}

func TestDeriveIsPureInTotalMemory(t *testing.T) {
	// Only total memory may influence the base mapping.
	base := Derive(fpWithMemory(4096))
	loaded := Derive(domain.HostFingerprint{
		TotalMemoryMB:    4096,
		StorageClass:     domain.StorageHDD,
		IsLaptop:         true,
		IsVirtualMachine: true,
		GPUVendor:        domain.GPUNvidia,
		CPUCores:         32,
	})
	assert.Equal(t, base, loaded)
}

func TestSwappinessAndCachePressureMonotonic(t *testing.T) {
	sizes := []uint64{1024, 3072, 6144, 12288, 32768}
	prev := Derive(fpWithMemory(sizes[0]))
	for _, mb := range sizes[1:] {
		p := Derive(fpWithMemory(mb))
		assert.LessOrEqual(t, p.Swappiness, prev.Swappiness,
			"swappiness must not grow with RAM (at %d MB)", mb)
		assert.LessOrEqual(t, p.VFSCachePressure, prev.VFSCachePressure,
			"cache pressure must not grow with RAM (at %d MB)", mb)
		prev = p
	}
}

func TestZRAMOnlyBelowExtreme(t *testing.T) {
	assert.True(t, Derive(fpWithMemory(2048)).ZRAMEnabled)
	assert.True(t, Derive(fpWithMemory(16384)).ZRAMEnabled)
	assert.False(t, Derive(fpWithMemory(16385)).ZRAMEnabled)
	assert.Zero(t, Derive(fpWithMemory(32768)).ZRAMSizeMB)
}

func TestSchedulerForIndependentOfMemory(t *testing.T) {
	tests := []struct {
		class    domain.StorageClass
		expected string
	}{
		{domain.StorageNVMe, "none"},
		{domain.StorageSSD, "none"},
		{domain.StorageHDD, "mq-deadline"},
		{domain.StorageUnknown, "mq-deadline"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SchedulerFor(tt.class), "class %s", tt.class)
	}
}

func TestGovernorFor(t *testing.T) {
	assert.Equal(t, "schedutil", GovernorFor(true))
	assert.Equal(t, "performance", GovernorFor(false))
}

func TestThresholdPolicyHalvedForLowMemoryHosts(t *testing.T) {
	cfg := config.Config{
		ReaperMemPercent:  10,
		ReaperSwapPercent: 10,
		LowMemoryCutoffMB: 8192,
		ReaperInterval:    2 * time.Second,
		GuardianInterval:  time.Minute,
	}

	low := ThresholdPolicyFor(fpWithMemory(8192), cfg)
	assert.Equal(t, 5.0, low.MemKillPercent)
	assert.Equal(t, 5.0, low.SwapKillPercent)

	big := ThresholdPolicyFor(fpWithMemory(8193), cfg)
	assert.Equal(t, 10.0, big.MemKillPercent)
	assert.Equal(t, 10.0, big.SwapKillPercent)
}

func TestThresholdPolicyCutoffConfigurable(t *testing.T) {
	cfg := config.Config{
		ReaperMemPercent:  10,
		ReaperSwapPercent: 10,
		LowMemoryCutoffMB: 4096,
	}

	p := ThresholdPolicyFor(fpWithMemory(8192), cfg)
	assert.Equal(t, 10.0, p.MemKillPercent, "above a lowered cutoff the thresholds stay put")
}
