package defense

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/infra"
)

func TestTierForWatermarks(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		usedPercent float64
		expected    domain.PressureTier
	}{
		{0, domain.TierNormal},
		{85, domain.TierNormal}, // watermark itself is not a breach
		{85.1, domain.TierHigh},
		{95, domain.TierHigh},
		{95.1, domain.TierCritical},
		{100, domain.TierCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TierFor(tt.usedPercent, policy),
			"used=%.1f", tt.usedPercent)
	}
}

func TestGuardianEscalatesAndRecovers(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{
		usage(80), usage(90), usage(97), usage(80),
	}}
	g := NewGuardian(mem, infra.NewFileStoreWithRoot(t.TempDir()), testPolicy(), nil, zap.NewNop())

	var tiers []domain.PressureTier
	g.OnEvent(func(ev domain.MemoryPressureEvent) {
		tiers = append(tiers, ev.Tier)
	})

	for i := 0; i < 4; i++ {
		g.cycle()
	}

	assert.Equal(t, []domain.PressureTier{
		domain.TierNormal, domain.TierHigh, domain.TierCritical, domain.TierNormal,
	}, tiers)
}

func TestGuardianJumpsStraightToCritical(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(80), usage(97)}}
	g := NewGuardian(mem, infra.NewFileStoreWithRoot(t.TempDir()), testPolicy(), nil, zap.NewNop())

	var tiers []domain.PressureTier
	g.OnEvent(func(ev domain.MemoryPressureEvent) {
		tiers = append(tiers, ev.Tier)
	})

	g.cycle()
	g.cycle()

	assert.Equal(t, []domain.PressureTier{domain.TierNormal, domain.TierCritical}, tiers,
		"a reading past both watermarks lands on CRITICAL without stepping through HIGH")
}

func TestGuardianHighDropsPageCacheOnly(t *testing.T) {
	files := infra.NewFileStoreWithRoot(t.TempDir())
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(90)}}
	g := NewGuardian(mem, files, testPolicy(), nil, zap.NewNop())

	g.cycle()

	data, err := files.ReadFile(dropCachesPath)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(data)))
	assert.False(t, files.Exists(compactMemoryPath), "HIGH must not compact")
}

func TestGuardianCriticalDropsAllAndCompacts(t *testing.T) {
	files := infra.NewFileStoreWithRoot(t.TempDir())
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(97)}}
	g := NewGuardian(mem, files, testPolicy(), nil, zap.NewNop())

	g.cycle()

	drop, err := files.ReadFile(dropCachesPath)
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(string(drop)))

	compact, err := files.ReadFile(compactMemoryPath)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(compact)))
}

func TestGuardianNormalTouchesNothing(t *testing.T) {
	files := infra.NewFileStoreWithRoot(t.TempDir())
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(50)}}
	g := NewGuardian(mem, files, testPolicy(), nil, zap.NewNop())

	g.cycle()

	assert.False(t, files.Exists(dropCachesPath))
	assert.False(t, files.Exists(compactMemoryPath))
}

func TestGuardianEventCarriesAction(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(97)}}
	g := NewGuardian(mem, infra.NewFileStoreWithRoot(t.TempDir()), testPolicy(), nil, zap.NewNop())

	var got domain.MemoryPressureEvent
	g.OnEvent(func(ev domain.MemoryPressureEvent) { got = ev })

	g.cycle()

	assert.Equal(t, domain.TierCritical, got.Tier)
	assert.Contains(t, got.ActionTaken, "compacted memory")
	assert.False(t, got.ObservedAt.IsZero())
}
