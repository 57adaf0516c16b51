package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/backups/ubuntu-tools", cfg.BackupRoot)
	assert.Equal(t, "/var/lib/ubuntu-tools", cfg.DataDir)
	assert.Equal(t, 10.0, cfg.ReaperMemPercent)
	assert.Equal(t, uint64(8192), cfg.LowMemoryCutoffMB)
	assert.Equal(t, 2*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 60*time.Second, cfg.GuardianInterval)
	assert.Equal(t, 85.0, cfg.HighWatermark)
	assert.Equal(t, 95.0, cfg.CriticalWatermark)
	assert.Equal(t, 90.0, cfg.EmergencyWatermark)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UBUNTU_TOOLS_BACKUP_ROOT", "/mnt/backups")
	t.Setenv("UBUNTU_TOOLS_LOW_MEMORY_CUTOFF_MB", "4096")
	t.Setenv("UBUNTU_TOOLS_REAPER_INTERVAL", "500ms")
	t.Setenv("UBUNTU_TOOLS_HIGH_WATERMARK", "80")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/mnt/backups", cfg.BackupRoot)
	assert.Equal(t, uint64(4096), cfg.LowMemoryCutoffMB)
	assert.Equal(t, 500*time.Millisecond, cfg.ReaperInterval)
	assert.Equal(t, 80.0, cfg.HighWatermark)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("UBUNTU_TOOLS_REAPER_MEM_PERCENT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
