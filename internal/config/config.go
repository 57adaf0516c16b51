// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable constant of the tool. The defense thresholds
// mirror the shipped defaults but are deliberately overridable: the 8 GB
// low-memory cutoff and the kill percentages are heuristics, not
// authoritative numbers.
type Config struct {
	BackupRoot  string `env:"UBUNTU_TOOLS_BACKUP_ROOT" envDefault:"/var/backups/ubuntu-tools"`
	DataDir     string `env:"UBUNTU_TOOLS_DATA_DIR" envDefault:"/var/lib/ubuntu-tools"`
	LogPath     string `env:"UBUNTU_TOOLS_LOG" envDefault:"/var/log/ubuntu-tools.log"`
	MetricsAddr string `env:"UBUNTU_TOOLS_METRICS_ADDR"`

	// Reaper (tier 2) thresholds, in percent. Both are halved when total
	// memory is at or below LowMemoryCutoffMB.
	ReaperMemPercent  float64 `env:"UBUNTU_TOOLS_REAPER_MEM_PERCENT" envDefault:"10"`
	ReaperSwapPercent float64 `env:"UBUNTU_TOOLS_REAPER_SWAP_PERCENT" envDefault:"10"`
	LowMemoryCutoffMB uint64  `env:"UBUNTU_TOOLS_LOW_MEMORY_CUTOFF_MB" envDefault:"8192"`

	ReaperInterval   time.Duration `env:"UBUNTU_TOOLS_REAPER_INTERVAL" envDefault:"2s"`
	GuardianInterval time.Duration `env:"UBUNTU_TOOLS_GUARDIAN_INTERVAL" envDefault:"60s"`

	// Guardian (tier 3) watermarks, in used-memory percent.
	HighWatermark     float64 `env:"UBUNTU_TOOLS_HIGH_WATERMARK" envDefault:"85"`
	CriticalWatermark float64 `env:"UBUNTU_TOOLS_CRITICAL_WATERMARK" envDefault:"95"`

	// Emergency cleanup terminates applications only above this.
	EmergencyWatermark float64 `env:"UBUNTU_TOOLS_EMERGENCY_WATERMARK" envDefault:"90"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
