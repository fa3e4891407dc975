package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "device-monitor", cfg.App.Name)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "device_monitor.db", cfg.Database.DSN)

	assert.Equal(t, 85.0, cfg.Thresholds.HighCPU)
	assert.Equal(t, 90.0, cfg.Thresholds.HighMemory)
	assert.Equal(t, 85.0, cfg.Thresholds.HighDisk)
	assert.Equal(t, 75.0, cfg.Thresholds.HighTemperature)
	assert.Equal(t, 85.0, cfg.Thresholds.CriticalTemp)
	assert.Equal(t, 20.0, cfg.Thresholds.LowBattery)
	assert.Equal(t, 10.0, cfg.Thresholds.CriticalBattery)
	assert.Equal(t, 30, cfg.Thresholds.LowSignal)
	assert.Equal(t, 200, cfg.Thresholds.HighLatencyMs)
	assert.Equal(t, 1.0, cfg.Thresholds.LowSpeedMbps)
	assert.Equal(t, 2*time.Hour, cfg.Thresholds.OfflineGracePeriod)

	assert.Equal(t, "*/5 * * * *", cfg.Schedule.PerformanceCron)
	assert.Equal(t, "0 2 * * *", cfg.Schedule.MaintenanceCron)

	assert.Equal(t, 50, cfg.Alerts.BatchLimit)
	assert.Equal(t, 24, cfg.Alerts.AutoResolveHours)
	assert.Equal(t, 30, cfg.Alerts.RetentionDays)
	assert.True(t, cfg.Alerts.CleanupEnabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  driver: postgres
  dsn: "host=localhost dbname=monitor sslmode=disable"
thresholds:
  high_cpu: 95.0
  offline_grace_period: 1h
schedule:
  performance_cron: "*/1 * * * *"
alerts:
  cleanup_enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 95.0, cfg.Thresholds.HighCPU)
	assert.Equal(t, time.Hour, cfg.Thresholds.OfflineGracePeriod)
	assert.Equal(t, "*/1 * * * *", cfg.Schedule.PerformanceCron)
	assert.False(t, cfg.Alerts.CleanupEnabled)

	// Values the file omits keep their defaults.
	assert.Equal(t, 90.0, cfg.Thresholds.HighMemory)
	assert.Equal(t, 24, cfg.Alerts.AutoResolveHours)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
