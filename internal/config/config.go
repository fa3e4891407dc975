package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the monitoring engine configuration loaded from config.yaml.
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`

	Database struct {
		// Driver is "sqlite3" or "postgres".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	// Thresholds tune rule sensitivity without touching evaluation logic.
	Thresholds struct {
		HighCPU            float64       `mapstructure:"high_cpu"`
		HighMemory         float64       `mapstructure:"high_memory"`
		HighDisk           float64       `mapstructure:"high_disk"`
		HighTemperature    float64       `mapstructure:"high_temperature"`
		CriticalTemp       float64       `mapstructure:"critical_temperature"`
		LowBattery         float64       `mapstructure:"low_battery"`
		CriticalBattery    float64       `mapstructure:"critical_battery"`
		LowSignal          int           `mapstructure:"low_signal"`
		HighLatencyMs      int           `mapstructure:"high_latency_ms"`
		LowSpeedMbps       float64       `mapstructure:"low_speed_mbps"`
		OfflineGracePeriod time.Duration `mapstructure:"offline_grace_period"`
	} `mapstructure:"thresholds"`

	Schedule struct {
		PerformanceCron string `mapstructure:"performance_cron"`
		NetworkCron     string `mapstructure:"network_cron"`
		StatusCron      string `mapstructure:"status_cron"`
		MaintenanceCron string `mapstructure:"maintenance_cron"`
	} `mapstructure:"schedule"`

	Alerts struct {
		// BatchLimit caps how many breaching devices one pass examines.
		BatchLimit int `mapstructure:"batch_limit"`
		// AutoResolveHours is the age after which open INFO alerts are
		// resolved by the daily maintenance pass.
		AutoResolveHours int `mapstructure:"auto_resolve_hours"`
		// RetentionDays is the age after which resolved alerts are purged.
		RetentionDays int `mapstructure:"retention_days"`
		// CleanupEnabled controls whether maintenance also purges old
		// resolved alerts after auto-resolve.
		CleanupEnabled bool `mapstructure:"cleanup_enabled"`
	} `mapstructure:"alerts"`
}

// Load reads config.yaml from the given path and applies defaults for any
// value the file omits.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "device-monitor")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "device_monitor.db")

	v.SetDefault("thresholds.high_cpu", 85.0)
	v.SetDefault("thresholds.high_memory", 90.0)
	v.SetDefault("thresholds.high_disk", 85.0)
	v.SetDefault("thresholds.high_temperature", 75.0)
	v.SetDefault("thresholds.critical_temperature", 85.0)
	v.SetDefault("thresholds.low_battery", 20.0)
	v.SetDefault("thresholds.critical_battery", 10.0)
	v.SetDefault("thresholds.low_signal", 30)
	v.SetDefault("thresholds.high_latency_ms", 200)
	v.SetDefault("thresholds.low_speed_mbps", 1.0)
	v.SetDefault("thresholds.offline_grace_period", 2*time.Hour)

	v.SetDefault("schedule.performance_cron", "*/5 * * * *")
	v.SetDefault("schedule.network_cron", "*/10 * * * *")
	v.SetDefault("schedule.status_cron", "*/30 * * * *")
	v.SetDefault("schedule.maintenance_cron", "0 2 * * *")

	v.SetDefault("alerts.batch_limit", 50)
	v.SetDefault("alerts.auto_resolve_hours", 24)
	v.SetDefault("alerts.retention_days", 30)
	v.SetDefault("alerts.cleanup_enabled", true)
}
