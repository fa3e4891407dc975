package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
)

// TelemetryStore is the read-only view over the telemetry tables written by
// the external collector. The monitoring engine never writes these tables.
type TelemetryStore interface {
	// PerformanceBreaching returns the latest performance sample per device
	// for devices whose latest sample crosses any performance threshold.
	PerformanceBreaching(ctx context.Context, t model.Thresholds, limit int) ([]*model.PerformanceSample, error)

	// NetworkBreaching returns the latest network sample per device for
	// devices whose latest sample crosses any network threshold.
	NetworkBreaching(ctx context.Context, t model.Thresholds, limit int) ([]*model.NetworkSample, error)

	// DevicesByStatus returns devices currently in the given status, with
	// their serial numbers for message text.
	DevicesByStatus(ctx context.Context, status model.DeviceStatus, limit int) ([]*model.StatusSample, error)
}

// SQLTelemetryStore implements TelemetryStore over the shared database
// handle.
type SQLTelemetryStore struct {
	logger  *zap.Logger
	db      *sql.DB
	dialect dialect
}

// NewSQLTelemetryStore creates a telemetry reader bound to db and ensures
// the telemetry tables exist so a fresh deployment starts clean.
func NewSQLTelemetryStore(logger *zap.Logger, db *sql.DB, driver string) (*SQLTelemetryStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	store := &SQLTelemetryStore{
		logger:  logger.Named("telemetry-store"),
		db:      db,
		dialect: d,
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLTelemetryStore) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS device_performance (
			device_id TEXT NOT NULL,
			cpu_usage REAL NOT NULL,
			memory_usage REAL NOT NULL,
			disk_usage REAL NOT NULL,
			temperature REAL NOT NULL,
			battery_level REAL NOT NULL,
			sampled_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_performance_device
			ON device_performance(device_id, sampled_at)`,
		`CREATE TABLE IF NOT EXISTS device_network (
			device_id TEXT NOT NULL,
			signal_strength INTEGER NOT NULL,
			ping_latency INTEGER NOT NULL,
			download_speed REAL NOT NULL,
			upload_speed REAL NOT NULL,
			sampled_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_network_device
			ON device_network(device_id, sampled_at)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			serial_number TEXT NOT NULL,
			status TEXT NOT NULL,
			last_online_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize telemetry schema: %w", err)
		}
	}
	return nil
}

// PerformanceBreaching implements TelemetryStore.PerformanceBreaching.
func (s *SQLTelemetryStore) PerformanceBreaching(ctx context.Context, t model.Thresholds, limit int) ([]*model.PerformanceSample, error) {
	query := `
		SELECT p.device_id, p.cpu_usage, p.memory_usage, p.disk_usage,
		       p.temperature, p.battery_level, p.sampled_at
		FROM device_performance p
		JOIN (
			SELECT device_id, MAX(sampled_at) AS latest
			FROM device_performance
			GROUP BY device_id
		) l ON p.device_id = l.device_id AND p.sampled_at = l.latest
		WHERE p.cpu_usage >= ?
		   OR p.memory_usage >= ?
		   OR p.disk_usage >= ?
		   OR p.temperature >= ?
		   OR p.battery_level <= ?
		ORDER BY p.device_id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query),
		t.HighCPU, t.HighMemory, t.HighDisk, t.HighTemperature, t.LowBattery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaching performance samples: %w", err)
	}
	defer rows.Close()

	var samples []*model.PerformanceSample
	for rows.Next() {
		sample := &model.PerformanceSample{}
		if err := rows.Scan(
			&sample.DeviceID,
			&sample.CPUUsage,
			&sample.MemoryUsage,
			&sample.DiskUsage,
			&sample.Temperature,
			&sample.Battery,
			&sample.SampledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan performance sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return samples, nil
}

// NetworkBreaching implements TelemetryStore.NetworkBreaching.
func (s *SQLTelemetryStore) NetworkBreaching(ctx context.Context, t model.Thresholds, limit int) ([]*model.NetworkSample, error) {
	query := `
		SELECT n.device_id, n.signal_strength, n.ping_latency,
		       n.download_speed, n.upload_speed, n.sampled_at
		FROM device_network n
		JOIN (
			SELECT device_id, MAX(sampled_at) AS latest
			FROM device_network
			GROUP BY device_id
		) l ON n.device_id = l.device_id AND n.sampled_at = l.latest
		WHERE n.signal_strength <= ?
		   OR n.ping_latency >= ?
		   OR n.download_speed <= ?
		ORDER BY n.device_id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query),
		t.LowSignal, t.HighLatencyMs, t.LowSpeedMbps, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaching network samples: %w", err)
	}
	defer rows.Close()

	var samples []*model.NetworkSample
	for rows.Next() {
		sample := &model.NetworkSample{}
		if err := rows.Scan(
			&sample.DeviceID,
			&sample.SignalStrength,
			&sample.PingLatency,
			&sample.DownloadSpeed,
			&sample.UploadSpeed,
			&sample.SampledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan network sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return samples, nil
}

// DevicesByStatus implements TelemetryStore.DevicesByStatus.
func (s *SQLTelemetryStore) DevicesByStatus(ctx context.Context, status model.DeviceStatus, limit int) ([]*model.StatusSample, error) {
	query := `
		SELECT id, serial_number, status, last_online_at
		FROM devices
		WHERE status = ?
		ORDER BY id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices by status: %w", err)
	}
	defer rows.Close()

	var samples []*model.StatusSample
	for rows.Next() {
		sample := &model.StatusSample{}
		var deviceStatus string
		var lastOnline sql.NullTime
		if err := rows.Scan(
			&sample.DeviceID,
			&sample.SerialNumber,
			&deviceStatus,
			&lastOnline,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device status: %w", err)
		}
		sample.Status = model.DeviceStatus(deviceStatus)
		if lastOnline.Valid {
			sample.LastOnlineAt = &lastOnline.Time
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return samples, nil
}
