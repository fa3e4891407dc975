package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
	"github.com/yxrobot/device-monitor/internal/storage"
)

const (
	defaultPageSize   = 20
	defaultQueryLimit = 50
	statsMaxKeys      = 32
)

// PagedAlerts is one page of a filtered alert listing.
type PagedAlerts struct {
	Items      []*model.Alert `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int            `json:"total_pages"`
}

// AlertService is the single authority over alert state transitions. The
// scheduler and operator-facing callers both go through it, concurrently.
//
// Failure semantics follow two tracks. Query methods never fail: on a
// storage error they log and return an empty, well-formed result so a
// storage hiccup degrades the monitoring view to "no data". Mutating
// methods log and return their zero outcome (nil/false/0); the next
// scheduled pass is the retry. Only contract violations (missing device id,
// empty id list, undefined level) surface as errors.
type AlertService struct {
	logger *zap.Logger
	store  storage.AlertStore
	stats  *queryStats
}

// NewAlertService creates the lifecycle service over the given store.
func NewAlertService(logger *zap.Logger, store storage.AlertStore) *AlertService {
	return &AlertService{
		logger: logger.Named("alert-service"),
		store:  store,
		stats:  newQueryStats(statsMaxKeys),
	}
}

// CreateAlert records a rule breach for a device. When an unresolved alert
// with the same (device, type) already exists the new detection is
// suppressed: the existing record is returned unchanged and created is
// false. The duplicate check and the insert are one conditional statement
// in the store, so concurrent detections cannot both write.
func (s *AlertService) CreateAlert(ctx context.Context, deviceID string, level model.AlertLevel, alertType model.AlertType, message string) (*model.Alert, bool, error) {
	s.stats.record("create_alert")

	if strings.TrimSpace(deviceID) == "" {
		return nil, false, ErrDeviceIDRequired
	}
	if !level.Valid() {
		return nil, false, ErrInvalidLevel
	}

	alert := &model.Alert{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Level:     level,
		Type:      alertType,
		Message:   message,
		CreatedAt: time.Now(),
	}

	inserted, err := s.store.Insert(ctx, alert)
	if err != nil {
		s.logger.Error("Failed to create alert",
			zap.String("device_id", deviceID),
			zap.String("type", string(alertType)),
			zap.Error(err))
		return nil, false, nil
	}

	if inserted {
		s.logger.Info("Alert created",
			zap.String("id", alert.ID),
			zap.String("device_id", deviceID),
			zap.String("level", string(level)),
			zap.String("type", string(alertType)))
		return alert, true, nil
	}

	existing, err := s.store.FindUnresolved(ctx, deviceID, alertType)
	if err != nil {
		s.logger.Error("Failed to load suppressing alert",
			zap.String("device_id", deviceID),
			zap.String("type", string(alertType)),
			zap.Error(err))
		return nil, false, nil
	}
	if existing == nil {
		// The conflicting row was resolved between the insert and this
		// read. The next pass will create a fresh record.
		s.logger.Warn("Suppressed alert disappeared before read",
			zap.String("device_id", deviceID),
			zap.String("type", string(alertType)))
		return nil, false, nil
	}

	s.logger.Debug("Duplicate alert suppressed",
		zap.String("id", existing.ID),
		zap.String("device_id", deviceID),
		zap.String("type", string(alertType)))
	return existing, false, nil
}

// ResolveAlert marks one alert resolved by the given operator. It returns
// false when the alert does not exist, is already resolved, or the write
// fails; resolution never reopens and resolvedBy/resolvedAt are never
// overwritten.
func (s *AlertService) ResolveAlert(ctx context.Context, alertID, resolvedBy string) bool {
	s.stats.record("resolve_alert")

	resolved, err := s.store.Resolve(ctx, alertID, resolvedBy, time.Now())
	if err != nil {
		s.logger.Error("Failed to resolve alert",
			zap.String("alert_id", alertID),
			zap.Error(err))
		return false
	}

	if resolved {
		s.logger.Info("Alert resolved",
			zap.String("alert_id", alertID),
			zap.String("resolved_by", resolvedBy))
	} else {
		s.logger.Warn("Alert not resolved: unknown or already resolved",
			zap.String("alert_id", alertID))
	}
	return resolved
}

// BatchResolveAlerts resolves every currently open alert in ids and returns
// how many transitioned. Already-resolved and unknown ids are skipped
// silently. An empty id list is a contract violation.
func (s *AlertService) BatchResolveAlerts(ctx context.Context, alertIDs []string, resolvedBy string) (int, error) {
	s.stats.record("batch_resolve")

	if len(alertIDs) == 0 {
		return 0, ErrNoAlertIDs
	}

	count, err := s.store.BatchResolve(ctx, alertIDs, resolvedBy, time.Now())
	if err != nil {
		s.logger.Error("Failed to batch resolve alerts",
			zap.Int("requested", len(alertIDs)),
			zap.Error(err))
		return 0, nil
	}

	s.logger.Info("Batch resolved alerts",
		zap.Int("requested", len(alertIDs)),
		zap.Int("resolved", count),
		zap.String("resolved_by", resolvedBy))
	return count, nil
}

// AutoResolveExpiredAlerts resolves open alerts of the given level older
// than expireHours on behalf of the system. Re-running with the same
// arguments finds nothing left to resolve.
func (s *AlertService) AutoResolveExpiredAlerts(ctx context.Context, expireHours int, level model.AlertLevel) int {
	s.stats.record("auto_resolve")

	if !level.Valid() {
		s.logger.Warn("Auto-resolve skipped: invalid level", zap.String("level", string(level)))
		return 0
	}

	cutoff := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	count, err := s.store.AutoResolveBefore(ctx, level, cutoff, model.SystemResolver)
	if err != nil {
		s.logger.Error("Failed to auto-resolve expired alerts",
			zap.Int("expire_hours", expireHours),
			zap.String("level", string(level)),
			zap.Error(err))
		return 0
	}

	if count > 0 {
		s.logger.Info("Auto-resolved expired alerts",
			zap.Int("expire_hours", expireHours),
			zap.String("level", string(level)),
			zap.Int("resolved", count))
	}
	return count
}

// CleanupResolvedAlerts permanently deletes resolved alerts whose
// resolution is older than retentionDays. Open alerts are never touched,
// whatever their age.
func (s *AlertService) CleanupResolvedAlerts(ctx context.Context, retentionDays int) int {
	s.stats.record("cleanup")

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	count, err := s.store.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to clean up resolved alerts",
			zap.Int("retention_days", retentionDays),
			zap.Error(err))
		return 0
	}

	s.logger.Info("Cleaned up resolved alerts",
		zap.Int("retention_days", retentionDays),
		zap.Int("deleted", count))
	return count
}

// GetAlerts returns one page of alerts matching the filters, newest first.
func (s *AlertService) GetAlerts(ctx context.Context, page, size int, filters storage.AlertFilters) *PagedAlerts {
	s.stats.record("get_alerts")

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}

	result := &PagedAlerts{Items: []*model.Alert{}, Page: page, Size: size}

	total, err := s.store.Count(ctx, filters)
	if err != nil {
		s.logger.Error("Failed to count alerts", zap.Error(err))
		return result
	}

	items, err := s.store.List(ctx, filters, (page-1)*size, size)
	if err != nil {
		s.logger.Error("Failed to list alerts", zap.Error(err))
		return result
	}

	if items != nil {
		result.Items = items
	}
	result.Total = total
	result.TotalPages = (total + size - 1) / size
	return result
}

// GetAlertsByDevice returns the newest alerts for one device.
func (s *AlertService) GetAlertsByDevice(ctx context.Context, deviceID string, limit int) []*model.Alert {
	s.stats.record("get_by_device")

	alerts, err := s.store.ListByDevice(ctx, deviceID, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list alerts by device",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return []*model.Alert{}
	}
	return alerts
}

// GetAlertsByLevel returns the newest alerts of one level.
func (s *AlertService) GetAlertsByLevel(ctx context.Context, level model.AlertLevel, limit int) []*model.Alert {
	s.stats.record("get_by_level")

	alerts, err := s.store.ListByLevel(ctx, level, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list alerts by level",
			zap.String("level", string(level)),
			zap.Error(err))
		return []*model.Alert{}
	}
	return alerts
}

// GetUnresolvedAlerts returns the newest open alerts.
func (s *AlertService) GetUnresolvedAlerts(ctx context.Context, limit int) []*model.Alert {
	s.stats.record("get_unresolved")

	alerts, err := s.store.ListUnresolved(ctx, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list unresolved alerts", zap.Error(err))
		return []*model.Alert{}
	}
	return alerts
}

// GetRecentAlerts returns alerts created within the last N hours.
func (s *AlertService) GetRecentAlerts(ctx context.Context, hours, limit int) []*model.Alert {
	s.stats.record("get_recent")

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	alerts, err := s.store.ListRecent(ctx, since, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("Failed to list recent alerts",
			zap.Int("hours", hours),
			zap.Error(err))
		return []*model.Alert{}
	}
	return alerts
}

// GetAlertStatistics returns alert counts grouped by level.
func (s *AlertService) GetAlertStatistics(ctx context.Context) map[model.AlertLevel]int {
	s.stats.record("statistics")

	counts, err := s.store.CountByLevel(ctx)
	if err != nil {
		s.logger.Error("Failed to get alert statistics", zap.Error(err))
		return map[model.AlertLevel]int{}
	}
	return counts
}

// GetDeviceAlertStatistics returns alert counts grouped by level for one
// device.
func (s *AlertService) GetDeviceAlertStatistics(ctx context.Context, deviceID string) map[model.AlertLevel]int {
	s.stats.record("device_statistics")

	counts, err := s.store.CountByLevelForDevice(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to get device alert statistics",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return map[model.AlertLevel]int{}
	}
	return counts
}

// GetAlertTrend returns daily alert counts between two instants.
func (s *AlertService) GetAlertTrend(ctx context.Context, start, end time.Time) []storage.TrendPoint {
	s.stats.record("trend")

	points, err := s.store.Trend(ctx, start, end)
	if err != nil {
		s.logger.Error("Failed to get alert trend", zap.Error(err))
		return []storage.TrendPoint{}
	}
	return points
}

// QueryStats returns a snapshot of per-operation call counts.
func (s *AlertService) QueryStats() map[string]int64 {
	return s.stats.snapshot()
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return defaultQueryLimit
	}
	return limit
}
