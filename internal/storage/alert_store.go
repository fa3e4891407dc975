package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
)

// AlertFilters narrows alert listing and counting queries. Nil fields are
// not applied.
type AlertFilters struct {
	Level     *model.AlertLevel
	DeviceID  *string
	Resolved  *bool
	StartTime *time.Time
	EndTime   *time.Time
	// Keyword matches against the alert message and type.
	Keyword string
}

// TrendPoint is one daily bucket of the alert trend between two instants.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AlertStore defines the persistence surface for alert records. The alert
// lifecycle service is the only mutating caller.
type AlertStore interface {
	// Insert writes a new unresolved alert unless an unresolved alert with
	// the same (device, type) already exists. It reports whether a row was
	// written; on suppression no row changes.
	Insert(ctx context.Context, alert *model.Alert) (bool, error)

	// GetByID retrieves one alert, or nil when it does not exist.
	GetByID(ctx context.Context, id string) (*model.Alert, error)

	// FindUnresolved returns the open alert for (deviceID, alertType),
	// or nil when none exists.
	FindUnresolved(ctx context.Context, deviceID string, alertType model.AlertType) (*model.Alert, error)

	// List retrieves alerts matching the filters, newest first.
	List(ctx context.Context, filters AlertFilters, offset, limit int) ([]*model.Alert, error)

	// Count returns the number of alerts matching the filters.
	Count(ctx context.Context, filters AlertFilters) (int, error)

	// ListByDevice returns the newest alerts for one device.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.Alert, error)

	// ListByLevel returns the newest alerts of one level.
	ListByLevel(ctx context.Context, level model.AlertLevel, limit int) ([]*model.Alert, error)

	// ListUnresolved returns the newest open alerts.
	ListUnresolved(ctx context.Context, limit int) ([]*model.Alert, error)

	// ListRecent returns alerts created at or after since.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]*model.Alert, error)

	// Resolve marks one open alert resolved. It reports whether a row
	// transitioned; already-resolved and unknown ids report false.
	Resolve(ctx context.Context, id, resolvedBy string, resolvedAt time.Time) (bool, error)

	// BatchResolve applies Resolve to every open alert in ids and returns
	// the number of rows that transitioned.
	BatchResolve(ctx context.Context, ids []string, resolvedBy string, resolvedAt time.Time) (int, error)

	// AutoResolveBefore resolves every open alert of the given level
	// created before the cutoff and returns the number resolved.
	AutoResolveBefore(ctx context.Context, level model.AlertLevel, before time.Time, resolvedBy string) (int, error)

	// DeleteResolvedBefore permanently deletes resolved alerts whose
	// resolution predates the cutoff. Open alerts are never deleted.
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int, error)

	// CountByLevel returns alert counts grouped by level.
	CountByLevel(ctx context.Context) (map[model.AlertLevel]int, error)

	// CountByLevelForDevice returns alert counts grouped by level for one
	// device.
	CountByLevelForDevice(ctx context.Context, deviceID string) (map[model.AlertLevel]int, error)

	// Trend returns daily alert counts between two instants.
	Trend(ctx context.Context, start, end time.Time) ([]TrendPoint, error)
}

// SQLAlertStore implements AlertStore over database/sql for the supported
// engines.
type SQLAlertStore struct {
	logger  *zap.Logger
	db      *sql.DB
	dialect dialect
}

// NewSQLAlertStore creates an alert store bound to db and initializes the
// alert schema.
func NewSQLAlertStore(logger *zap.Logger, db *sql.DB, driver string) (*SQLAlertStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	store := &SQLAlertStore{
		logger:  logger.Named("alert-store"),
		db:      db,
		dialect: d,
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// initialize creates the alert table and its indexes. The partial unique
// index enforces the dedup invariant: at most one unresolved row per
// (device_id, alert_type).
func (s *SQLAlertStore) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS device_alerts (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			alert_level TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			alert_message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			is_resolved BOOLEAN NOT NULL,
			resolved_by TEXT,
			resolved_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_alerts_device ON device_alerts(device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_device_alerts_level ON device_alerts(alert_level)`,
		`CREATE INDEX IF NOT EXISTS idx_device_alerts_created ON device_alerts(created_at)`,
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_device_alerts_open
			ON device_alerts(device_id, alert_type) WHERE %s`, s.dialect.openAlert),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize alert schema: %w", err)
		}
	}
	return nil
}

// Insert implements AlertStore.Insert. The conflict target is the partial
// unique index, which makes the dedup check and the insert a single
// statement: concurrent detections of the same condition cannot both write.
func (s *SQLAlertStore) Insert(ctx context.Context, alert *model.Alert) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO device_alerts (
			id, device_id, alert_level, alert_type, alert_message, created_at, is_resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, alert_type) WHERE %s DO NOTHING`, s.dialect.openAlert)

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		alert.ID,
		alert.DeviceID,
		string(alert.Level),
		string(alert.Type),
		alert.Message,
		alert.CreatedAt,
		false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

const alertColumns = `id, device_id, alert_level, alert_type, alert_message, created_at, is_resolved, resolved_by, resolved_at`

// GetByID implements AlertStore.GetByID.
func (s *SQLAlertStore) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM device_alerts WHERE id = ?`
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), id)
	return s.scanAlert(row)
}

// FindUnresolved implements AlertStore.FindUnresolved.
func (s *SQLAlertStore) FindUnresolved(ctx context.Context, deviceID string, alertType model.AlertType) (*model.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM device_alerts
		WHERE device_id = ? AND alert_type = ? AND %s`, alertColumns, s.dialect.openAlert)
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), deviceID, string(alertType))
	return s.scanAlert(row)
}

// List implements AlertStore.List.
func (s *SQLAlertStore) List(ctx context.Context, filters AlertFilters, offset, limit int) ([]*model.Alert, error) {
	where, args := buildAlertWhere(filters)
	query := `SELECT ` + alertColumns + ` FROM device_alerts` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return s.queryAlerts(ctx, query, args...)
}

// Count implements AlertStore.Count.
func (s *SQLAlertStore) Count(ctx context.Context, filters AlertFilters) (int, error) {
	where, args := buildAlertWhere(filters)
	query := `SELECT COUNT(*) FROM device_alerts` + where

	var count int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// ListByDevice implements AlertStore.ListByDevice.
func (s *SQLAlertStore) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM device_alerts
		WHERE device_id = ? ORDER BY created_at DESC LIMIT ?`
	return s.queryAlerts(ctx, query, deviceID, limit)
}

// ListByLevel implements AlertStore.ListByLevel.
func (s *SQLAlertStore) ListByLevel(ctx context.Context, level model.AlertLevel, limit int) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM device_alerts
		WHERE alert_level = ? ORDER BY created_at DESC LIMIT ?`
	return s.queryAlerts(ctx, query, string(level), limit)
}

// ListUnresolved implements AlertStore.ListUnresolved.
func (s *SQLAlertStore) ListUnresolved(ctx context.Context, limit int) ([]*model.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM device_alerts
		WHERE %s ORDER BY created_at DESC LIMIT ?`, alertColumns, s.dialect.openAlert)
	return s.queryAlerts(ctx, query, limit)
}

// ListRecent implements AlertStore.ListRecent.
func (s *SQLAlertStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM device_alerts
		WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`
	return s.queryAlerts(ctx, query, since, limit)
}

// Resolve implements AlertStore.Resolve. The is_resolved guard in the WHERE
// clause makes resolution terminal: a second resolve matches no rows and
// leaves resolved_by and resolved_at untouched.
func (s *SQLAlertStore) Resolve(ctx context.Context, id, resolvedBy string, resolvedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE device_alerts
		SET is_resolved = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND %s`, s.dialect.openAlert)

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), true, resolvedBy, resolvedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// BatchResolve implements AlertStore.BatchResolve. Already-resolved and
// unknown ids simply match no rows.
func (s *SQLAlertStore) BatchResolve(ctx context.Context, ids []string, resolvedBy string, resolvedAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	query := fmt.Sprintf(`UPDATE device_alerts
		SET is_resolved = ?, resolved_by = ?, resolved_at = ?
		WHERE id IN (%s) AND %s`, placeholders, s.dialect.openAlert)

	args := make([]interface{}, 0, len(ids)+3)
	args = append(args, true, resolvedBy, resolvedAt)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to batch resolve alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

// AutoResolveBefore implements AlertStore.AutoResolveBefore. Re-running with
// the same cutoff matches nothing the second time.
func (s *SQLAlertStore) AutoResolveBefore(ctx context.Context, level model.AlertLevel, before time.Time, resolvedBy string) (int, error) {
	query := fmt.Sprintf(`UPDATE device_alerts
		SET is_resolved = ?, resolved_by = ?, resolved_at = ?
		WHERE %s AND alert_level = ? AND created_at < ?`, s.dialect.openAlert)

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		true, resolvedBy, time.Now(), string(level), before)
	if err != nil {
		return 0, fmt.Errorf("failed to auto-resolve alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

// DeleteResolvedBefore implements AlertStore.DeleteResolvedBefore. This is a
// hard delete restricted to resolved rows.
func (s *SQLAlertStore) DeleteResolvedBefore(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM device_alerts WHERE is_resolved = ? AND resolved_at < ?`

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), true, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old resolved alerts",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return int(affected), nil
}

// CountByLevel implements AlertStore.CountByLevel.
func (s *SQLAlertStore) CountByLevel(ctx context.Context) (map[model.AlertLevel]int, error) {
	query := `SELECT alert_level, COUNT(*) FROM device_alerts GROUP BY alert_level`
	return s.queryLevelCounts(ctx, query)
}

// CountByLevelForDevice implements AlertStore.CountByLevelForDevice.
func (s *SQLAlertStore) CountByLevelForDevice(ctx context.Context, deviceID string) (map[model.AlertLevel]int, error) {
	query := `SELECT alert_level, COUNT(*) FROM device_alerts WHERE device_id = ? GROUP BY alert_level`
	return s.queryLevelCounts(ctx, query, deviceID)
}

// Trend implements AlertStore.Trend.
func (s *SQLAlertStore) Trend(ctx context.Context, start, end time.Time) ([]TrendPoint, error) {
	query := fmt.Sprintf(`SELECT %s AS day, COUNT(*) FROM device_alerts
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY day ORDER BY day`, s.dialect.dayBucket)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert trend: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return points, nil
}

// Close closes the underlying database connection.
func (s *SQLAlertStore) Close() error {
	return s.db.Close()
}

func (s *SQLAlertStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return alerts, nil
}

func (s *SQLAlertStore) queryLevelCounts(ctx context.Context, query string, args ...interface{}) (map[model.AlertLevel]int, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by level: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.AlertLevel]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		counts[model.AlertLevel(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return counts, nil
}

// scanAlert scans a single-row query, mapping sql.ErrNoRows to (nil, nil).
func (s *SQLAlertStore) scanAlert(row *sql.Row) (*model.Alert, error) {
	var alert model.Alert
	var level, alertType string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&alert.ID,
		&alert.DeviceID,
		&level,
		&alertType,
		&alert.Message,
		&alert.CreatedAt,
		&alert.IsResolved,
		&resolvedBy,
		&resolvedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	alert.Level = model.AlertLevel(level)
	alert.Type = model.AlertType(alertType)
	if resolvedBy.Valid {
		alert.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	return &alert, nil
}

func scanAlertRow(rows *sql.Rows) (*model.Alert, error) {
	var alert model.Alert
	var level, alertType string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := rows.Scan(
		&alert.ID,
		&alert.DeviceID,
		&level,
		&alertType,
		&alert.Message,
		&alert.CreatedAt,
		&alert.IsResolved,
		&resolvedBy,
		&resolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	alert.Level = model.AlertLevel(level)
	alert.Type = model.AlertType(alertType)
	if resolvedBy.Valid {
		alert.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	return &alert, nil
}

// buildAlertWhere assembles the WHERE clause for List and Count so both see
// an identical filter set.
func buildAlertWhere(filters AlertFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filters.Level != nil {
		conds = append(conds, "alert_level = ?")
		args = append(args, string(*filters.Level))
	}
	if filters.DeviceID != nil {
		conds = append(conds, "device_id = ?")
		args = append(args, *filters.DeviceID)
	}
	if filters.Resolved != nil {
		conds = append(conds, "is_resolved = ?")
		args = append(args, *filters.Resolved)
	}
	if filters.StartTime != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filters.StartTime)
	}
	if filters.EndTime != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *filters.EndTime)
	}
	if kw := strings.TrimSpace(filters.Keyword); kw != "" {
		conds = append(conds, "(alert_message LIKE ? OR alert_type LIKE ?)")
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
