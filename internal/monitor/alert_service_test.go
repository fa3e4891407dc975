package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
	"github.com/yxrobot/device-monitor/internal/storage"
	"github.com/yxrobot/device-monitor/internal/testutil"
)

func newTestService(t *testing.T) (*AlertService, storage.AlertStore) {
	t.Helper()

	db := testutil.OpenTestDB(t)
	store, err := storage.NewSQLAlertStore(zap.NewNop(), db, "sqlite3")
	require.NoError(t, err)
	return NewAlertService(zap.NewNop(), store), store
}

// insertAged writes an alert with an explicit creation instant, bypassing
// the service so tests can control record age.
func insertAged(t *testing.T, store storage.AlertStore, deviceID string, alertType model.AlertType, level model.AlertLevel, createdAt time.Time) *model.Alert {
	t.Helper()

	alert := &model.Alert{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Level:     level,
		Type:      alertType,
		Message:   string(alertType),
		CreatedAt: createdAt,
	}
	inserted, err := store.Insert(context.Background(), alert)
	require.NoError(t, err)
	require.True(t, inserted)
	return alert
}

func TestAlertService_CreateAlert(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	alert, created, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "CPU usage too high: 92.0%")
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, alert)
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.IsResolved)
}

func TestAlertService_CreateAlertContractViolations(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := service.CreateAlert(ctx, "", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
	assert.ErrorIs(t, err, ErrDeviceIDRequired)

	_, _, err = service.CreateAlert(ctx, "   ", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
	assert.ErrorIs(t, err, ErrDeviceIDRequired)

	_, _, err = service.CreateAlert(ctx, "dev-1", model.AlertLevel("FATAL"), model.AlertTypeHighCPUUsage, "msg")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestAlertService_CreateAlertDedup(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	first, created, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "CPU usage too high: 92.0%")
	require.NoError(t, err)
	require.True(t, created)

	// A second detection of the same condition returns the existing open
	// record and writes nothing.
	second, created, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "CPU usage too high: 93.0%")
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Message, second.Message)

	count, err := store.Count(ctx, storage.AlertFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// After resolution the condition may recur as a new record.
	require.True(t, service.ResolveAlert(ctx, first.ID, "alice"))
	third, created, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "CPU usage too high: 94.0%")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestAlertService_ResolveTerminality(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	alert, _, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelError, model.AlertTypeDeviceError, "Device malfunction: SN-1001")
	require.NoError(t, err)

	require.True(t, service.ResolveAlert(ctx, alert.ID, "alice"))
	require.False(t, service.ResolveAlert(ctx, alert.ID, "bob"))

	got, err := store.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, "alice", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	assert.False(t, service.ResolveAlert(ctx, "no-such-id", "alice"))
}

func TestAlertService_BatchResolvePartialSuccess(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	open, _, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
	require.NoError(t, err)
	done, _, err := service.CreateAlert(ctx, "dev-2", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
	require.NoError(t, err)
	require.True(t, service.ResolveAlert(ctx, done.ID, "alice"))

	count, err := service.BatchResolveAlerts(ctx, []string{open.ID, done.ID, "no-such-id"}, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, "bob", got.ResolvedBy)

	got, err = store.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ResolvedBy)
}

func TestAlertService_BatchResolveEmptyListIsContractViolation(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.BatchResolveAlerts(context.Background(), nil, "alice")
	assert.ErrorIs(t, err, ErrNoAlertIDs)

	_, err = service.BatchResolveAlerts(context.Background(), []string{}, "alice")
	assert.ErrorIs(t, err, ErrNoAlertIDs)
}

func TestAlertService_AutoResolveAgeBoundary(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	aged := insertAged(t, store, "dev-1", model.AlertTypeLowNetworkSpeed, model.AlertLevelInfo, now.Add(-25*time.Hour))
	fresh := insertAged(t, store, "dev-2", model.AlertTypeLowNetworkSpeed, model.AlertLevelInfo, now.Add(-23*time.Hour))

	count := service.AutoResolveExpiredAlerts(ctx, 24, model.AlertLevelInfo)
	assert.Equal(t, 1, count)

	got, err := store.GetByID(ctx, aged.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, model.SystemResolver, got.ResolvedBy)

	got, err = store.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, got.IsResolved)

	// Idempotent: a second run resolves nothing further.
	assert.Zero(t, service.AutoResolveExpiredAlerts(ctx, 24, model.AlertLevelInfo))

	// Undefined levels are rejected without touching state.
	assert.Zero(t, service.AutoResolveExpiredAlerts(ctx, 24, model.AlertLevel("FATAL")))
}

func TestAlertService_CleanupBoundary(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	oldResolved := insertAged(t, store, "dev-1", model.AlertTypeHighCPUUsage, model.AlertLevelWarning, now.AddDate(0, 0, -45))
	oldOpen := insertAged(t, store, "dev-2", model.AlertTypeHighCPUUsage, model.AlertLevelWarning, now.AddDate(0, 0, -45))

	_, err := store.Resolve(ctx, oldResolved.ID, "alice", now.AddDate(0, 0, -31))
	require.NoError(t, err)

	deleted := service.CleanupResolvedAlerts(ctx, 30)
	assert.Equal(t, 1, deleted)

	gone, err := store.GetByID(ctx, oldResolved.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// The unresolved alert survives regardless of retention.
	kept, err := store.GetByID(ctx, oldOpen.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.False(t, kept.IsResolved)
}

func TestAlertService_GetAlertsPagination(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	const total = 7
	for i := 0; i < total; i++ {
		_, created, err := service.CreateAlert(ctx, fmt.Sprintf("dev-%d", i), model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
		require.NoError(t, err)
		require.True(t, created)
	}

	const pageSize = 3
	first := service.GetAlerts(ctx, 1, pageSize, storage.AlertFilters{})
	require.Equal(t, total, first.Total)
	assert.Equal(t, 3, first.TotalPages)

	fetched := 0
	for page := 1; page <= first.TotalPages; page++ {
		result := service.GetAlerts(ctx, page, pageSize, storage.AlertFilters{})
		assert.Equal(t, total, result.Total)
		fetched += len(result.Items)
	}
	assert.Equal(t, total, fetched)

	// Out-of-range pages are well-formed and empty.
	beyond := service.GetAlerts(ctx, first.TotalPages+1, pageSize, storage.AlertFilters{})
	assert.Empty(t, beyond.Items)
	assert.Equal(t, total, beyond.Total)

	// Page and size are normalized rather than rejected.
	normalized := service.GetAlerts(ctx, 0, 0, storage.AlertFilters{})
	assert.Equal(t, 1, normalized.Page)
	assert.Equal(t, defaultPageSize, normalized.Size)
}

func TestAlertService_QueriesAndStatistics(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	_, _, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "cpu")
	require.NoError(t, err)
	_, _, err = service.CreateAlert(ctx, "dev-1", model.AlertLevelError, model.AlertTypeLowBattery, "battery")
	require.NoError(t, err)
	insertAged(t, store, "dev-2", model.AlertTypeLowNetworkSpeed, model.AlertLevelInfo, now.Add(-48*time.Hour))

	assert.Len(t, service.GetAlertsByDevice(ctx, "dev-1", 10), 2)
	assert.Len(t, service.GetAlertsByLevel(ctx, model.AlertLevelError, 10), 1)
	assert.Len(t, service.GetUnresolvedAlerts(ctx, 10), 3)
	assert.Len(t, service.GetRecentAlerts(ctx, 24, 10), 2)

	stats := service.GetAlertStatistics(ctx)
	assert.Equal(t, 1, stats[model.AlertLevelInfo])
	assert.Equal(t, 1, stats[model.AlertLevelWarning])
	assert.Equal(t, 1, stats[model.AlertLevelError])

	deviceStats := service.GetDeviceAlertStatistics(ctx, "dev-1")
	assert.Equal(t, 1, deviceStats[model.AlertLevelWarning])
	assert.Equal(t, 1, deviceStats[model.AlertLevelError])
	assert.Zero(t, deviceStats[model.AlertLevelInfo])

	// The end bound is inclusive; take it after the alerts above were
	// created so they fall inside the window.
	trend := service.GetAlertTrend(ctx, now.Add(-72*time.Hour), time.Now())
	total := 0
	for _, p := range trend {
		total += p.Count
	}
	assert.Equal(t, 3, total)
}

func TestAlertService_QueryStats(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	service.GetUnresolvedAlerts(ctx, 10)
	service.GetUnresolvedAlerts(ctx, 10)
	service.GetAlertStatistics(ctx)

	stats := service.QueryStats()
	assert.Equal(t, int64(2), stats["get_unresolved"])
	assert.Equal(t, int64(1), stats["statistics"])
}

func TestAlertService_ConcurrentCreateSingleWinner(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	const workers = 8
	created := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, ok, err := service.CreateAlert(ctx, "dev-1", model.AlertLevelWarning, model.AlertTypeHighCPUUsage, "msg")
			assert.NoError(t, err)
			created <- ok
		}()
	}

	wins := 0
	for i := 0; i < workers; i++ {
		if <-created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	count, err := store.Count(ctx, storage.AlertFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
