package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yxrobot/device-monitor/internal/model"
)

func TestPresentAlert(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	resolvedAt := now.Add(-30 * time.Minute)

	alert := &model.Alert{
		ID:         "alert-1",
		DeviceID:   "dev-1",
		Level:      model.AlertLevelError,
		Type:       model.AlertTypeHighTemperature,
		Message:    "Temperature too high: 91.5°C",
		CreatedAt:  now.Add(-2 * time.Hour),
		IsResolved: true,
		ResolvedBy: "alice",
		ResolvedAt: &resolvedAt,
	}

	view := PresentAlert(alert, now)
	assert.Equal(t, "alert-1", view.ID)
	assert.Equal(t, "ERROR", view.Level)
	assert.Equal(t, "HIGH_TEMPERATURE", view.Type)
	assert.Equal(t, "2026-08-30 10:00:00", view.CreatedAt)
	assert.Equal(t, "2 hours ago", view.RelativeTime)
	assert.Equal(t, "2026-08-30 11:30:00", view.ResolvedAt)
	assert.Equal(t, "alice", view.ResolvedBy)
	assert.Equal(t, "Error", view.LevelDescription)
	assert.Equal(t, "error", view.LevelIcon)
	assert.Equal(t, "#F56C6C", view.LevelColor)
}

func TestPresentAlertOpen(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	view := PresentAlert(&model.Alert{
		ID:        "alert-2",
		DeviceID:  "dev-1",
		Level:     model.AlertLevelWarning,
		Type:      model.AlertTypeHighCPUUsage,
		Message:   "CPU usage too high: 92.0%",
		CreatedAt: now.Add(-10 * time.Second),
	}, now)

	assert.False(t, view.IsResolved)
	assert.Empty(t, view.ResolvedBy)
	assert.Empty(t, view.ResolvedAt)
	assert.Equal(t, "Warning", view.LevelDescription)
	assert.Equal(t, "#E6A23C", view.LevelColor)
}

func TestRelativeTimeBuckets(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"under a minute", 30 * time.Second, "just now"},
		{"exactly a minute", time.Minute, "1 minutes ago"},
		{"minutes", 45 * time.Minute, "45 minutes ago"},
		{"exactly an hour", time.Hour, "1 hours ago"},
		{"hours", 23 * time.Hour, "23 hours ago"},
		{"exactly a day", 24 * time.Hour, "1 days ago"},
		{"days", 29 * 24 * time.Hour, "29 days ago"},
		{"past thirty days", 31 * 24 * time.Hour, "a long time ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, relativeTime(now.Add(-tc.elapsed), now))
		})
	}
}

func TestPresentAlertsSharesReferenceInstant(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	alerts := []*model.Alert{
		{ID: "a", CreatedAt: now.Add(-time.Hour), Level: model.AlertLevelInfo},
		{ID: "b", CreatedAt: now.Add(-2 * time.Hour), Level: model.AlertLevelInfo},
	}

	views := PresentAlerts(alerts, now)
	require.Len(t, views, 2)
	assert.Equal(t, "1 hours ago", views[0].RelativeTime)
	assert.Equal(t, "2 hours ago", views[1].RelativeTime)

	assert.Empty(t, PresentAlerts(nil, now))
}
