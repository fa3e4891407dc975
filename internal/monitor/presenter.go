package monitor

import (
	"fmt"
	"time"

	"github.com/yxrobot/device-monitor/internal/model"
)

const displayTimeLayout = "2006-01-02 15:04:05"

// AlertView is the display projection of an alert record: formatted and
// relative timestamps plus level display metadata. Building a view never
// touches stored state.
type AlertView struct {
	ID                 string `json:"id"`
	DeviceID           string `json:"device_id"`
	Level              string `json:"level"`
	Type               string `json:"type"`
	Message            string `json:"message"`
	CreatedAt          string `json:"created_at"`
	RelativeTime       string `json:"relative_time"`
	IsResolved         bool   `json:"is_resolved"`
	ResolvedBy         string `json:"resolved_by,omitempty"`
	ResolvedAt         string `json:"resolved_at,omitempty"`
	LevelDescription   string `json:"level_description"`
	LevelIcon          string `json:"level_icon"`
	LevelColor         string `json:"level_color"`
}

// PresentAlert maps one alert record to its display shape, relative to now.
func PresentAlert(alert *model.Alert, now time.Time) *AlertView {
	meta := alert.Level.Meta()

	view := &AlertView{
		ID:               alert.ID,
		DeviceID:         alert.DeviceID,
		Level:            string(alert.Level),
		Type:             string(alert.Type),
		Message:          alert.Message,
		CreatedAt:        alert.CreatedAt.Format(displayTimeLayout),
		RelativeTime:     relativeTime(alert.CreatedAt, now),
		IsResolved:       alert.IsResolved,
		ResolvedBy:       alert.ResolvedBy,
		LevelDescription: meta.Description,
		LevelIcon:        meta.Icon,
		LevelColor:       meta.Color,
	}
	if alert.ResolvedAt != nil {
		view.ResolvedAt = alert.ResolvedAt.Format(displayTimeLayout)
	}
	return view
}

// PresentAlerts maps a batch of records, sharing one reference instant so a
// long list renders consistently.
func PresentAlerts(alerts []*model.Alert, now time.Time) []*AlertView {
	views := make([]*AlertView, 0, len(alerts))
	for _, alert := range alerts {
		views = append(views, PresentAlert(alert, now))
	}
	return views
}

// relativeTime renders a human age for the alert with fixed bucket
// boundaries: under a minute, minutes, hours, days, then "a long time ago"
// past 30 days.
func relativeTime(t, now time.Time) string {
	elapsed := now.Sub(t)

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(elapsed.Hours()))
	case elapsed < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(elapsed.Hours()/24))
	default:
		return "a long time ago"
	}
}
