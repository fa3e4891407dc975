package model

import "time"

// AlertLevel represents the severity level of a device alert.
// Levels form a total order: INFO < WARNING < ERROR.
type AlertLevel string

const (
	AlertLevelInfo    AlertLevel = "INFO"
	AlertLevelWarning AlertLevel = "WARNING"
	AlertLevelError   AlertLevel = "ERROR"
)

// Rank returns the position of the level in the severity order.
// Unknown levels rank below INFO.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelInfo:
		return 1
	case AlertLevelWarning:
		return 2
	case AlertLevelError:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the defined levels.
func (l AlertLevel) Valid() bool {
	return l.Rank() > 0
}

// LevelMeta carries the display attributes attached to an alert level.
type LevelMeta struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

var levelMeta = map[AlertLevel]LevelMeta{
	AlertLevelInfo:    {Description: "Informational", Icon: "info", Color: "#909399"},
	AlertLevelWarning: {Description: "Warning", Icon: "warning", Color: "#E6A23C"},
	AlertLevelError:   {Description: "Error", Icon: "error", Color: "#F56C6C"},
}

// Meta returns the display metadata for the level. Unknown levels map to
// the INFO metadata.
func (l AlertLevel) Meta() LevelMeta {
	if meta, ok := levelMeta[l]; ok {
		return meta
	}
	return levelMeta[AlertLevelInfo]
}

// AlertType identifies the rule that produced an alert. Together with the
// device id it forms the deduplication key: at most one unresolved alert may
// exist per (device, type) pair.
type AlertType string

const (
	AlertTypeHighCPUUsage    AlertType = "HIGH_CPU_USAGE"
	AlertTypeHighMemoryUsage AlertType = "HIGH_MEMORY_USAGE"
	AlertTypeHighDiskUsage   AlertType = "HIGH_DISK_USAGE"
	AlertTypeHighTemperature AlertType = "HIGH_TEMPERATURE"
	AlertTypeLowBattery      AlertType = "LOW_BATTERY"
	AlertTypeLowSignal       AlertType = "LOW_SIGNAL_STRENGTH"
	AlertTypeHighLatency     AlertType = "HIGH_NETWORK_LATENCY"
	AlertTypeLowNetworkSpeed AlertType = "LOW_NETWORK_SPEED"
	AlertTypeDeviceOffline   AlertType = "DEVICE_OFFLINE"
	AlertTypeDeviceError     AlertType = "DEVICE_ERROR"
)

// SystemResolver is recorded as the resolver of alerts closed by the
// scheduled auto-resolve pass rather than by an operator.
const SystemResolver = "SYSTEM_AUTO_RESOLVE"

// Alert is one persisted rule breach for one device.
//
// Resolution is terminal: once IsResolved is true the record never reopens.
// A re-occurrence of the same condition creates a new record after the old
// one is resolved. ResolvedBy and ResolvedAt are set exactly once, together
// with the transition to resolved.
type Alert struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	Level      AlertLevel `json:"level"`
	Type       AlertType  `json:"type"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	IsResolved bool       `json:"is_resolved"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Open reports whether the alert is still awaiting resolution.
func (a *Alert) Open() bool {
	return !a.IsResolved
}
