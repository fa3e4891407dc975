package model

import "time"

// DeviceStatus represents the last reported operational state of a device.
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "ONLINE"
	DeviceStatusOffline     DeviceStatus = "OFFLINE"
	DeviceStatusError       DeviceStatus = "ERROR"
	DeviceStatusMaintenance DeviceStatus = "MAINTENANCE"
)

// PerformanceSample is the latest performance reading for one device,
// written into storage by the external telemetry collector.
type PerformanceSample struct {
	DeviceID    string    `json:"device_id"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	Temperature float64   `json:"temperature"`
	Battery     float64   `json:"battery"`
	SampledAt   time.Time `json:"sampled_at"`
}

// NetworkSample is the latest network reading for one device.
type NetworkSample struct {
	DeviceID       string    `json:"device_id"`
	SignalStrength int       `json:"signal_strength"`
	PingLatency    int       `json:"ping_latency"`
	DownloadSpeed  float64   `json:"download_speed"`
	UploadSpeed    float64   `json:"upload_speed"`
	SampledAt      time.Time `json:"sampled_at"`
}

// StatusSample is the device status row consulted by the status pass.
// SerialNumber comes from the device inventory and is used only for
// message text.
type StatusSample struct {
	DeviceID     string       `json:"device_id"`
	SerialNumber string       `json:"serial_number"`
	Status       DeviceStatus `json:"status"`
	LastOnlineAt *time.Time   `json:"last_online_at,omitempty"`
}
