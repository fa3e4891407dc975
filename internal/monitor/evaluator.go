package monitor

import (
	"fmt"
	"time"

	"github.com/yxrobot/device-monitor/internal/model"
)

// Candidate is a prospective alert produced by one rule for one device.
// Candidates carry no identity; the lifecycle service decides whether one
// becomes a persisted record or is suppressed as a duplicate.
type Candidate struct {
	Type    model.AlertType
	Level   model.AlertLevel
	Message string
}

// Evaluator maps telemetry samples to candidate alerts. It is pure: no side
// effects, no knowledge of persistence, every limit injected via Thresholds.
type Evaluator struct {
	thresholds model.Thresholds
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(t model.Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// EvaluatePerformance applies the performance-category rules to one sample.
// Rules are independent; a sample can trigger several of them at once.
func (e *Evaluator) EvaluatePerformance(sample *model.PerformanceSample) []Candidate {
	var candidates []Candidate

	if sample.CPUUsage >= e.thresholds.HighCPU {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeHighCPUUsage,
			Level:   model.AlertLevelWarning,
			Message: fmt.Sprintf("CPU usage too high: %.1f%%", sample.CPUUsage),
		})
	}

	if sample.MemoryUsage >= e.thresholds.HighMemory {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeHighMemoryUsage,
			Level:   model.AlertLevelWarning,
			Message: fmt.Sprintf("Memory usage too high: %.1f%%", sample.MemoryUsage),
		})
	}

	if sample.DiskUsage >= e.thresholds.HighDisk {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeHighDiskUsage,
			Level:   model.AlertLevelWarning,
			Message: fmt.Sprintf("Disk usage too high: %.1f%%", sample.DiskUsage),
		})
	}

	if sample.Temperature >= e.thresholds.HighTemperature {
		// Escalates to ERROR at the critical boundary, boundary inclusive.
		level := model.AlertLevelWarning
		if sample.Temperature >= e.thresholds.CriticalTemperature {
			level = model.AlertLevelError
		}
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeHighTemperature,
			Level:   level,
			Message: fmt.Sprintf("Temperature too high: %.1f°C", sample.Temperature),
		})
	}

	if sample.Battery <= e.thresholds.LowBattery {
		level := model.AlertLevelWarning
		if sample.Battery <= e.thresholds.CriticalBattery {
			level = model.AlertLevelError
		}
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeLowBattery,
			Level:   level,
			Message: fmt.Sprintf("Battery low: %.1f%%", sample.Battery),
		})
	}

	return candidates
}

// EvaluateNetwork applies the network-category rules to one sample.
func (e *Evaluator) EvaluateNetwork(sample *model.NetworkSample) []Candidate {
	var candidates []Candidate

	if sample.SignalStrength <= e.thresholds.LowSignal {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeLowSignal,
			Level:   model.AlertLevelWarning,
			Message: fmt.Sprintf("Signal strength too low: %d%%", sample.SignalStrength),
		})
	}

	if sample.PingLatency >= e.thresholds.HighLatencyMs {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeHighLatency,
			Level:   model.AlertLevelWarning,
			Message: fmt.Sprintf("Network latency too high: %dms", sample.PingLatency),
		})
	}

	if sample.DownloadSpeed <= e.thresholds.LowSpeedMbps {
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeLowNetworkSpeed,
			Level:   model.AlertLevelInfo,
			Message: fmt.Sprintf("Network speed too slow: %.1fMbps", sample.DownloadSpeed),
		})
	}

	return candidates
}

// EvaluateStatus applies the device-status rules to one device row. The
// offline rule fires only once the device has been gone longer than the
// configured grace period; a device with no recorded last-online instant
// never counts as offline.
func (e *Evaluator) EvaluateStatus(now time.Time, sample *model.StatusSample) []Candidate {
	var candidates []Candidate

	switch sample.Status {
	case model.DeviceStatusOffline:
		if sample.LastOnlineAt != nil && sample.LastOnlineAt.Before(now.Add(-e.thresholds.OfflineAfter)) {
			candidates = append(candidates, Candidate{
				Type:    model.AlertTypeDeviceOffline,
				Level:   model.AlertLevelWarning,
				Message: fmt.Sprintf("Device offline for extended period: %s", sample.SerialNumber),
			})
		}
	case model.DeviceStatusError:
		candidates = append(candidates, Candidate{
			Type:    model.AlertTypeDeviceError,
			Level:   model.AlertLevelError,
			Message: fmt.Sprintf("Device malfunction: %s", sample.SerialNumber),
		})
	}

	return candidates
}
