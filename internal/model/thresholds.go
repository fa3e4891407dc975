package model

import "time"

// Thresholds carries every tunable rule limit. Values are loaded from
// configuration so operators can adjust sensitivity without redeploying
// the evaluation logic.
type Thresholds struct {
	// Performance category. Usage values are percentages, temperature is
	// degrees Celsius.
	HighCPU             float64
	HighMemory          float64
	HighDisk            float64
	HighTemperature     float64
	CriticalTemperature float64
	LowBattery          float64
	CriticalBattery     float64

	// Network category.
	LowSignal     int
	HighLatencyMs int
	LowSpeedMbps  float64

	// Status category. A device only counts as offline once its last
	// online instant is older than this window.
	OfflineAfter time.Duration
}

// DefaultThresholds mirrors the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighCPU:             85,
		HighMemory:          90,
		HighDisk:            85,
		HighTemperature:     75,
		CriticalTemperature: 85,
		LowBattery:          20,
		CriticalBattery:     10,
		LowSignal:           30,
		HighLatencyMs:       200,
		LowSpeedMbps:        1.0,
		OfflineAfter:        2 * time.Hour,
	}
}
