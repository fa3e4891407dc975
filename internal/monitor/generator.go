package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
	"github.com/yxrobot/device-monitor/internal/storage"
)

// AlertGenerator runs the evaluation passes: it reads breaching telemetry,
// asks the evaluator for candidates, and hands them to the lifecycle
// service. Each pass is fault-isolated; a failing telemetry read costs that
// category one pass and nothing else.
type AlertGenerator struct {
	logger     *zap.Logger
	telemetry  storage.TelemetryStore
	evaluator  *Evaluator
	alerts     *AlertService
	batchLimit int
}

// NewAlertGenerator creates a generator over the given collaborators.
// batchLimit caps how many breaching devices one pass examines.
func NewAlertGenerator(logger *zap.Logger, telemetry storage.TelemetryStore, evaluator *Evaluator, alerts *AlertService, batchLimit int) *AlertGenerator {
	if batchLimit < 1 {
		batchLimit = defaultQueryLimit
	}
	return &AlertGenerator{
		logger:     logger.Named("alert-generator"),
		telemetry:  telemetry,
		evaluator:  evaluator,
		alerts:     alerts,
		batchLimit: batchLimit,
	}
}

// CheckPerformanceAlerts runs the performance-category rules across all
// devices whose latest sample breaches a threshold. It returns the number
// of alerts created (suppressed duplicates do not count).
func (g *AlertGenerator) CheckPerformanceAlerts(ctx context.Context) int {
	samples, err := g.telemetry.PerformanceBreaching(ctx, g.evaluator.thresholds, g.batchLimit)
	if err != nil {
		g.logger.Error("Performance pass failed to read telemetry", zap.Error(err))
		return 0
	}

	created := 0
	for _, sample := range samples {
		for _, c := range g.evaluator.EvaluatePerformance(sample) {
			created += g.submit(ctx, sample.DeviceID, c)
		}
	}

	g.logger.Info("Performance pass completed",
		zap.Int("devices", len(samples)),
		zap.Int("alerts_created", created))
	return created
}

// CheckNetworkAlerts runs the network-category rules.
func (g *AlertGenerator) CheckNetworkAlerts(ctx context.Context) int {
	samples, err := g.telemetry.NetworkBreaching(ctx, g.evaluator.thresholds, g.batchLimit)
	if err != nil {
		g.logger.Error("Network pass failed to read telemetry", zap.Error(err))
		return 0
	}

	created := 0
	for _, sample := range samples {
		for _, c := range g.evaluator.EvaluateNetwork(sample) {
			created += g.submit(ctx, sample.DeviceID, c)
		}
	}

	g.logger.Info("Network pass completed",
		zap.Int("devices", len(samples)),
		zap.Int("alerts_created", created))
	return created
}

// CheckDeviceStatusAlerts runs the device-status rules. The offline and
// error checks are isolated from each other: a failing read of one status
// does not stop the other.
func (g *AlertGenerator) CheckDeviceStatusAlerts(ctx context.Context) int {
	now := time.Now()
	created := 0
	created += g.checkStatus(ctx, now, model.DeviceStatusOffline)
	created += g.checkStatus(ctx, now, model.DeviceStatusError)

	g.logger.Info("Device status pass completed", zap.Int("alerts_created", created))
	return created
}

// RunAllChecks executes every evaluation pass immediately. It backs the
// operator-facing manual trigger used for operational testing.
func (g *AlertGenerator) RunAllChecks(ctx context.Context) int {
	g.logger.Info("Manual alert check triggered")

	created := 0
	created += g.CheckPerformanceAlerts(ctx)
	created += g.CheckNetworkAlerts(ctx)
	created += g.CheckDeviceStatusAlerts(ctx)

	g.logger.Info("Manual alert check completed", zap.Int("alerts_created", created))
	return created
}

func (g *AlertGenerator) checkStatus(ctx context.Context, now time.Time, status model.DeviceStatus) int {
	devices, err := g.telemetry.DevicesByStatus(ctx, status, g.batchLimit)
	if err != nil {
		g.logger.Error("Status check failed to read devices",
			zap.String("status", string(status)),
			zap.Error(err))
		return 0
	}

	created := 0
	for _, device := range devices {
		for _, c := range g.evaluator.EvaluateStatus(now, device) {
			created += g.submit(ctx, device.DeviceID, c)
		}
	}
	return created
}

// submit hands one candidate to the lifecycle service and reports 1 when a
// new record was written. Contract errors here indicate bad telemetry rows
// and are logged, not propagated.
func (g *AlertGenerator) submit(ctx context.Context, deviceID string, c Candidate) int {
	alert, createdNew, err := g.alerts.CreateAlert(ctx, deviceID, c.Level, c.Type, c.Message)
	if err != nil {
		g.logger.Warn("Skipped candidate alert",
			zap.String("device_id", deviceID),
			zap.String("type", string(c.Type)),
			zap.Error(err))
		return 0
	}
	if alert != nil && createdNew {
		return 1
	}
	return 0
}
