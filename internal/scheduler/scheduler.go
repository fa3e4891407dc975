package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/model"
	"github.com/yxrobot/device-monitor/internal/monitor"
)

// Config holds the cron expressions and maintenance parameters for the
// monitoring schedule. Expressions use the standard five-field format.
type Config struct {
	PerformanceCron string
	NetworkCron     string
	StatusCron      string
	MaintenanceCron string

	// AutoResolveHours is the age after which open INFO alerts are
	// resolved by the maintenance job.
	AutoResolveHours int
	// RetentionDays is the age after which resolved alerts are purged.
	RetentionDays int
	// CleanupEnabled controls whether maintenance purges old resolved
	// alerts after auto-resolve.
	CleanupEnabled bool
}

// MonitorScheduler owns the timers driving the evaluation passes and the
// daily maintenance job. Jobs share no state beyond the persistent store;
// each job is wrapped so a pass never overlaps its own next invocation and
// a panic inside one pass never kills the schedule.
type MonitorScheduler struct {
	logger    *zap.Logger
	cron      *cron.Cron
	generator *monitor.AlertGenerator
	alerts    *monitor.AlertService
	config    Config
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewMonitorScheduler creates a scheduler over the generator and lifecycle
// service.
func NewMonitorScheduler(logger *zap.Logger, generator *monitor.AlertGenerator, alerts *monitor.AlertService, config Config) *MonitorScheduler {
	adapted := &cronLogger{logger: logger.Named("cron")}
	cronOptions := []cron.Option{
		cron.WithChain(
			cron.SkipIfStillRunning(adapted),
			cron.Recover(adapted),
		),
	}

	return &MonitorScheduler{
		logger:    logger.Named("scheduler"),
		cron:      cron.New(cronOptions...),
		generator: generator,
		alerts:    alerts,
		config:    config,
	}
}

// Start registers the four jobs and starts the timers. The given context is
// threaded into every pass.
func (s *MonitorScheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"performance-pass", s.config.PerformanceCron, func() {
			s.generator.CheckPerformanceAlerts(ctx)
		}},
		{"network-pass", s.config.NetworkCron, func() {
			s.generator.CheckNetworkAlerts(ctx)
		}},
		{"status-pass", s.config.StatusCron, func() {
			s.generator.CheckDeviceStatusAlerts(ctx)
		}},
		{"daily-maintenance", s.config.MaintenanceCron, func() {
			s.runMaintenance(ctx)
		}},
	}

	for _, job := range jobs {
		entryID, err := s.cron.AddFunc(job.spec, job.run)
		if err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", job.name, job.spec, err)
		}
		s.logger.Info("Scheduled job",
			zap.String("name", job.name),
			zap.String("expression", job.spec),
			zap.Int("entry_id", int(entryID)))
	}

	s.cron.Start()
	s.logger.Info("Monitor scheduler started")
	return nil
}

// Stop stops the timers and waits for any running pass to finish.
func (s *MonitorScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Monitor scheduler stopped")
}

// RunAllChecksNow triggers every evaluation pass immediately, outside the
// schedule. Exposed for operational testing.
func (s *MonitorScheduler) RunAllChecksNow(ctx context.Context) int {
	return s.generator.RunAllChecks(ctx)
}

// runMaintenance auto-resolves aged INFO alerts and then, when enabled,
// purges resolved alerts past retention.
func (s *MonitorScheduler) runMaintenance(ctx context.Context) {
	resolved := s.alerts.AutoResolveExpiredAlerts(ctx, s.config.AutoResolveHours, model.AlertLevelInfo)

	deleted := 0
	if s.config.CleanupEnabled {
		deleted = s.alerts.CleanupResolvedAlerts(ctx, s.config.RetentionDays)
	}

	s.logger.Info("Daily maintenance completed",
		zap.Int("auto_resolved", resolved),
		zap.Int("deleted", deleted))
}
