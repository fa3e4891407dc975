package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yxrobot/device-monitor/internal/config"
	"github.com/yxrobot/device-monitor/internal/model"
	"github.com/yxrobot/device-monitor/internal/monitor"
	"github.com/yxrobot/device-monitor/internal/scheduler"
	"github.com/yxrobot/device-monitor/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open the database shared by the alert store and the telemetry reader
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	alertStore, err := storage.NewSQLAlertStore(logger, db, cfg.Database.Driver)
	if err != nil {
		logger.Fatal("Failed to create alert store", zap.Error(err))
	}

	telemetryStore, err := storage.NewSQLTelemetryStore(logger, db, cfg.Database.Driver)
	if err != nil {
		logger.Fatal("Failed to create telemetry store", zap.Error(err))
	}

	// Assemble the monitoring engine
	thresholds := model.Thresholds{
		HighCPU:             cfg.Thresholds.HighCPU,
		HighMemory:          cfg.Thresholds.HighMemory,
		HighDisk:            cfg.Thresholds.HighDisk,
		HighTemperature:     cfg.Thresholds.HighTemperature,
		CriticalTemperature: cfg.Thresholds.CriticalTemp,
		LowBattery:          cfg.Thresholds.LowBattery,
		CriticalBattery:     cfg.Thresholds.CriticalBattery,
		LowSignal:           cfg.Thresholds.LowSignal,
		HighLatencyMs:       cfg.Thresholds.HighLatencyMs,
		LowSpeedMbps:        cfg.Thresholds.LowSpeedMbps,
		OfflineAfter:        cfg.Thresholds.OfflineGracePeriod,
	}

	alertService := monitor.NewAlertService(logger, alertStore)
	evaluator := monitor.NewEvaluator(thresholds)
	generator := monitor.NewAlertGenerator(logger, telemetryStore, evaluator, alertService, cfg.Alerts.BatchLimit)

	monitorScheduler := scheduler.NewMonitorScheduler(logger, generator, alertService, scheduler.Config{
		PerformanceCron:  cfg.Schedule.PerformanceCron,
		NetworkCron:      cfg.Schedule.NetworkCron,
		StatusCron:       cfg.Schedule.StatusCron,
		MaintenanceCron:  cfg.Schedule.MaintenanceCron,
		AutoResolveHours: cfg.Alerts.AutoResolveHours,
		RetentionDays:    cfg.Alerts.RetentionDays,
		CleanupEnabled:   cfg.Alerts.CleanupEnabled,
	})

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := monitorScheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	logger.Info("Device monitor started",
		zap.String("app", cfg.App.Name),
		zap.String("driver", cfg.Database.Driver))

	// Periodically surface the open alert backlog in the log
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				open := alertService.GetUnresolvedAlerts(ctx, cfg.Alerts.BatchLimit)
				stats := alertService.GetAlertStatistics(ctx)
				logger.Info("Alert backlog",
					zap.Int("open", len(open)),
					zap.Int("info", stats[model.AlertLevelInfo]),
					zap.Int("warning", stats[model.AlertLevelWarning]),
					zap.Int("error", stats[model.AlertLevelError]))
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	monitorScheduler.Stop()
	logger.Info("Server shutting down gracefully")
}
