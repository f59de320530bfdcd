package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"MediCare/config"
	"MediCare/internal/schedule"
	"MediCare/pkg/logger"
	"MediCare/pkg/metrics"
	"MediCare/pkg/otel"
	"MediCare/pkg/snowflake"
	"MediCare/storage"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	shutdownOtel, err := otel.Init(ctx, config.Cfg.OTelEnabled, otel.ConfigFromEnv("scheduler"))
	if err != nil {
		logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(flushCtx)
	}()

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize business metrics", zap.Error(err))
	}

	if err := storage.InitCore(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	// 消息 ID 依赖 snowflake
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.String("check_at", config.Cfg.MissedDoseCheckAt),
	)

	go runMissedDoseLoop(ctx)

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runMissedDoseLoop 周期扫描漏服患者。
// 患者时区各不相同，每 15 分钟扫一次，由每位患者的本地时间决定是否到了检查点
func runMissedDoseLoop(ctx context.Context) {
	s := schedule.GetMissedDoseScheduler()

	interval := 15 * time.Minute
	if config.Cfg.Environment == "development" {
		interval = 1 * time.Minute
		logger.Logger.Info("Missed dose loop running in development mode with 1m interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			if err := s.RunOnce(runCtx, 10*time.Minute); err != nil {
				logger.Logger.Error("Missed dose scan failed", zap.Error(err))
			}
			cancel()
		}
	}
}
