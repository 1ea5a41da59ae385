package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"beacon-telemetry/internal/config"
	"beacon-telemetry/internal/logger"
	"beacon-telemetry/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "beacon-telemetry")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting beacon-telemetry service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("mqtt_topic", cfg.Beacon.Topic),
		zap.String("stream", cfg.Beacon.Stream),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	// 创建服务
	telemetryService, err := service.NewTelemetryService(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to create telemetry service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := telemetryService.Start(ctx); err != nil {
			zlog.Fatal("Failed to start telemetry service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := telemetryService.Stop(context.Background()); err != nil {
		zlog.Error("Error during shutdown", zap.Error(err))
	}

	zlog.Info("Service stopped")
}
