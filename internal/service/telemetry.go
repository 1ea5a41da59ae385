package service

import (
	"context"
	"database/sql"
	"fmt"

	"beacon-telemetry/internal/config"
	"beacon-telemetry/internal/consumer"
	"beacon-telemetry/internal/httpapi"
	"beacon-telemetry/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"beacon-telemetry/internal/database"
	mqttcommon "beacon-telemetry/internal/mqtt"
	rediscommon "beacon-telemetry/internal/redis"
)

// TelemetryService 信标遥测服务
// 持有全部外部资源句柄并显式注入到各组件，不使用全局状态
type TelemetryService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	consumer   *consumer.MQTTConsumer
	httpServer *Server
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis（fan-out 关闭时不连接）
	var redisClient *redis.Client
	if cfg.Beacon.Stream != "" {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 创建Repository
	gatewayRepo := repository.NewGatewayRepository(db, logger)
	readingRepo := repository.NewReadingRepository(db, logger)

	// 创建Consumer
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, gatewayRepo, readingRepo, logger)

	// 创建HTTP路由和服务器
	handler := httpapi.NewBeaconHandler(readingRepo, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterBeaconRoutes(handler)
	httpServer := NewServer(cfg.HTTP.Addr, router, logger)

	return &TelemetryService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		consumer:   mqttConsumer,
		httpServer: httpServer,
	}, nil
}

// Start 启动服务（MQTT消费者 + HTTP服务器）
func (s *TelemetryService) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry service components")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	go func() {
		if err := s.consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("mqtt consumer failed: %w", err)
		}
	}()

	s.logger.Info("Telemetry service started successfully")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop 停止服务并释放全部资源
func (s *TelemetryService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping telemetry service")

	// 停止Consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	// 停止HTTP服务器
	if s.httpServer != nil {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redis != nil {
		if err := rediscommon.Close(s.redis); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}

	s.logger.Info("Telemetry service stopped")
	return nil
}
