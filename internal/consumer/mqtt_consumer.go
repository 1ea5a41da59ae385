package consumer

import (
	"context"
	"fmt"
	"time"

	"beacon-telemetry/internal/config"
	"beacon-telemetry/internal/decoder"
	"beacon-telemetry/internal/models"
	"beacon-telemetry/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	mqttcommon "beacon-telemetry/internal/mqtt"
	rediscommon "beacon-telemetry/internal/redis"
)

// MQTTConsumer MQTT消息消费者，负责单条消息的完整摄取链路：
// 解码 → 校验 → 可选平滑 → 网关解析 → 逐条写入 → Streams fan-out
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	gatewayRepo *repository.GatewayRepository
	readingRepo *repository.ReadingRepository
	smoother    *decoder.Smoother
	logger      *zap.Logger
}

// FrameEvent 持久化完成后发布到 Redis Streams 的标准化事件
type FrameEvent struct {
	GMAC      string               `json:"gmac"`
	GatewayID int64                `json:"gateway_id"`
	Persisted int                  `json:"persisted"`
	Skipped   int                  `json:"skipped"`
	Entries   []models.BeaconEntry `json:"entries"`
	Timestamp int64                `json:"timestamp"`
}

// NewMQTTConsumer 创建MQTT消费者
// redisClient 为 nil 或 Stream 配置为空时关闭 fan-out
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	gatewayRepo *repository.GatewayRepository,
	readingRepo *repository.ReadingRepository,
	logger *zap.Logger,
) *MQTTConsumer {
	c := &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		gatewayRepo: gatewayRepo,
		readingRepo: readingRepo,
		logger:      logger,
	}

	if cfg.Smoothing.Enabled {
		c.smoother = decoder.NewSmoother(cfg.Smoothing.ProcessNoise, cfg.Smoothing.MeasurementNoise)
	}

	return c
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.Beacon.Topic
	if topic == "" {
		return fmt.Errorf("beacon MQTT topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to beacon topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
		zap.String("stream", c.config.Beacon.Stream),
		zap.Bool("smoothing", c.smoother != nil),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	topic := c.config.Beacon.Topic
	if topic != "" {
		if err := c.mqttClient.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// HandleMessage 处理一条MQTT消息
// 任何失败只终止当前消息，绝不影响订阅回路和后续消息
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 解码：载荷不可解析时丢弃该消息
	frame, err := decoder.Decode(payload)
	if err != nil {
		c.logger.Error("Failed to decode telemetry frame",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	return c.ingest(frame)
}

// ingest 摄取一帧：校验 → 解析网关 → 逐条写入 → fan-out
func (c *MQTTConsumer) ingest(frame *models.Frame) error {
	// 2. 校验：空 obj 或无法解析 gmac 的帧不产生任何写入
	if err := frame.Validate(); err != nil {
		c.logger.Warn("Invalid frame received, skipping save",
			zap.Int("entries", len(frame.Entries)),
			zap.Error(err),
		)
		return err
	}

	// 3. 可选的 RSSI 平滑（解码后阶段，与解析本身无关）
	if c.smoother != nil {
		frame = c.smoother.Apply(frame)
	}

	gmac := frame.GatewayMAC()

	// 4. 每条消息只解析一次网关；解析失败终止整条消息的写入
	gatewayID, err := c.gatewayRepo.Resolve(gmac)
	if err != nil {
		c.logger.Error("Failed to resolve gateway",
			zap.String("gmac", gmac),
			zap.Error(err),
		)
		return err
	}

	// 5. 逐条写入：单条 entry 的失败记录后跳过，不中断兄弟 entry
	persisted := 0
	skipped := 0
	for i := range frame.Entries {
		entry := &frame.Entries[i]
		if err := c.readingRepo.Insert(gatewayID, entry); err != nil {
			if err == models.ErrMissingDMAC {
				c.logger.Warn("Beacon missing dmac, skipping",
					zap.String("gmac", gmac),
					zap.Int("index", i),
				)
			} else {
				c.logger.Error("Failed to insert beacon reading",
					zap.String("gmac", gmac),
					zap.String("dmac", entry.DMAC),
					zap.Error(err),
				)
			}
			skipped++
			continue
		}
		persisted++
	}

	c.logger.Info("Saved beacon readings",
		zap.String("gmac", gmac),
		zap.Int64("gateway_id", gatewayID),
		zap.Int("persisted", persisted),
		zap.Int("skipped", skipped),
	)

	// 6. fan-out：读数已落库，发布失败只记录，不算消息失败
	c.publishFrameEvent(frame, gmac, gatewayID, persisted, skipped)

	return nil
}

// publishFrameEvent 将标准化帧事件发布到 Redis Streams 供下游消费
func (c *MQTTConsumer) publishFrameEvent(frame *models.Frame, gmac string, gatewayID int64, persisted, skipped int) {
	stream := c.config.Beacon.Stream
	if c.redisClient == nil || stream == "" {
		return
	}

	event := FrameEvent{
		GMAC:      gmac,
		GatewayID: gatewayID,
		Persisted: persisted,
		Skipped:   skipped,
		Entries:   frame.Entries,
		Timestamp: time.Now().Unix(),
	}

	streamID, err := rediscommon.PublishJSONToStream(context.Background(), c.redisClient, stream, event)
	if err != nil {
		c.logger.Error("Failed to publish frame event to Redis Streams",
			zap.String("stream", stream),
			zap.String("gmac", gmac),
			zap.Error(err),
		)
		return
	}

	c.logger.Debug("Published frame event to Redis Streams",
		zap.String("stream", stream),
		zap.String("stream_id", streamID),
	)
}
