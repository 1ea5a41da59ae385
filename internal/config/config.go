package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 信标遥测服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// Beacon 服务特定配置
	Beacon struct {
		Topic  string // 网关遥测 MQTT 主题
		Stream string // Redis Streams 输出流，空字符串关闭 fan-out
	}

	// Smoothing RSSI 平滑滤波（默认关闭）
	Smoothing struct {
		Enabled          bool
		ProcessNoise     float64
		MeasurementNoise float64
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "beacons")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "mqtt://localhost:1884")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "beacon-telemetry")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Beacon.Topic = getEnv("BEACON_TOPIC", "test/topic")
	// 显式置空 BEACON_STREAM 可关闭 fan-out，因此这里区分"未设置"和"空值"
	if stream, ok := os.LookupEnv("BEACON_STREAM"); ok {
		cfg.Beacon.Stream = stream
	} else {
		cfg.Beacon.Stream = "beacon:readings:stream"
	}

	cfg.Smoothing.Enabled = getEnvBool("SMOOTHING_ENABLED", false)
	cfg.Smoothing.ProcessNoise = getEnvFloat("SMOOTHING_PROCESS_NOISE", 0.008)
	cfg.Smoothing.MeasurementNoise = getEnvFloat("SMOOTHING_MEASUREMENT_NOISE", 4.0)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":3000")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
