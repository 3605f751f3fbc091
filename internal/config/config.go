package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config ward-discharge（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Store struct {
		// Backend "postgres" | "memory"
		Backend string
	}
	SeedDemo bool
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Events    EventsConfig
	MQTT      MQTTConfig
	Discharge DischargeConfig
}

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

// GetDSN returns the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// EventsConfig decision event stream
type EventsConfig struct {
	Enabled bool
	Stream  string
}

// MQTTConfig ward display publisher (disabled by default)
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// DischargeConfig decision workflow tuning
type DischargeConfig struct {
	DecisionLockTTL time.Duration
	DecisionTimeout time.Duration
}

func Load() *Config {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// postgres falls back to memory at startup if the DB is unreachable.
	cfg.Store.Backend = getEnv("STORE_BACKEND", "postgres")
	cfg.SeedDemo = getEnv("SEED_DEMO", "true") == "true"

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "ward")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Events.Enabled = getEnv("EVENTS_ENABLED", "true") == "true"
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "ward:discharge:events")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ward-discharge")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "ward/discharge")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Discharge.DecisionLockTTL = time.Duration(parseInt(getEnv("DECISION_LOCK_TTL_SECONDS", "30"), 30)) * time.Second
	cfg.Discharge.DecisionTimeout = time.Duration(parseInt(getEnv("DECISION_TIMEOUT_SECONDS", "10"), 10)) * time.Second

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
