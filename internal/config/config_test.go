package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("MQTT_ENABLED", "")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "ward:discharge:events", cfg.Events.Stream)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Discharge.DecisionLockTTL)
	assert.Equal(t, 10*time.Second, cfg.Discharge.DecisionTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("DECISION_LOCK_TTL_SECONDS", "5")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.Discharge.DecisionLockTTL)
}

func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	cfg := Load()

	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "ward",
		Password: "secret",
		Database: "ward",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=ward password=secret dbname=ward sslmode=disable", c.GetDSN())
}
