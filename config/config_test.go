package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.27, cfg.Payment.Rate)
	assert.Equal(t, "paypal", cfg.Payment.Provider)
	assert.Equal(t, 5, cfg.Notification.HorizonDays)
	assert.Equal(t, "live_key_", cfg.PublicAPI.LivePrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.SessionTTL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "stripe", cfg.Payment.Provider)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYMENT_PROVIDER", "cash")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cash")
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.GetDSN())
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.GetURL())
}
