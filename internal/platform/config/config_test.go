package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"EXAMFLOW_ADDR", "DATABASE_URL", "JWT_SIGNING_KEY", "REDIS_URL", "KAFKA_BROKERS", "TX_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.UsesDevSigningKey())
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "examflow.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EXAMFLOW_ADDR", ":9090")
	t.Setenv("JWT_SIGNING_KEY", "s3cret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("TX_TIMEOUT", "2s")
	t.Setenv("DIRECTORY_CACHE_TTL", "not-a-duration")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.False(t, cfg.UsesDevSigningKey())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DirectoryCacheTTL)
}
