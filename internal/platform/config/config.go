package config

import (
	"os"
	"strconv"
	"time"

	"examflow/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	JWTIssuer     string
	LogLevel      string
	// TxTimeout bounds a workflow unit of work when the caller has no deadline.
	TxTimeout         time.Duration
	DirectoryCacheTTL time.Duration
	// DirectorySeedFile is a JSON array of staff loaded into the directory at startup.
	DirectorySeedFile string
	Redis             RedisConfig
	Kafka             KafkaConfig
}

// RedisConfig configures the optional directory cache. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit relay. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	// RelayBuffer is the number of audit entries queued for the relay before drops.
	RelayBuffer int
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:              envOr("EXAMFLOW_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:         envOr("JWT_ISSUER", "examflow"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		TxTimeout:         durationOr("TX_TIMEOUT", 5*time.Second),
		DirectoryCacheTTL: durationOr("DIRECTORY_CACHE_TTL", 5*time.Minute),
		DirectorySeedFile: os.Getenv("DIRECTORY_SEED_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:  envOr("KAFKA_AUDIT_TOPIC", "examflow.audit"),
			RelayBuffer: intOr("KAFKA_RELAY_BUFFER", 1024),
		},
	}
}

// UsesDevSigningKey reports whether the JWT key was left at its development default.
func (s Server) UsesDevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}
