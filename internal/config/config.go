package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig
	Auth       AuthConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Peers      PeerConfig
	Ledger     LedgerConfig
	Outbox     OutboxConfig
	Projection ProjectionConfig
	Metrics    MetricsConfig
	LogLevel   string
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path, owned by the service
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string // JWT verification secret
}

// KafkaConfig contains fact-bus settings.
type KafkaConfig struct {
	Brokers []string // empty means no Kafka; services fall back to the in-process bus
	GroupID string   // consumer group, one per service
}

// PeerConfig points composition roots at the sqlite files of sibling
// services. Driver transitions write through the canonical order store and
// the admin console reads all three; everything else stays on the service's
// own Database.Path.
type PeerConfig struct {
	UserDBPath   string
	DriverDBPath string
	OrderDBPath  string
}

// RedisConfig contains projection-cache settings.
type RedisConfig struct {
	Addr string // empty means the in-process cache is used
}

// LedgerConfig contains balance-ledger settings.
type LedgerConfig struct {
	TopUpCeiling int64 // largest single top-up accepted
}

// OutboxConfig contains outbox-dispatcher settings.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// ProjectionConfig contains read-model settings.
type ProjectionConfig struct {
	TTL time.Duration // documented staleness bound of cached canonical reads
}

// MetricsConfig contains the metrics listener settings.
type MetricsConfig struct {
	Address string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}
	return cfg, nil
}

func loadCommon() (*Config, error) {
	ceiling, err := getEnvInt64("TOPUP_CEILING", 100_000_000)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	batchSize, err := getEnvInt("OUTBOX_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("PROJECTION_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "service.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			GroupID: getEnv("KAFKA_GROUP", ""),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", ""),
		},
		Peers: PeerConfig{
			UserDBPath:   getEnv("USER_DB_PATH", "user-service.db"),
			DriverDBPath: getEnv("DRIVER_DB_PATH", "driver-service.db"),
			OrderDBPath:  getEnv("ORDER_DB_PATH", "order-service.db"),
		},
		Ledger: LedgerConfig{
			TopUpCeiling: ceiling,
		},
		Outbox: OutboxConfig{
			PollInterval: pollInterval,
			BatchSize:    batchSize,
		},
		Projection: ProjectionConfig{
			TTL: ttl,
		},
		Metrics: MetricsConfig{
			Address: getEnv("METRICS_ADDR", ":2112"),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.Ledger.TopUpCeiling <= 0 {
		return nil, fmt.Errorf("TOPUP_CEILING must be > 0")
	}
	if cfg.Outbox.BatchSize <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be > 0")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	if value, exists := os.LookupEnv(key); exists {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return v, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, Kafka: %v, Auth: *** (masked) ***}", c.Database.Path, c.Kafka.Brokers)
}
