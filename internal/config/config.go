package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every knob the process needs. It is built once in main via
// Load and never mutated afterwards.
type Config struct {
	HTTPAddress string
	LogLevel    string

	KafkaBrokers    []string
	KafkaGroupID    string
	KafkaAuditTopic string

	RedisAddr string
	RedisPass string

	LogQueueName      string
	ExportQueueName   string
	VisibilityTimeout time.Duration

	SearchURL  string
	SearchUser string
	SearchPass string

	BlobEndpoint  string
	BlobPublicURL string
	ExportBucket  string
	ExportDir     string

	RetentionDays    int
	RetentionCron    string
	RetentionTenants []string

	StatsCacheTTL time.Duration

	GeoIPDBPath string
}

func Load() Config {
	return Config{
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		KafkaBrokers:    getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "auditlog-ingest"),
		KafkaAuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "audit.events"),

		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		LogQueueName:      getEnv("LOG_QUEUE_NAME", "log-notifications"),
		ExportQueueName:   getEnv("EXPORT_QUEUE_NAME", "export-notifications"),
		VisibilityTimeout: getEnvDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),

		SearchURL:  getEnv("SEARCH_URL", "http://localhost:9200"),
		SearchUser: getEnv("SEARCH_USER", "admin"),
		SearchPass: getEnv("SEARCH_PASS", "admin"),

		BlobEndpoint:  getEnv("BLOB_ENDPOINT", "http://localhost:4566"),
		BlobPublicURL: getEnv("BLOB_PUBLIC_URL", "http://localhost:4566"),
		ExportBucket:  getEnv("EXPORT_BUCKET", "logs-export"),
		ExportDir:     getEnv("EXPORT_DIR", "/tmp/exports"),

		RetentionDays:    getEnvInt("RETENTION_DAYS", 90),
		RetentionCron:    getEnv("RETENTION_CRON", "0 3 * * *"),
		RetentionTenants: getEnvSlice("RETENTION_TENANTS", nil),

		StatsCacheTTL: getEnvDuration("STATS_CACHE_TTL", 60*time.Second),

		GeoIPDBPath: getEnv("GEOIP_DB_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
