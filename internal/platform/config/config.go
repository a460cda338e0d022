package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Deletion  DeletionConfig
	Evidence  EvidenceConfig
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// DatabaseConfig configures the PostgreSQL connection. An empty URL selects
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the shared deletion state store. An empty URL keeps
// deletion state process-local.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// EventsChannel carries deletion state transitions between instances.
	EventsChannel string
}

// KafkaConfig configures the optional audit mirror. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// DeletionConfig bounds the two blocking operations of the workflow.
type DeletionConfig struct {
	// StoreTimeout bounds the destructive call against the evidence store.
	StoreTimeout time.Duration
	// StatusWait is the long-poll wait used when the caller does not ask for one.
	StatusWait time.Duration
	// StatusMaxWait caps caller-requested waits.
	StatusMaxWait time.Duration
	// ResourceLabel names the deleted record kind in prompts and messages.
	ResourceLabel string
}

// EvidenceConfig seeds the in-memory evidence store used when no database is
// configured.
type EvidenceConfig struct {
	SeedIDs []string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:      getEnv("CASEVAULT_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Auth: AuthConfig{
			JWTSigningKey: jwtSigningKey,
			JWTIssuer:     getEnv("JWT_ISSUER", "casevault"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "casevault-api"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			EventsChannel: getEnv("REDIS_DELETION_CHANNEL", "casevault:deletion:events"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "casevault.audit"),
		},
		Deletion: DeletionConfig{
			StoreTimeout:  getEnvDuration("DELETION_STORE_TIMEOUT", 5*time.Second),
			StatusWait:    getEnvDuration("DELETION_STATUS_WAIT", 10*time.Second),
			StatusMaxWait: getEnvDuration("DELETION_STATUS_MAX_WAIT", 30*time.Second),
			ResourceLabel: getEnv("DELETION_RESOURCE_LABEL", "Evidence"),
		},
		Evidence: EvidenceConfig{
			SeedIDs: splitList(os.Getenv("EVIDENCE_SEED_IDS")),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
