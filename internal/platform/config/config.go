package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults that can be overridden via environment.
const (
	// DefaultGracePeriod is the window between an erasure request and its
	// irrevocable execution, during which cancellation is permitted.
	DefaultGracePeriod = 30 * 24 * time.Hour

	// DefaultAuditRetention is how long audit entries are kept before the
	// scheduled retention sweep may purge them.
	DefaultAuditRetention = 7 * 365 * 24 * time.Hour

	// DefaultSweepInterval is how often the erasure sweeper looks for due requests.
	DefaultSweepInterval = 1 * time.Minute
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr        string
	DatabaseURL string

	// Encryption
	MasterSecret     string
	ActiveKeyVersion uint32

	// Compliance
	GracePeriod          time.Duration
	AuditRetention       time.Duration
	ConsentPolicyVersion string
	ComplianceEnabled    bool

	// Auth
	JWTSigningKey string

	// Workers
	SweepInterval time.Duration

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds Kafka settings for the audit outbox publisher.
// Empty brokers disable publishing; the outbox then simply accumulates.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("NUCA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	gracePeriod := DefaultGracePeriod
	if d, ok := envDuration("NUCA_GRACE_PERIOD"); ok {
		gracePeriod = d
	}
	auditRetention := DefaultAuditRetention
	if d, ok := envDuration("NUCA_AUDIT_RETENTION"); ok {
		auditRetention = d
	}
	sweepInterval := DefaultSweepInterval
	if d, ok := envDuration("NUCA_SWEEP_INTERVAL"); ok {
		sweepInterval = d
	}

	masterSecret := os.Getenv("NUCA_ENCRYPTION_SECRET")
	if masterSecret == "" {
		// Development fallback - must be overridden in production
		masterSecret = "dev-secret-key-change-in-production"
	}

	activeVersion := uint32(1)
	if raw := os.Getenv("NUCA_ACTIVE_KEY_VERSION"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil && v > 0 {
			activeVersion = uint32(v)
		}
	}

	policyVersion := os.Getenv("NUCA_CONSENT_POLICY_VERSION")
	if policyVersion == "" {
		policyVersion = "1.0"
	}

	jwtSigningKey := os.Getenv("NUCA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	auditTopic := os.Getenv("NUCA_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "nuca.audit.entries"
	}

	return Config{
		Addr:                 addr,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MasterSecret:         masterSecret,
		ActiveKeyVersion:     activeVersion,
		GracePeriod:          gracePeriod,
		AuditRetention:       auditRetention,
		ConsentPolicyVersion: policyVersion,
		ComplianceEnabled:    os.Getenv("NUCA_COMPLIANCE_CHECKS") != "false",
		JWTSigningKey:        jwtSigningKey,
		SweepInterval:        sweepInterval,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("KAFKA_BROKERS"),
			AuditTopic: auditTopic,
		},
	}
}

func envDuration(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}
