package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration for a gateway instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "analytics-gateway"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // HTTP API port
	MetricsPort int    // Prometheus metrics port

	DatabaseURL string // Postgres tenant settings store; empty = in-memory provider
	RedisAddr   string // e.g. localhost:6379
	RedisDB     int
	RedisPass   string
	NATSURL     string // e.g. nats://localhost:4222; empty disables audit events
	AWSRegion   string // for the Secrets Manager client

	// Token cache TTLs. Each is deliberately shorter than the analytics
	// service's own lifetime for that token class, so a cache hit never
	// hands out a token the server would reject.
	AccessTokenTTL time.Duration
	CSRFTokenTTL   time.Duration
	GuestTokenTTL  time.Duration

	// Outbound call behavior against the analytics service.
	RetryMax       int           // transient retries beyond the first attempt
	LoginTimeout   time.Duration // login / csrf / guest token exchanges
	RequestTimeout time.Duration // listing, detail, thumbnail fetches

	CredentialTTL time.Duration // TTL for resolved admin credentials
	CleanupFreq   time.Duration // frequency of the credential cache cleaner

	AuditSubjectPrefix string // NATS subject prefix for audit events
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "analytics-gateway"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("GATEWAY_PORT", 9040),
		MetricsPort: GetEnvInt("METRICS_PORT", 9041),

		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisAddr:   GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     GetEnvInt("REDIS_DB", 0),
		RedisPass:   GetEnv("REDIS_PASS", ""),
		NATSURL:     GetEnv("NATS_URL", "nats://localhost:4222"),
		AWSRegion:   GetEnv("AWS_REGION", "us-east-2"),

		AccessTokenTTL: GetEnvDuration("ACCESS_TOKEN_TTL", 55*time.Minute),
		CSRFTokenTTL:   GetEnvDuration("CSRF_TOKEN_TTL", 25*time.Minute),
		GuestTokenTTL:  GetEnvDuration("GUEST_TOKEN_TTL", 4*time.Minute),

		RetryMax:       GetEnvInt("RETRY_MAX", 2),
		LoginTimeout:   GetEnvDuration("LOGIN_TIMEOUT", 10*time.Second),
		RequestTimeout: GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		CredentialTTL: GetEnvDuration("CREDENTIAL_TTL", 30*time.Minute),
		CleanupFreq:   GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),

		AuditSubjectPrefix: GetEnv("AUDIT_SUBJECT_PREFIX", "evt.analytics"),
	}
}
