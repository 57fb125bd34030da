// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxValidatorFanout caps how many validators are notified for one escalation.
const MaxValidatorFanout = 10

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL used for rate limiting (e.g. redis://localhost:6379/0). Empty disables rate limiting.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTPublicKey is the PEM-encoded public key (or path) used to validate validator bearer tokens.
	// When empty, the approve endpoint does not require a bearer token.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTPrivateKey is only used by cmd/seed to mint a development validator token.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_AUDIENCE"`
	// JWTValidatorTTL is the lifetime of development validator tokens minted by cmd/seed.
	JWTValidatorTTL string `mapstructure:"JWT_VALIDATOR_TTL"`
	// BcryptCost is the bcrypt cost for challenge answers (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// DefaultLanguage and DefaultPersona terminate the localization fallback chain.
	DefaultLanguage string `mapstructure:"DEFAULT_LANGUAGE"`
	DefaultPersona  string `mapstructure:"DEFAULT_PERSONA"`
	// DeepLinkBaseURL prefixes the validator deep link (e.g. https://portal.example.ci/validate).
	DeepLinkBaseURL string `mapstructure:"DEEP_LINK_BASE_URL"`
	// ValidatorFanoutLimit is the number of validators notified per AGENT escalation (1–10).
	ValidatorFanoutLimit int `mapstructure:"VALIDATOR_FANOUT_LIMIT"`

	// RateLimitMaxRequests and RateLimitWindow configure the per-key fixed window.
	RateLimitMaxRequests int    `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitWindow      string `mapstructure:"RATE_LIMIT_WINDOW"`
	// JanitorInterval is how often stale pending tickets are expired (e.g. "1m"). "0" disables.
	JanitorInterval string `mapstructure:"JANITOR_INTERVAL"`

	// Notifications. When Kafka brokers are set, the dispatcher publishes to NotifyKafkaTopic.
	KafkaBrokers     string `mapstructure:"KAFKA_BROKERS"`
	NotifyKafkaTopic string `mapstructure:"NOTIFY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Worker-only delivery settings.
	SMSLocalAPIKey   string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalSender   string `mapstructure:"SMS_LOCAL_SENDER"`
	SMSLocalBaseURL  string `mapstructure:"SMS_LOCAL_BASE_URL"`
	PushBaseURL      string `mapstructure:"PUSH_BASE_URL"`
	PushTokenURL     string `mapstructure:"PUSH_TOKEN_URL"`
	PushClientID     string `mapstructure:"PUSH_CLIENT_ID"`
	PushClientSecret string `mapstructure:"PUSH_CLIENT_SECRET"`
	// LokiURL is where the worker ships delivery records (e.g. http://localhost:3100). Optional.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint. Empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "voicetrust-portal")
	v.SetDefault("JWT_AUDIENCE", "voicetrust-api")
	v.SetDefault("JWT_VALIDATOR_TTL", "12h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("DEFAULT_LANGUAGE", "fr")
	v.SetDefault("DEFAULT_PERSONA", "neutral")
	v.SetDefault("DEEP_LINK_BASE_URL", "voicetrust://validate")
	v.SetDefault("VALIDATOR_FANOUT_LIMIT", MaxValidatorFanout)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "10m")
	v.SetDefault("JANITOR_INTERVAL", "1m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "voicetrust-notifications")
	v.SetDefault("KAFKA_GROUP_ID", "voicetrust-notification-worker")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("PUSH_BASE_URL", "")
	v.SetDefault("PUSH_TOKEN_URL", "")
	v.SetDefault("PUSH_CLIENT_ID", "")
	v.SetDefault("PUSH_CLIENT_SECRET", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DefaultLanguage == "" || cfg.DefaultPersona == "" {
		return nil, errors.New("config: DEFAULT_LANGUAGE and DEFAULT_PERSONA must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.ValidatorFanoutLimit < 1 || cfg.ValidatorFanoutLimit > MaxValidatorFanout {
		return nil, errors.New("config: VALIDATOR_FANOUT_LIMIT must be between 1 and 10")
	}
	if cfg.RateLimitMaxRequests < 0 {
		return nil, errors.New("config: RATE_LIMIT_MAX_REQUESTS must not be negative")
	}

	return &cfg, nil
}

// AuthEnabled reports whether validator bearer tokens are required on the approve endpoint.
func (c *Config) AuthEnabled() bool {
	return c != nil && strings.TrimSpace(c.JWTPublicKey) != ""
}

// RateLimitWindowDuration parses RateLimitWindow. Returns 10m if unset or invalid.
func (c *Config) RateLimitWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// JanitorIntervalDuration parses JanitorInterval. Returns 0 (disabled) when set to "0" or invalid.
func (c *Config) JanitorIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.JanitorInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ValidatorTokenTTL parses JWTValidatorTTL. Returns 12h if unset or invalid.
func (c *Config) ValidatorTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTValidatorTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if notification publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
