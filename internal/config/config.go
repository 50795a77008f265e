package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server          ServerConfig
	Registry        RegistryConfig
	ContentDatabase ContentDatabaseConfig
	Network         NetworkConfig
	Provisioner     ProvisionerConfig
	Observability   ObservabilityConfig
	Security        SecurityConfig
	RateLimit       RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// DevMode widens error responses with collaborator detail. Never
	// enable outside local development.
	DevMode bool
}

// RegistryConfig holds the tenant registry database configuration
type RegistryConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ContentDatabaseConfig holds the content database cluster configuration,
// where per-tenant stores are provisioned as isolated schemas
type ContentDatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NetworkConfig holds the edge gateway and probing configuration
type NetworkConfig struct {
	// GatewayBaseURL is the admin API of the edge gateway that owns DNS,
	// TLS and reverse-proxy routing for tenant domains.
	GatewayBaseURL string
	GatewayToken   string
	GatewayTimeout time.Duration
	GatewayRetries int
	// DNSZone is the platform zone that subdomains resolve under.
	DNSZone string
	// CertExpiryWarn is how close to expiry a certificate may get before
	// status reports degrade.
	CertExpiryWarn time.Duration
}

// ProvisionerConfig holds lifecycle orchestration limits
type ProvisionerConfig struct {
	StoreTimeout        time.Duration
	IdentityTimeout     time.Duration
	NetworkTimeout      time.Duration
	CompensationTimeout time.Duration
	ProbeTimeout        time.Duration
	AnalyticsTimeout    time.Duration
	BulkConcurrency     int
	SecretLength        int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
	TraceSampling  float64
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
	// OperatorTokenSecret signs the bearer tokens that guard the API.
	OperatorTokenSecret string
	OperatorTokenTTL    time.Duration
	OperatorTokenIssuer string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			DevMode:      parseBool("SERVER_DEV_MODE", false),
		},
		Registry: RegistryConfig{
			Host:            getEnv("REGISTRY_DB_HOST", "localhost"),
			Port:            getEnv("REGISTRY_DB_PORT", "5432"),
			User:            getEnv("REGISTRY_DB_USER", "pressplane"),
			Password:        getEnv("REGISTRY_DB_PASSWORD", ""),
			Database:        getEnv("REGISTRY_DB_NAME", "pressplane_registry"),
			SSLMode:         getEnv("REGISTRY_DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("REGISTRY_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("REGISTRY_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("REGISTRY_DB_CONN_MAX_LIFETIME", "5m"),
		},
		ContentDatabase: ContentDatabaseConfig{
			Host:            getEnv("CONTENT_DB_HOST", "localhost"),
			Port:            getEnv("CONTENT_DB_PORT", "5432"),
			User:            getEnv("CONTENT_DB_USER", "pressplane"),
			Password:        getEnv("CONTENT_DB_PASSWORD", ""),
			Database:        getEnv("CONTENT_DB_NAME", "pressplane_content"),
			SSLMode:         getEnv("CONTENT_DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("CONTENT_DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    parseInt("CONTENT_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: parseDuration("CONTENT_DB_CONN_MAX_LIFETIME", "5m"),
		},
		Network: NetworkConfig{
			GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:9090"),
			GatewayToken:   getEnv("GATEWAY_TOKEN", ""),
			GatewayTimeout: parseDuration("GATEWAY_TIMEOUT", "10s"),
			GatewayRetries: parseInt("GATEWAY_RETRIES", 2),
			DNSZone:        getEnv("DNS_ZONE", "pressplane.site"),
			CertExpiryWarn: parseDuration("CERT_EXPIRY_WARN", "336h"),
		},
		Provisioner: ProvisionerConfig{
			StoreTimeout:        parseDuration("PROVISION_STORE_TIMEOUT", "30s"),
			IdentityTimeout:     parseDuration("PROVISION_IDENTITY_TIMEOUT", "10s"),
			NetworkTimeout:      parseDuration("PROVISION_NETWORK_TIMEOUT", "30s"),
			CompensationTimeout: parseDuration("PROVISION_COMPENSATION_TIMEOUT", "15s"),
			ProbeTimeout:        parseDuration("STATUS_PROBE_TIMEOUT", "5s"),
			AnalyticsTimeout:    parseDuration("ANALYTICS_READ_TIMEOUT", "5s"),
			BulkConcurrency:     parseInt("BULK_CONCURRENCY", 4),
			SecretLength:        parseInt("PROVISION_SECRET_LENGTH", 16),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "pressplane"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
			TraceSampling:  parseFloat("OTEL_TRACE_SAMPLING", 1.0),
		},
		Security: SecurityConfig{
			Argon2Memory:        uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:    uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:   uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:    uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:     uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
			OperatorTokenSecret: getEnv("OPERATOR_TOKEN_SECRET", ""),
			OperatorTokenTTL:    parseDuration("OPERATOR_TOKEN_TTL", "1h"),
			OperatorTokenIssuer: getEnv("OPERATOR_TOKEN_ISSUER", "pressplane"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Registry.Password == "" {
		return fmt.Errorf("REGISTRY_DB_PASSWORD is required")
	}
	if c.ContentDatabase.Password == "" {
		return fmt.Errorf("CONTENT_DB_PASSWORD is required")
	}
	if c.Security.OperatorTokenSecret == "" {
		return fmt.Errorf("OPERATOR_TOKEN_SECRET is required")
	}
	if len(c.Security.OperatorTokenSecret) < 32 {
		return fmt.Errorf("OPERATOR_TOKEN_SECRET must be at least 32 characters")
	}
	if c.Provisioner.BulkConcurrency < 1 {
		return fmt.Errorf("BULK_CONCURRENCY must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
