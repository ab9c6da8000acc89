package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Local Cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// Remote Wishlist Store backends.
const (
	WishlistPostgres = "postgres"
	WishlistHTTP     = "http"
	WishlistMemory   = "memory"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// Local Cache
	LocalCacheBackend  string `env:"LOCAL_CACHE_BACKEND" envDefault:"redis"`
	LocalCacheTTLHours int    `env:"LOCAL_CACHE_TTL_HOURS" envDefault:"720"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Remote Wishlist Store
	WishlistBackend string `env:"WISHLIST_BACKEND" envDefault:"postgres"`
	UserServiceURL  string `env:"USER_SERVICE_URL" envDefault:"http://localhost:8006"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTTokenExpiry time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`

	// Sessions
	SessionIdleMinutes int `env:"SESSION_IDLE_MINUTES" envDefault:"60"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting, per session. RATE_LIMIT_RPS=0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Load reads configuration from a .env file, if present, and the
// environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.LocalCacheBackend {
	case CacheRedis, CacheMemory:
	default:
		return fmt.Errorf("LOCAL_CACHE_BACKEND must be one of redis, memory; got %q", c.LocalCacheBackend)
	}

	switch c.WishlistBackend {
	case WishlistPostgres, WishlistHTTP, WishlistMemory:
	default:
		return fmt.Errorf("WISHLIST_BACKEND must be one of postgres, http, memory; got %q", c.WishlistBackend)
	}

	if c.SessionIdleMinutes < 1 {
		return fmt.Errorf("SESSION_IDLE_MINUTES must be positive, got %d", c.SessionIdleMinutes)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}

	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// LocalCacheTTL returns how long an idle shopper's records are kept.
func (c *Config) LocalCacheTTL() time.Duration {
	return time.Duration(c.LocalCacheTTLHours) * time.Hour
}

// SessionIdle returns how long a session may stay unused in memory.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// Postgres returns the pool settings for the wishlist database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the Local Cache Redis settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
		Timeout:  3 * time.Second,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}
