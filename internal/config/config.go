package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	StartTime time.Time `mapstructure:"-"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	Version         string        `mapstructure:"version"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Global  int           `mapstructure:"global"`
	PerUser int           `mapstructure:"per_user"`
	PerIP   int           `mapstructure:"per_ip"`
	Window  time.Duration `mapstructure:"window"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	Issuer      string        `mapstructure:"issuer"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// RedisConfig holds the Redis connection used by the result cache and rate limiter
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds the audit and market data database settings
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	TTL                  time.Duration `mapstructure:"ttl"`
	CompressionThreshold int           `mapstructure:"compression_threshold"`
}

// EngineConfig holds risk engine settings
type EngineConfig struct {
	MarketData      string        `mapstructure:"market_data"` // synthetic | postgres
	LookbackDays    int           `mapstructure:"lookback_days"`
	MinObservations int           `mapstructure:"min_observations"`
	DefaultNotional float64       `mapstructure:"default_notional"`
	ComputeTimeout  time.Duration `mapstructure:"compute_timeout"`
}

// AuditConfig holds audit dispatch settings
type AuditConfig struct {
	Sinks        []string      `mapstructure:"sinks"` // log | postgres | kafka
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Kafka        KafkaConfig   `mapstructure:"kafka"`
}

// KafkaConfig holds the audit stream settings
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json | console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

const minSecretLength = 32

var (
	ErrMissingSecret     = errors.New("auth.jwt_secret must be at least 32 characters")
	ErrInvalidMarketData = errors.New("engine.market_data must be synthetic or postgres")
	ErrPostgresRequired  = errors.New("postgres must be enabled for the selected component")
)

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// HasAuditSink reports whether the named audit sink is configured
func (c *Config) HasAuditSink(name string) bool {
	for _, s := range c.Audit.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// Validate checks cross-field constraints that defaults cannot express
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minSecretLength {
		return ErrMissingSecret
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Engine.MarketData {
	case "synthetic":
	case "postgres":
		if !c.Postgres.Enabled {
			return fmt.Errorf("engine.market_data=postgres: %w", ErrPostgresRequired)
		}
	default:
		return ErrInvalidMarketData
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "log", "kafka":
		case "postgres":
			if !c.Postgres.Enabled {
				return fmt.Errorf("audit sink postgres: %w", ErrPostgresRequired)
			}
		default:
			return fmt.Errorf("unknown audit sink %q", sink)
		}
	}
	if c.HasAuditSink("kafka") && len(c.Audit.Kafka.Brokers) == 0 {
		return errors.New("audit.kafka.brokers is required for the kafka sink")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Engine.MinObservations < 2 {
		return fmt.Errorf("engine.min_observations must be at least 2, got %d", c.Engine.MinObservations)
	}
	if c.Engine.LookbackDays < c.Engine.MinObservations {
		return fmt.Errorf("engine.lookback_days (%d) is below engine.min_observations (%d)",
			c.Engine.LookbackDays, c.Engine.MinObservations)
	}
	return nil
}
