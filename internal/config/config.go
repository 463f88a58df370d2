// Package config loads service configuration from the environment, with an
// optional .env file for local runs and a YAML file for rate-limit tiers.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Logging  LoggingConfig

	// RateLimits is loaded separately from YAML; see LoadRateLimits.
	RateLimits RateLimits
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `env:"APP_NAME,default=portal-api"`
	Environment string `env:"ENV,default=dev"`
	Version     string `env:"VERSION,default=v0.1.0"`
}

// IsProd reports whether this is the production environment.
func (c AppConfig) IsProd() bool { return c.Environment == "prod" }

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"HOST,default=127.0.0.1"`
	Port            int           `env:"PORT,default=8000"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT,default=10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	Host            string        `env:"DATABASE_HOST,default=localhost"`
	Port            string        `env:"DATABASE_PORT,default=5432"`
	User            string        `env:"DATABASE_USER,default=postgres"`
	Password        string        `env:"DATABASE_PASSWORD,default="`
	Name            string        `env:"DATABASE_NAME,default=postgres"`
	SSLMode         string        `env:"DATABASE_SSLMODE,default=disable"`
	ApplicationName string        `env:"DATABASE_APPLICATION_NAME,default=portal-api"`
	MaxOpenConns    int           `env:"DATABASE_CONNECTION_POOL_MAX_SIZE,default=10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=5m"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.ApplicationName,
	)
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST,default=localhost"`
	Port     string `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD,default="`
	DB       int    `env:"REDIS_DB,default=0"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", c.Host, c.Port) }

// AuthConfig configures token verification.
type AuthConfig struct {
	JWTSecret              string        `env:"JWT_SECRET_KEY,default="`
	AccessTokenTTL         time.Duration `env:"JWT_ACCESS_TOKEN_TTL,default=15m"`
	BlacklistCleanupEvery  time.Duration `env:"TOKEN_BLACKLIST_CLEANUP_INTERVAL,default=1h"`
	RateLimitCleanupEvery  time.Duration `env:"RATE_LIMITER_CLEANUP_INTERVAL,default=10m"`
	RateLimitersConfigPath string        `env:"RATE_LIMITERS_CONFIG_PATH,default="`
}

// LoggingConfig configures pkg/logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Load reads configuration from the environment. A .env file is honoured when
// present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.RateLimits = LoadRateLimits(cfg.Auth.RateLimitersConfigPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DATABASE_USER is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}
	if c.App.IsProd() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required in prod")
	}
	return nil
}
