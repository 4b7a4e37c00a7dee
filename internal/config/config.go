// Package config provides environment configuration loading for the
// text-to-SQL analytics service.
//
// Configuration is loaded from environment variables with sensible defaults
// for development: the pipeline dialect and row limit, the parallel LLM
// provider list, the warehouse path, and the optional Redis cache and NATS
// event bus.
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load configuration:", err)
//	}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	// EnvDevelopment indicates a development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging indicates a staging environment.
	EnvStaging Environment = "staging"
	// EnvProduction indicates a production environment.
	EnvProduction Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application settings
	App AppConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Parallel LLM generation configuration
	Parallel ParallelConfig

	// Warehouse configuration
	Warehouse WarehouseConfig

	// Redis cache configuration
	Redis RedisConfig

	// NATS messaging configuration
	NATS NATSConfig

	// Server configuration
	Server ServerConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	// Environment is the application environment.
	Environment Environment

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string

	// LogFormat is the log output format (json, text).
	LogFormat string
}

// PipelineConfig holds the query pipeline settings.
type PipelineConfig struct {
	// Dialect selects the SQL flavor everywhere (DB2 or SQLite). Required.
	Dialect string

	// RowLimitDefault bounds unlimited non-aggregating queries.
	RowLimitDefault int
}

// ProviderConfig configures one LLM backend.
type ProviderConfig struct {
	// Kind is the backend identifier (ollama, openai, anthropic, deepseek,
	// mistral, openrouter).
	Kind string

	// Model is the model name for the backend.
	Model string

	// APIKey authenticates against hosted backends.
	APIKey string

	// BaseURL overrides the backend endpoint.
	BaseURL string

	// Timeout bounds one generation call.
	Timeout time.Duration
}

// ParallelConfig holds parallel generation settings.
type ParallelConfig struct {
	// Providers are the fan-out targets. Empty disables parallel mode.
	Providers []ProviderConfig

	// Preferred lists provider kinds that earn the selection bonus.
	Preferred []string
}

// WarehouseConfig holds the SQLite warehouse settings.
type WarehouseConfig struct {
	// Path is the database file path, ":memory:" for in-memory.
	Path string
}

// RedisConfig holds Redis cache settings. An empty Addr disables caching.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password (optional).
	Password string

	// Database is the Redis database number.
	Database int

	// TTL is how long cached pipeline results live.
	TTL time.Duration
}

// NATSConfig holds NATS messaging settings. An empty URL disables events.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string

	// MaxReconnects is the maximum number of reconnection attempts.
	MaxReconnects int

	// ReconnectWait is the wait duration between reconnection attempts.
	ReconnectWait time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the server port.
	Port int

	// Host is the server host.
	Host string

	// ReadTimeout is the read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config
// struct. It applies development defaults and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		App:       loadAppConfig(),
		Pipeline:  loadPipelineConfig(),
		Parallel:  loadParallelConfig(),
		Warehouse: loadWarehouseConfig(),
		Redis:     loadRedisConfig(),
		NATS:      loadNATSConfig(),
		Server:    loadServerConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error. Use at startup where
// configuration is required.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks that all required configuration values are present and
// valid.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToUpper(c.Pipeline.Dialect) {
	case "DB2", "SQLITE":
	default:
		errs = append(errs, fmt.Errorf("pipeline: dialect must be DB2 or SQLite, got %q", c.Pipeline.Dialect))
	}

	if c.Pipeline.RowLimitDefault < 1 {
		errs = append(errs, errors.New("pipeline: row limit must be at least 1"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server: port must be between 1 and 65535"))
	}

	for i, p := range c.Parallel.Providers {
		if p.Kind == "" || p.Model == "" {
			errs = append(errs, fmt.Errorf("parallel: provider %d needs both kind and model", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// LogConfig logs the current configuration with secrets masked.
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("Configuration loaded",
		slog.Group("app",
			slog.String("environment", string(c.App.Environment)),
			slog.String("log_level", c.App.LogLevel),
			slog.String("log_format", c.App.LogFormat),
		),
		slog.Group("pipeline",
			slog.String("dialect", c.Pipeline.Dialect),
			slog.Int("row_limit_default", c.Pipeline.RowLimitDefault),
		),
		slog.Group("parallel",
			slog.Int("providers", len(c.Parallel.Providers)),
			slog.String("preferred", strings.Join(c.Parallel.Preferred, ",")),
		),
		slog.Group("warehouse",
			slog.String("path", c.Warehouse.Path),
		),
		slog.Group("redis",
			slog.String("addr", c.Redis.Addr),
			slog.Bool("password_set", c.Redis.Password != ""),
		),
		slog.Group("nats",
			slog.String("url", c.NATS.URL),
		),
		slog.Group("server",
			slog.String("host", c.Server.Host),
			slog.Int("port", c.Server.Port),
		),
	)
}

// loadAppConfig loads application settings from environment variables.
func loadAppConfig() AppConfig {
	return AppConfig{
		Environment: parseEnvironment(getEnv("APP_ENV", "development")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

// loadPipelineConfig loads pipeline settings from environment variables.
func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Dialect:         getEnv("PIPELINE_DIALECT", "DB2"),
		RowLimitDefault: getEnvInt("PIPELINE_ROW_LIMIT", 1000),
	}
}

// loadParallelConfig loads the provider fan-out list. Providers are declared
// as a comma-separated list of kind:model pairs, with credentials per kind:
//
//	LLM_PROVIDERS=ollama:codellama,openai:gpt-4o,deepseek:deepseek-chat
//	LLM_API_KEY_OPENAI=sk-...
func loadParallelConfig() ParallelConfig {
	cfg := ParallelConfig{
		Preferred: splitList(getEnv("LLM_PREFERRED", "")),
	}

	for _, entry := range splitList(getEnv("LLM_PROVIDERS", "")) {
		kind, model, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(kind) == "" || strings.TrimSpace(model) == "" {
			continue
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Kind:    kind,
			Model:   strings.TrimSpace(model),
			APIKey:  getEnv("LLM_API_KEY_"+strings.ToUpper(kind), ""),
			BaseURL: getEnv("LLM_BASE_URL_"+strings.ToUpper(kind), ""),
			Timeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		})
	}

	return cfg
}

// loadWarehouseConfig loads warehouse settings from environment variables.
func loadWarehouseConfig() WarehouseConfig {
	return WarehouseConfig{
		Path: getEnv("WAREHOUSE_PATH", ":memory:"),
	}
}

// loadRedisConfig loads Redis settings from environment variables.
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		Database: getEnvInt("REDIS_DB", 0),
		TTL:      getEnvDuration("REDIS_TTL", 5*time.Minute),
	}
}

// loadNATSConfig loads NATS settings from environment variables.
func loadNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           getEnv("NATS_URL", ""),
		MaxReconnects: getEnvInt("NATS_MAX_RECONNECTS", 10),
		ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
	}
}

// loadServerConfig loads HTTP server settings from environment variables.
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvInt("SERVER_PORT", 8080),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// parseEnvironment converts a string to Environment type.
func parseEnvironment(env string) Environment {
	switch strings.ToLower(env) {
	case "production", "prod":
		return EnvProduction
	case "staging", "stage":
		return EnvStaging
	default:
		return EnvDevelopment
	}
}

// splitList splits a comma-separated environment value into trimmed,
// non-empty entries.
func splitList(value string) []string {
	var out []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a
// default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns
// a default value. Supports Go duration strings (e.g., "5m", "30s").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
