package config

import "time"

// Dead-letter archive backends selectable through DeadLetterConfig.Backend.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue" validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker" validate:"required"`
	DeadLetter DeadLetterConfig `mapstructure:"dead_letter" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// ServerConfig contains the admin HTTP server and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig controls defaults applied to tasks submitted to the queue.
type QueueConfig struct {
	DefaultMaxRetries int `mapstructure:"default_max_retries" validate:"gte=0"`
}

// WorkerConfig controls the worker pool driving the queue.
type WorkerConfig struct {
	Count        int           `mapstructure:"count" validate:"required,gt=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
}

// DeadLetterConfig selects and configures the durable dead-letter archive.
type DeadLetterConfig struct {
	Backend    string `mapstructure:"backend" validate:"required,oneof=file sqlite postgres redis"`
	Path       string `mapstructure:"path" validate:"required_if=Backend file"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
}

// DatabaseConfig contains the PostgreSQL settings used by the postgres backend.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains the settings used by the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Key      string `mapstructure:"key"`
}

// AuthConfig contains the operator authentication settings.
// An empty JWTSecret disables authentication on the admin API.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// AuthEnabled reports whether the admin API should require a bearer token.
func (c AuthConfig) AuthEnabled() bool {
	return c.JWTSecret != ""
}
