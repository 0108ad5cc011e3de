package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TASKCORE"

// ErrBackendConfig is returned when the selected dead-letter backend is
// missing the connection settings it needs.
var ErrBackendConfig = errors.New("dead letter backend misconfigured")

// Load configuration from environment variables and an optional config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given YAML file instead of
// searching the working directory. An empty path falls back to the search.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about, so keys without a
	// default need an explicit binding to be picked up from the environment.
	for _, key := range []string{
		"database.url",
		"redis.addr",
		"redis.password",
		"auth.jwt_secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-section backend requirements.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	switch cfg.DeadLetter.Backend {
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("configuration validation failed: %w: postgres backend requires database.url",
				ErrBackendConfig)
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("configuration validation failed: %w: redis backend requires redis.addr",
				ErrBackendConfig)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("queue.default_max_retries", 3)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.timeout", "30s")
	v.SetDefault("worker.poll_interval", "100ms")

	v.SetDefault("dead_letter.backend", BackendFile)
	v.SetDefault("dead_letter.path", "data/dead_letters.jsonl")
	v.SetDefault("dead_letter.sqlite_path", "data/dead_letters.db")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "taskcore:dead_letters")

	v.SetDefault("auth.token_lifetime", "12h")
}
