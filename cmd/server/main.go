// Package main implements the taskcore server: a prioritized task queue
// drained by a worker pool, with failures archived in a durable dead-letter
// queue and an admin HTTP API for operators.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/platform/archive"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default ./config.yaml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before configuration; ignored when missing")
	migrateOnly := flag.Bool("migrate", false, "apply dead-letter schema migrations and exit")
	flag.Parse()

	if err := run(context.Background(), *configPath, *envFile, *migrateOnly); err != nil {
		log.Fatalf("taskcore server: %v", err)
	}
}

func run(ctx context.Context, configPath, envFile string, migrateOnly bool) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"dead_letter_backend", cfg.DeadLetter.Backend,
		"workers", cfg.Worker.Count,
		"auth_enabled", cfg.Auth.AuthEnabled())

	backend, err := archive.Open(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open dead letter archive: %w", err)
	}

	if migrateOnly {
		defer func() { _ = backend.Close() }()
		if err := backend.Migrate(ctx, appLogger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	}

	app, err := newApplication(cfg, appLogger, backend)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadEnvFile exports the variables in path into the process environment.
// Variables that are already set win over the file.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
