package ciutil

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/phrazzld/taskcore/internal/redact"
)

// Environment variables consulted by this package.
const (
	// CI environment detection variables
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// EnvTestDatabaseURL names a disposable PostgreSQL database that
	// integration tests may migrate and truncate.
	EnvTestDatabaseURL = "TASKCORE_TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"

	EnvTestRedisAddr = "TASKCORE_TEST_REDIS_ADDR"

	// EnvRequireServices turns "backend unavailable" skips into failures.
	EnvRequireServices = "TASKCORE_REQUIRE_SERVICES"

	DefaultTestRedisAddr = "127.0.0.1:6379"
)

// IsCI reports whether the process runs under a known CI provider.
func IsCI() bool {
	for _, v := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvCircleCI} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// GetEnvWithFallbacks returns the value of the first non-empty environment variable
// from the provided list. If no environment variables are set, it returns the defaultValue.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			if i > 0 && logger != nil {
				logger.Warn("Using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", redact.String(val),
				)
			}
			return val
		}
	}
	return defaultValue
}

// TestDatabaseURL returns the PostgreSQL URL for integration tests, or ""
// when none is configured.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
}

// TestRedisAddr returns the Redis address for integration tests.
func TestRedisAddr(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestRedisAddr}, DefaultTestRedisAddr, logger)
}

// RequireServices reports whether integration tests must fail, rather than
// skip, when their backing service is unavailable. It defaults to true in CI.
func RequireServices() bool {
	if raw := os.Getenv(EnvRequireServices); raw != "" {
		v, err := strconv.ParseBool(raw)
		return err == nil && v
	}
	return IsCI()
}
