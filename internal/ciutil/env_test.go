package ciutil

import (
	"testing"

	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func clearCI(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvCircleCI, EnvRequireServices} {
		t.Setenv(v, "")
	}
}

func TestIsCI(t *testing.T) {
	clearCI(t)
	assert.False(t, IsCI())

	t.Setenv(EnvGitHubActions, "true")
	assert.True(t, IsCI())
}

func TestGetEnvWithFallbacks(t *testing.T) {
	log, buf := logger.NewTestLogger(t)
	t.Setenv("TASKCORE_PRIMARY", "")
	t.Setenv("TASKCORE_LEGACY", "postgres://app:s3cr3t-pass@db:5432/app")

	got := GetEnvWithFallbacks([]string{"TASKCORE_PRIMARY", "TASKCORE_LEGACY"}, "default", log)
	assert.Equal(t, "postgres://app:s3cr3t-pass@db:5432/app", got)
	logger.AssertLogContains(t, buf, "Using fallback environment variable")
	assert.NotContains(t, buf.String(), "s3cr3t-pass")

	t.Setenv("TASKCORE_LEGACY", "")
	assert.Equal(t, "default", GetEnvWithFallbacks([]string{"TASKCORE_PRIMARY", "TASKCORE_LEGACY"}, "default", nil))
}

func TestTestBackends(t *testing.T) {
	t.Setenv(EnvTestDatabaseURL, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvTestRedisAddr, "")
	assert.Empty(t, TestDatabaseURL(nil))
	assert.Equal(t, DefaultTestRedisAddr, TestRedisAddr(nil))

	t.Setenv(EnvDatabaseURL, "postgres://localhost/taskcore_test")
	assert.Equal(t, "postgres://localhost/taskcore_test", TestDatabaseURL(nil))

	t.Setenv(EnvTestDatabaseURL, "postgres://localhost/preferred")
	assert.Equal(t, "postgres://localhost/preferred", TestDatabaseURL(nil))

	t.Setenv(EnvTestRedisAddr, "redis:6380")
	assert.Equal(t, "redis:6380", TestRedisAddr(nil))
}

func TestRequireServices(t *testing.T) {
	clearCI(t)
	assert.False(t, RequireServices())

	t.Setenv(EnvCI, "1")
	assert.True(t, RequireServices())

	t.Setenv(EnvRequireServices, "false")
	assert.False(t, RequireServices())

	t.Setenv(EnvCI, "")
	t.Setenv(EnvRequireServices, "yes-please")
	assert.False(t, RequireServices())
}
