package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any env vars that might interfere with defaults.
	os.Unsetenv("CORE_DATABASE_URL")
	os.Unsetenv("TEMPORAL_ADDRESS")
	os.Unsetenv("HTTP_LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("USER_CONTENT_DOMAIN")
	os.Unsetenv("GITHUB_API_URL")
	os.Unsetenv("MIGRATIONS_DIR")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost:7233", cfg.TemporalAddress)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "runnableapp.com", cfg.UserContentDomain)
	assert.Equal(t, "https://api.github.com", cfg.GithubAPIURL)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "", cfg.CoreDatabaseURL)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("CORE_DATABASE_URL", "postgres://core:5432/coredb")
	t.Setenv("TEMPORAL_ADDRESS", "temporal.example.com:7233")
	t.Setenv("HTTP_LISTEN_ADDR", ":7071")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("USER_CONTENT_DOMAIN", "runnable.dev")
	t.Setenv("REALTIME_GATEWAY_URL", "http://gateway:3000")
	t.Setenv("BUILD_SERVICE_URL", "http://builder:4000")
	t.Setenv("MIGRATIONS_DIR", "/opt/runnable/migrations")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://core:5432/coredb", cfg.CoreDatabaseURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalAddress)
	assert.Equal(t, ":7071", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "runnable.dev", cfg.UserContentDomain)
	assert.Equal(t, "http://gateway:3000", cfg.RealtimeGatewayURL)
	assert.Equal(t, "http://builder:4000", cfg.BuildServiceURL)
	assert.Equal(t, "/opt/runnable/migrations", cfg.MigrationsDir)
}

func TestValidate_MissingCoreDB(t *testing.T) {
	cfg := &Config{TemporalAddress: "localhost:7233"}

	err := cfg.Validate("core-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORE_DATABASE_URL")
}

func TestValidate_Worker_MissingGateway(t *testing.T) {
	cfg := &Config{
		CoreDatabaseURL: "postgres://localhost/core",
		TemporalAddress: "localhost:7233",
		BuildServiceURL: "http://builder:4000",
	}

	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REALTIME_GATEWAY_URL")
}

func TestValidate_Worker_Complete(t *testing.T) {
	cfg := &Config{
		CoreDatabaseURL:    "postgres://localhost/core",
		TemporalAddress:    "localhost:7233",
		RealtimeGatewayURL: "http://gateway:3000",
		BuildServiceURL:    "http://builder:4000",
	}

	assert.NoError(t, cfg.Validate("worker"))
}

func TestValidate_CoreAPI_Complete(t *testing.T) {
	cfg := &Config{
		CoreDatabaseURL: "postgres://localhost/core",
		TemporalAddress: "localhost:7233",
		HTTPListenAddr:  ":8080",
	}

	assert.NoError(t, cfg.Validate("core-api"))
}
