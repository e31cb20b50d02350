package config

import (
	"fmt"
	"os"
)

type Config struct {
	ServiceName     string
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string

	// UserContentDomain is the apex under which instance hostnames are
	// rendered (e.g. runnableapp.com).
	UserContentDomain string

	// RealtimeGatewayURL receives instance/build update notifications as
	// webhook POSTs. The socket fan-out behind it is a separate service.
	RealtimeGatewayURL string

	// BuildServiceURL is the opaque image build service invoked for
	// auto-deploys and isolation redeploys.
	BuildServiceURL string

	// DeployChatWebhookURL and GithubAPIURL receive deploy notifications
	// (chat message, pull-request deployment status).
	DeployChatWebhookURL string
	GithubAPIURL         string

	MigrationsDir string

	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:           getEnv("SERVICE_NAME", ""),
		CoreDatabaseURL:       getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		UserContentDomain:     getEnv("USER_CONTENT_DOMAIN", "runnableapp.com"),
		RealtimeGatewayURL:    getEnv("REALTIME_GATEWAY_URL", ""),
		BuildServiceURL:       getEnv("BUILD_SERVICE_URL", ""),
		DeployChatWebhookURL:  getEnv("DEPLOY_CHAT_WEBHOOK_URL", ""),
		GithubAPIURL:          getEnv("GITHUB_API_URL", "https://api.github.com"),
		MigrationsDir:         getEnv("MIGRATIONS_DIR", "migrations"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
	}

	return cfg, nil
}

// Validate checks the fields required by the given binary.
func (c *Config) Validate(service string) error {
	if c.CoreDatabaseURL == "" {
		return fmt.Errorf("CORE_DATABASE_URL is required")
	}
	if c.TemporalAddress == "" {
		return fmt.Errorf("TEMPORAL_ADDRESS is required")
	}

	switch service {
	case "worker":
		if c.RealtimeGatewayURL == "" {
			return fmt.Errorf("REALTIME_GATEWAY_URL is required for the worker")
		}
		if c.BuildServiceURL == "" {
			return fmt.Errorf("BUILD_SERVICE_URL is required for the worker")
		}
	case "core-api":
		if c.HTTPListenAddr == "" {
			return fmt.Errorf("HTTP_LISTEN_ADDR is required for the API")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
