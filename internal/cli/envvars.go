package cli

import (
	"fmt"
	"time"

	envparse "github.com/caarlos0/env/v11"

	"github.com/codex-k8s/ticketlint/internal/env"
)

// baseEnv defines root CLI defaults sourced from TICKETLINT_* env vars.
type baseEnv struct {
	// ConfigPath is the config file path from TICKETLINT_CONFIG.
	ConfigPath string `env:"TICKETLINT_CONFIG"`
	// LogLevel is the logging level from TICKETLINT_LOG_LEVEL.
	LogLevel string `env:"TICKETLINT_LOG_LEVEL"`
	// Timeout bounds one run, from TICKETLINT_TIMEOUT.
	Timeout time.Duration `env:"TICKETLINT_TIMEOUT"`
}

// sentryEnv configures error reporting.
type sentryEnv struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT"`
}

// actionsEnv captures the GitHub Actions run context.
type actionsEnv struct {
	// EventPath is the webhook payload file from GITHUB_EVENT_PATH.
	EventPath string `env:"GITHUB_EVENT_PATH"`
	// Repository is the owner/repo slug from GITHUB_REPOSITORY.
	Repository string `env:"GITHUB_REPOSITORY"`
	// ServerURL is the GitHub host URL from GITHUB_SERVER_URL.
	ServerURL string `env:"GITHUB_SERVER_URL"`
	// Output is the step outputs file from GITHUB_OUTPUT.
	Output string `env:"GITHUB_OUTPUT"`
}

// serveEnv captures inputs for the webhook server.
type serveEnv struct {
	// ListenAddr is the bind address from TICKETLINT_LISTEN_ADDR.
	ListenAddr string `env:"TICKETLINT_LISTEN_ADDR" envDefault:":8080"`
	// WebhookSecret verifies deliveries, from TICKETLINT_WEBHOOK_SECRET.
	WebhookSecret string `env:"TICKETLINT_WEBHOOK_SECRET"`
	// AppID is the GitHub App ID from GITHUB_APP_ID.
	AppID string `env:"GITHUB_APP_ID"`
	// PrivateKeyPath is the app PEM key path from GITHUB_APP_PRIVATE_KEY_PATH.
	PrivateKeyPath string `env:"GITHUB_APP_PRIVATE_KEY_PATH"`
	// APIURL is the REST API root from GITHUB_API_URL.
	APIURL string `env:"GITHUB_API_URL"`
}

// parseEnv fills target from vars via caarlos0/env.
func parseEnv(target any, vars env.Vars) error {
	if err := envparse.ParseWithOptions(target, envparse.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
