package cli

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/ticketlint/internal/githubapi"
	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/webhook"
)

// newServeCommand creates "serve", which runs the linter as a GitHub App webhook receiver.
func newServeCommand(opts *Options) *cobra.Command {
	inputs := &inputFlags{}
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GitHub App pull_request webhooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, opts, inputs)
			if err != nil {
				return err
			}

			var se serveEnv
			if err := parseEnv(&se, opts.vars); err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				se.ListenAddr = listenAddr
			}
			if se.AppID == "" || se.PrivateKeyPath == "" {
				return fmt.Errorf("serve requires GITHUB_APP_ID and GITHUB_APP_PRIVATE_KEY_PATH")
			}

			lintOpts, err := cfg.LinterOptions(platform.StripBotSuffix)
			if err != nil {
				return err
			}

			pemKey, err := os.ReadFile(se.PrivateKeyPath)
			if err != nil {
				return fmt.Errorf("read github app private key: %w", err)
			}
			tokens, err := githubapi.NewAppTokenSource(se.AppID, pemKey, se.APIURL, nil)
			if err != nil {
				return err
			}

			var clientOpts []githubapi.Option
			if host := apiHost(se.APIURL); host != "" {
				clientOpts = append(clientOpts, githubapi.WithHost(host))
			}

			reporter := newReporter(opts, logger)
			defer reporter.Flush(defaultFlushTimeout)

			srv, err := webhook.NewServer(webhook.Options{
				Secret:   se.WebhookSecret,
				Lint:     lintOpts,
				Clients:  webhook.AppClients(tokens, logger, clientOpts...),
				Timeout:  opts.Timeout,
				Logger:   logger,
				Reporter: reporter,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, se.ListenAddr)
		},
	}

	inputs.bind(cmd, false)
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (defaults to TICKETLINT_LISTEN_ADDR or :8080)")
	return cmd
}

// apiHost returns the GitHub Enterprise host behind a REST API URL, or "" for github.com.
func apiHost(apiURL string) string {
	if apiURL == "" {
		return ""
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if host == "api.github.com" || host == "github.com" {
		return ""
	}
	return host
}
