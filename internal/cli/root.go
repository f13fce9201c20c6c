// Package cli defines the command-line interface for ticketlint.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/ticketlint/internal/config"
	"github.com/codex-k8s/ticketlint/internal/env"
	"github.com/codex-k8s/ticketlint/internal/logging"
)

const (
	defaultTimeout      = 2 * time.Minute
	defaultFlushTimeout = 2 * time.Second
)

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	EnvFiles   []string
	Platform   string
	LogLevel   logging.Level
	Timeout    time.Duration

	// configRequired is set when the config path was chosen explicitly.
	configRequired bool
	// vars is the process environment merged over env files.
	vars   env.Vars
	stdout io.Writer
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	return execute(context.Background(), args, logger, os.Stdout, nil)
}

// execute runs the CLI with an explicit environment; nil environ means the process environment.
func execute(ctx context.Context, args []string, logger *slog.Logger, stdout io.Writer, environ env.Vars) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if environ == nil {
		environ = env.FromOS()
	}

	rootOpts := &Options{
		ConfigPath: config.DefaultPath,
		LogLevel:   logging.LevelInfo,
		Timeout:    defaultTimeout,
		vars:       environ,
		stdout:     stdout,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)

	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ticketlint",
		Short:         "ticketlint makes sure every pull request references a ticket",
		Long:          "ticketlint checks pull request titles for a ticket reference, fills it in from the branch name when missing, and links the referenced tickets in review comments.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			environ := opts.vars
			fileVars, err := env.LoadEnvFiles("", opts.EnvFiles)
			if err != nil {
				return err
			}
			opts.vars = env.Merge(fileVars, environ)

			var base baseEnv
			if err := parseEnv(&base, opts.vars); err != nil {
				return err
			}
			applyBaseEnv(cmd, opts, base)

			levelName := cmd.Flag("log-level").Value.String()
			if !cmd.Flag("log-level").Changed {
				switch {
				case opts.vars["RUNNER_DEBUG"] == "1":
					levelName = "debug"
				case base.LogLevel != "":
					levelName = base.LogLevel
				}
			}
			level := logging.ParseLevel(levelName)
			opts.LogLevel = level
			logger = logging.NewLogger(os.Stderr, level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "Path to the ticketlint YAML configuration file")
	cmd.PersistentFlags().StringArrayVar(&opts.EnvFiles, "env-file", nil, "Dotenv file merged under the process environment (repeatable)")
	cmd.PersistentFlags().StringVar(&opts.Platform, "platform", "", "Hosting platform (github, gitlab)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaultTimeout, "Upper bound for one lint run")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newCheckCommand(opts),
		newServeCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

// applyBaseEnv fills options from TICKETLINT_* variables for flags left at their defaults.
func applyBaseEnv(cmd *cobra.Command, opts *Options, base baseEnv) {
	flags := cmd.Flags()
	if flags.Changed("config") {
		opts.configRequired = true
	} else if base.ConfigPath != "" {
		opts.ConfigPath = base.ConfigPath
		opts.configRequired = true
	}
	if !flags.Changed("timeout") && base.Timeout > 0 {
		opts.Timeout = base.Timeout
	}
}

// loadConfig reads the effective configuration and lets explicitly set flags win.
// The returned logger honours a log level coming from the config file.
func loadConfig(cmd *cobra.Command, opts *Options, inputs *inputFlags) (*config.Config, *slog.Logger, error) {
	logger := LoggerFromContext(cmd.Context())

	cfg, err := config.Load(config.LoadOptions{
		Path:     opts.ConfigPath,
		Required: opts.configRequired,
		Environ:  opts.vars,
	})
	if err != nil {
		return nil, logger, err
	}
	if cmd.Flags().Changed("platform") {
		cfg.Platform = opts.Platform
	}
	if inputs != nil {
		inputs.apply(cmd, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}

	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if level := logging.ParseLevel(cfg.LogLevel); level != opts.LogLevel {
			opts.LogLevel = level
			logger = logging.NewLogger(os.Stderr, level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
		}
	}
	logger.Debug("configuration loaded", "path", opts.ConfigPath, "platform", cfg.Platform)
	return cfg, logger, nil
}

// newReporter initializes Sentry reporting from SENTRY_* variables.
func newReporter(opts *Options, logger *slog.Logger) *logging.Reporter {
	var se sentryEnv
	if err := parseEnv(&se, opts.vars); err != nil {
		logger.Warn("ignoring sentry settings", "err", err)
		return &logging.Reporter{}
	}
	reporter, err := logging.NewReporter(se.DSN, se.Environment, fmt.Sprintf("ticketlint@%s", Version))
	if err != nil {
		logger.Warn("sentry disabled", "err", err)
		return &logging.Reporter{}
	}
	return reporter
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
