package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/ticketlint/internal/config"
	"github.com/codex-k8s/ticketlint/internal/ghoutput"
	"github.com/codex-k8s/ticketlint/internal/githubapi"
	"github.com/codex-k8s/ticketlint/internal/gitlabapi"
	"github.com/codex-k8s/ticketlint/internal/lint"
	"github.com/codex-k8s/ticketlint/internal/platform"
)

const outcomeFailure = "failure"

// target is the pull request under check and the client that can modify it.
type target struct {
	pr       platform.PullRequest
	client   platform.Client
	identity platform.IdentityFunc
}

// resolveTargetFunc is swapped in tests to avoid real platform clients.
var resolveTargetFunc = resolveTarget

// newCheckCommand creates "check", which lints the pull request of the current CI run.
func newCheckCommand(opts *Options) *cobra.Command {
	inputs := &inputFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the current pull request for a ticket reference",
		Long: "Check reads the pull request from the CI environment, succeeds when the title references a ticket " +
			"or the author is exempt, and otherwise rewrites the title from the branch name.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runCheck(cmd, opts, inputs); err != nil {
				ghoutput.Error(opts.stdout, err.Error())
				return &AnnotatedError{Err: err}
			}
			return nil
		},
	}

	inputs.bind(cmd, true)
	return cmd
}

// AnnotatedError marks an error already reported as an ::error:: workflow command.
type AnnotatedError struct {
	Err error
}

func (e *AnnotatedError) Error() string { return e.Err.Error() }

func (e *AnnotatedError) Unwrap() error { return e.Err }

// IsAnnotated reports whether err was already reported to the workflow log.
func IsAnnotated(err error) bool {
	var target *AnnotatedError
	return errors.As(err, &target)
}

// runCheck lints the pull request of the current run. Every returned error is the run's single
// failure message.
func runCheck(cmd *cobra.Command, opts *Options, inputs *inputFlags) error {
	cfg, logger, err := loadConfig(cmd, opts, inputs)
	if err != nil {
		return err
	}

	reporter := newReporter(opts, logger)
	defer reporter.Flush(defaultFlushTimeout)

	var actions actionsEnv
	if err := parseEnv(&actions, opts.vars); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	t, err := resolveTargetFunc(cfg, opts, logger)
	if err != nil {
		return err
	}
	lintOpts, err := cfg.LinterOptions(t.identity)
	if err != nil {
		return err
	}

	res, err := lint.New(lintOpts, t.client, logger).Run(ctx, t.pr)
	switch {
	case lint.IsFailure(err):
		if werr := ghoutput.WriteFile(actions.Output, map[string]string{"outcome": outcomeFailure}); werr != nil {
			logger.Warn("failed to write step outputs", "err", werr)
		}
		return err
	case err != nil:
		reporter.CaptureError(err, "pr", t.pr.String(), "platform", cfg.Platform)
		return err
	}

	logger.Info("ticket check passed", "pr", t.pr.String(), "outcome", res.Outcome, "title", res.Title)
	if err := ghoutput.WriteFile(actions.Output, resultOutputs(res)); err != nil {
		return fmt.Errorf("write step outputs: %w", err)
	}
	return nil
}

// resultOutputs renders the step outputs for a successful run.
func resultOutputs(res lint.Result) map[string]string {
	return map[string]string{
		"outcome":        string(res.Outcome),
		"ticket_prefix":  res.Reference.Prefix,
		"ticket_numbers": res.Reference.JoinedNumbers(),
		"title":          res.Title,
		"linked":         strings.Join(res.Links.Links(), "\n"),
	}
}

// resolveTarget reads the pull request from the CI environment of the configured platform.
func resolveTarget(cfg *config.Config, opts *Options, logger *slog.Logger) (target, error) {
	switch cfg.Platform {
	case config.PlatformGitLab:
		ci, err := gitlabapi.LoadCIContext(opts.vars)
		if err != nil {
			return target{}, err
		}
		token := ci.Token
		if token == "" {
			token = cfg.Token
		}
		if token == "" {
			token = opts.vars["CI_JOB_TOKEN"]
		}
		if token == "" {
			return target{}, fmt.Errorf("input required and not supplied: token")
		}
		client, err := gitlabapi.NewClient(logger, token, ci.APIURL)
		if err != nil {
			return target{}, err
		}
		return target{pr: ci.PullRequest(), client: client, identity: platform.LoginIdentity}, nil
	default:
		var actions actionsEnv
		if err := parseEnv(&actions, opts.vars); err != nil {
			return target{}, err
		}
		if cfg.Token == "" {
			return target{}, fmt.Errorf("input required and not supplied: token")
		}
		ev, err := githubapi.LoadEventFile(actions.EventPath, actions.Repository)
		if err != nil {
			return target{}, err
		}
		var clientOpts []githubapi.Option
		if host := enterpriseHost(actions.ServerURL); host != "" {
			clientOpts = append(clientOpts, githubapi.WithHost(host))
		}
		client, err := githubapi.NewClient(logger, cfg.Token, clientOpts...)
		if err != nil {
			return target{}, err
		}
		return target{pr: ev.PullRequest, client: client, identity: platform.StripBotSuffix}, nil
	}
}

// enterpriseHost returns the host of a non-github.com server URL.
func enterpriseHost(serverURL string) string {
	if serverURL == "" {
		return ""
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" || strings.EqualFold(u.Host, "github.com") {
		return ""
	}
	return u.Host
}
