// Package githubapi provides a GitHub pull request client using the GitHub CLI.
package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/codex-k8s/ticketlint/internal/platform"
)

// ReviewEventComment marks a review that neither approves nor requests changes.
const ReviewEventComment = "COMMENT"

// Runner executes `gh` with args and extra environment, returning stdout.
type Runner func(ctx context.Context, env []string, args ...string) ([]byte, error)

// Client implements platform.Client on top of `gh api`.
type Client struct {
	logger *slog.Logger
	token  string
	host   string
	run    Runner
}

// Option customizes a Client.
type Option func(*Client)

// WithHost targets a GitHub Enterprise host instead of github.com.
func WithHost(host string) Option {
	return func(c *Client) { c.host = strings.TrimSpace(host) }
}

// WithRunner replaces the `gh` process runner.
func WithRunner(run Runner) Option {
	return func(c *Client) { c.run = run }
}

// NewClient builds a client authenticated with token.
func NewClient(logger *slog.Logger, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("github token is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{logger: logger, token: token, run: runGH}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListReviews returns every review on the pull request, following pagination.
func (c *Client) ListReviews(ctx context.Context, pr platform.PullRequest) ([]platform.Review, error) {
	out, err := c.api(ctx, "--paginate", pullPath(pr)+"/reviews?per_page=100")
	if err != nil {
		return nil, err
	}

	var reviews []platform.Review
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var page []reviewNode
		if err := dec.Decode(&page); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode github reviews response: %w", err)
		}
		for _, node := range page {
			reviews = append(reviews, platform.Review{
				ID:     node.ID,
				Author: strings.TrimSpace(node.User.Login),
				Body:   node.Body,
			})
		}
	}
	return reviews, nil
}

// CreateCommentReview posts a COMMENT review with body.
func (c *Client) CreateCommentReview(ctx context.Context, pr platform.PullRequest, body string) error {
	_, err := c.api(ctx,
		"-X", "POST", pullPath(pr)+"/reviews",
		"-f", "body="+body,
		"-f", "event="+ReviewEventComment,
	)
	return err
}

// UpdateTitle sets the pull request title.
func (c *Client) UpdateTitle(ctx context.Context, pr platform.PullRequest, title string) error {
	_, err := c.api(ctx, "-X", "PATCH", pullPath(pr), "-f", "title="+title)
	return err
}

func (c *Client) api(ctx context.Context, args ...string) ([]byte, error) {
	args = append([]string{"api"}, args...)
	c.logger.Debug("github api call", "host", c.host, "args", args)

	env := []string{"GITHUB_TOKEN=" + c.token, "GH_TOKEN=" + c.token}
	if c.host != "" {
		env = append(env, "GH_HOST="+c.host)
	}
	out, err := c.run(ctx, env, args...)
	if err != nil {
		return nil, fmt.Errorf("gh %s failed: %w", strings.Join(args[:min(len(args), 4)], " "), err)
	}
	return out, nil
}

func pullPath(pr platform.PullRequest) string {
	return "repos/" + pr.Owner + "/" + pr.Repo + "/pulls/" + strconv.Itoa(pr.Number)
}

func runGH(ctx context.Context, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), env...)

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// SplitRepository splits an owner/repo slug.
func SplitRepository(slug string) (owner, name string, err error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", "", fmt.Errorf("repository is empty")
	}
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("invalid repository slug %q, expected owner/repo", slug)
	}
	return parts[0], parts[1], nil
}
