// Package gitlabapi adapts GitLab merge requests to the platform client contract.
package gitlabapi

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/codex-k8s/ticketlint/internal/env"
	"github.com/codex-k8s/ticketlint/internal/platform"
)

// botUsername matches GitLab project, group and service account bot users.
var botUsername = regexp.MustCompile(`^(project|group)_\d+_bot(_[0-9a-f]+)?$|^service_account_`)

// Client implements platform.Client with merge request notes standing in for reviews.
type Client struct {
	api    *gitlab.Client
	logger *slog.Logger
}

// NewClient builds a client for the GitLab API at apiURL (empty means gitlab.com).
func NewClient(logger *slog.Logger, token, apiURL string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("gitlab token is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var opts []gitlab.ClientOptionFunc
	if apiURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(apiURL, "/")))
	}
	api, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// ListReviews returns every note on the merge request.
func (c *Client) ListReviews(ctx context.Context, pr platform.PullRequest) ([]platform.Review, error) {
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: 100,
		},
	}

	var reviews []platform.Review
	for {
		notes, resp, err := c.api.Notes.ListMergeRequestNotes(pr.Repo, int64(pr.Number), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing merge request notes: %w", err)
		}
		for _, n := range notes {
			if n == nil {
				continue
			}
			reviews = append(reviews, platform.Review{
				ID:     int64(n.ID),
				Author: n.Author.Username,
				Body:   n.Body,
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.logger.Debug("gitlab merge request notes", "pr", pr.String(), "count", len(reviews))
	return reviews, nil
}

// CreateCommentReview posts a merge request note.
func (c *Client) CreateCommentReview(ctx context.Context, pr platform.PullRequest, body string) error {
	_, _, err := c.api.Notes.CreateMergeRequestNote(pr.Repo, int64(pr.Number), &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("creating merge request note: %w", err)
	}
	return nil
}

// UpdateTitle sets the merge request title.
func (c *Client) UpdateTitle(ctx context.Context, pr platform.PullRequest, title string) error {
	_, _, err := c.api.MergeRequests.UpdateMergeRequest(pr.Repo, int64(pr.Number), &gitlab.UpdateMergeRequestOptions{
		Title: gitlab.Ptr(title),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("updating merge request title: %w", err)
	}
	return nil
}

// CIContext is the merge request pipeline environment.
type CIContext struct {
	// APIURL is the v4 API root from CI_API_V4_URL.
	APIURL string `env:"CI_API_V4_URL"`
	// ProjectID is the numeric project ID from CI_PROJECT_ID.
	ProjectID string `env:"CI_PROJECT_ID"`
	// ProjectPath is the namespace/project path from CI_PROJECT_PATH.
	ProjectPath string `env:"CI_PROJECT_PATH"`
	// MergeRequestIID is the merge request IID from CI_MERGE_REQUEST_IID.
	MergeRequestIID int `env:"CI_MERGE_REQUEST_IID"`
	// Title is the merge request title from CI_MERGE_REQUEST_TITLE.
	Title string `env:"CI_MERGE_REQUEST_TITLE"`
	// SourceBranch is the source branch from CI_MERGE_REQUEST_SOURCE_BRANCH_NAME.
	SourceBranch string `env:"CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"`
	// UserLogin is the pipeline user from GITLAB_USER_LOGIN.
	UserLogin string `env:"GITLAB_USER_LOGIN"`
	// Token is an API token from GITLAB_TOKEN.
	Token string `env:"GITLAB_TOKEN"`
}

// LoadCIContext reads the merge request pipeline variables.
func LoadCIContext(vars env.Vars) (CIContext, error) {
	var ci CIContext
	if err := envparse.ParseWithOptions(&ci, envparse.Options{Environment: vars}); err != nil {
		return CIContext{}, fmt.Errorf("parse gitlab ci variables: %w", err)
	}
	if ci.MergeRequestIID <= 0 {
		return CIContext{}, fmt.Errorf("CI_MERGE_REQUEST_IID is not set; run in a merge request pipeline")
	}
	if ci.ProjectID == "" && ci.ProjectPath == "" {
		return CIContext{}, fmt.Errorf("CI_PROJECT_ID or CI_PROJECT_PATH is required")
	}
	return ci, nil
}

// PullRequest converts the pipeline context into the linted pull request.
func (ci CIContext) PullRequest() platform.PullRequest {
	project := ci.ProjectID
	if project == "" {
		project = ci.ProjectPath
	}
	return platform.PullRequest{
		Repo:        project,
		Number:      ci.MergeRequestIID,
		Title:       ci.Title,
		Branch:      ci.SourceBranch,
		Author:      ci.UserLogin,
		AuthorIsBot: botUsername.MatchString(ci.UserLogin),
	}
}
