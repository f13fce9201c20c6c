// Package platform describes the code-hosting operations the linter depends on.
package platform

import (
	"context"
	"fmt"
	"strings"
)

// PullRequest is the read-only pull request context supplied by the hosting platform.
type PullRequest struct {
	// Owner is the repository owner (GitHub) or namespace (GitLab).
	Owner string
	// Repo is the repository name, or the project ID/path for GitLab.
	Repo string
	// Number is the pull request number (merge request IID on GitLab).
	Number int
	// Title is the current pull request title.
	Title string
	// Branch is the source (head) branch name.
	Branch string
	// Author is the login of the pull request author.
	Author string
	// AuthorIsBot marks automation accounts.
	AuthorIsBot bool
}

// String renders a short identifier for logs.
func (pr PullRequest) String() string {
	if pr.Owner == "" {
		return fmt.Sprintf("%s!%d", pr.Repo, pr.Number)
	}
	return fmt.Sprintf("%s/%s#%d", pr.Owner, pr.Repo, pr.Number)
}

// Review is an existing review or comment on a pull request.
type Review struct {
	// ID is the platform identifier of the review.
	ID int64
	// Author is the login of the reviewer.
	Author string
	// Body is the raw markdown body.
	Body string
}

// Client performs the remote calls on a pull request.
type Client interface {
	// ListReviews returns every review body posted on the pull request.
	ListReviews(ctx context.Context, pr PullRequest) ([]Review, error)
	// CreateCommentReview posts a plain comment review (no approval or rejection).
	CreateCommentReview(ctx context.Context, pr PullRequest, body string) error
	// UpdateTitle replaces the pull request title.
	UpdateTitle(ctx context.Context, pr PullRequest, title string) error
}

// IdentityFunc maps an author login to the name used in exemption lists.
type IdentityFunc func(login string, isBot bool) string

// LoginIdentity uses the login as-is.
func LoginIdentity(login string, _ bool) string {
	return login
}

// StripBotSuffix removes GitHub's "[bot]" login suffix from automation accounts.
func StripBotSuffix(login string, isBot bool) string {
	if !isBot {
		return login
	}
	return strings.Replace(login, "[bot]", "", 1)
}
