package githubapi

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codex-k8s/ticketlint/internal/platform"
)

// Event is the part of a pull_request webhook payload the linter needs.
type Event struct {
	// Action is the pull_request event action (opened, edited, ...).
	Action string
	// InstallationID identifies the GitHub App installation, zero outside apps.
	InstallationID int64
	// PullRequest is the linted pull request.
	PullRequest platform.PullRequest
}

// ParsePullRequestEvent decodes a pull_request payload. repository is an owner/repo slug used
// when the payload carries no repository block.
func ParsePullRequestEvent(data []byte, repository string) (Event, error) {
	var payload pullRequestEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, fmt.Errorf("decode pull request event: %w", err)
	}
	if payload.PullRequest == nil {
		return Event{}, fmt.Errorf("event payload has no pull_request")
	}

	owner, name := payload.Repository.Owner.Login, payload.Repository.Name
	if owner == "" || name == "" {
		var err error
		owner, name, err = SplitRepository(repository)
		if err != nil {
			return Event{}, err
		}
	}

	number := payload.PullRequest.Number
	if number == 0 {
		number = payload.Number
	}
	if number <= 0 {
		return Event{}, fmt.Errorf("pull request number must be positive")
	}

	ev := Event{
		Action: payload.Action,
		PullRequest: platform.PullRequest{
			Owner:       owner,
			Repo:        name,
			Number:      number,
			Title:       payload.PullRequest.Title,
			Branch:      payload.PullRequest.Head.Ref,
			Author:      payload.PullRequest.User.Login,
			AuthorIsBot: payload.PullRequest.User.Type == "Bot",
		},
	}
	if payload.Installation != nil {
		ev.InstallationID = payload.Installation.ID
	}
	return ev, nil
}

// LoadEventFile reads the Actions event payload at path (GITHUB_EVENT_PATH).
func LoadEventFile(path, repository string) (Event, error) {
	if path == "" {
		return Event{}, fmt.Errorf("GITHUB_EVENT_PATH is not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("read event payload %q: %w", path, err)
	}
	return ParsePullRequestEvent(data, repository)
}
