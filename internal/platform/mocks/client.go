package mocks

import (
	"context"
	"strings"

	"github.com/codex-k8s/ticketlint/internal/platform"
)

// Client records calls and serves canned reviews.
type Client struct {
	Reviews       []platform.Review
	ListErr       error
	CreateErr     error
	UpdateErr     error
	ListCalls     int
	CreatedBodies []string
	Titles        []string
	// Calls keeps the order of remote calls: "list", "create", "update".
	Calls []string
	// AppendCreated makes created reviews visible to later ListReviews calls.
	AppendCreated bool
}

func (m *Client) ListReviews(ctx context.Context, pr platform.PullRequest) ([]platform.Review, error) {
	m.ListCalls++
	m.Calls = append(m.Calls, "list")
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]platform.Review, len(m.Reviews))
	copy(out, m.Reviews)
	return out, nil
}

func (m *Client) CreateCommentReview(ctx context.Context, pr platform.PullRequest, body string) error {
	m.Calls = append(m.Calls, "create")
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.CreatedBodies = append(m.CreatedBodies, body)
	if m.AppendCreated {
		m.Reviews = append(m.Reviews, platform.Review{ID: int64(len(m.Reviews) + 1), Body: body})
	}
	return nil
}

func (m *Client) UpdateTitle(ctx context.Context, pr platform.PullRequest, title string) error {
	m.Calls = append(m.Calls, "update")
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Titles = append(m.Titles, title)
	return nil
}

// Writes counts create and update calls.
func (m *Client) Writes() int {
	n := 0
	for _, c := range m.Calls {
		if c == "create" || c == "update" {
			n++
		}
	}
	return n
}

// CreatedContaining counts created bodies containing s.
func (m *Client) CreatedContaining(s string) int {
	n := 0
	for _, b := range m.CreatedBodies {
		if strings.Contains(b, s) {
			n++
		}
	}
	return n
}
