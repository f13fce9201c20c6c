// Package notify posts ticket link comments on pull requests at most once per ticket.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/ticket"
)

// LinkCommentPrefix starts every ticket link comment body.
const LinkCommentPrefix = "See the ticket for this pull request: "

// Skip reasons reported when linking does not run at all.
const (
	SkipNoNumbers     = "ticket number not found in reference"
	SkipNoPrefix      = "ticket prefix not found in reference"
	SkipNoTemplate    = "ticket link is not configured"
	SkipInvalidFormat = `ticket link must include "%ticketNumber%" to post a ticket link`
)

// Planner decides, per ticket number, whether a link comment must be posted.
type Planner struct {
	client   platform.Client
	logger   *slog.Logger
	template string
}

// NewPlanner builds a Planner posting links rendered from template through client.
func NewPlanner(client platform.Client, logger *slog.Logger, template string) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{client: client, logger: logger, template: template}
}

// Report summarizes one LinkTickets call.
type Report struct {
	// Skipped holds the reason linking did not run; empty when it ran.
	Skipped string
	// Posted lists links posted by this call, in ticket order.
	Posted []string
	// Existing lists links already present in an earlier review.
	Existing []string
}

// Links returns every link the pull request now carries for the reference.
func (r Report) Links() []string {
	out := make([]string, 0, len(r.Existing)+len(r.Posted))
	out = append(out, r.Existing...)
	return append(out, r.Posted...)
}

// LinkTickets posts one link comment per ticket number unless an existing review already
// contains the rendered link. Reviews are re-read for every number.
func (p *Planner) LinkTickets(ctx context.Context, pr platform.PullRequest, ref ticket.Reference) (Report, error) {
	if reason := p.skipReason(ref); reason != "" {
		p.logger.Debug("skipping ticket link", "pr", pr.String(), "reason", reason)
		return Report{Skipped: reason}, nil
	}

	var report Report
	for _, number := range ref.Numbers {
		if number == "" {
			p.logger.Debug("skipping blank ticket number", "pr", pr.String(), "prefix", ref.Prefix)
			continue
		}
		link := ticket.RenderLink(p.template, ref.Prefix, number)

		reviews, err := p.client.ListReviews(ctx, pr)
		if err != nil {
			return report, fmt.Errorf("list reviews for %s: %w", pr, err)
		}
		p.logger.Debug("current reviews", "pr", pr.String(), "count", len(reviews))

		if containsLink(reviews, link) {
			p.logger.Debug("already posted ticket link", "pr", pr.String(), "link", link)
			report.Existing = append(report.Existing, link)
			continue
		}

		if err := p.client.CreateCommentReview(ctx, pr, LinkCommentPrefix+link); err != nil {
			return report, fmt.Errorf("post ticket link %q on %s: %w", link, pr, err)
		}
		p.logger.Info("posted ticket link", "pr", pr.String(), "link", link)
		report.Posted = append(report.Posted, link)
	}
	return report, nil
}

func (p *Planner) skipReason(ref ticket.Reference) string {
	switch {
	case !ref.HasNumbers():
		return SkipNoNumbers
	case ref.Prefix == "":
		return SkipNoPrefix
	case p.template == "":
		return SkipNoTemplate
	case !ticket.LinkTemplateUsable(p.template):
		return SkipInvalidFormat
	}
	return ""
}

func containsLink(reviews []platform.Review, link string) bool {
	for _, r := range reviews {
		if strings.Contains(r.Body, link) {
			return true
		}
	}
	return false
}
