// Package lint checks a pull request for a ticket reference and fixes its title from the branch.
package lint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/codex-k8s/ticketlint/internal/notify"
	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/ticket"
)

// DefaultCourtesyComment explains an automatic title rewrite to the author.
const DefaultCourtesyComment = "Hey! I noticed that your PR contained a reference to the ticket in the branch name " +
	"but not in the title. I went ahead and updated that for you. Hope you don't mind! ☺️"

// Failure messages.
const (
	MsgNoTicket       = "No ticket was referenced in this pull request"
	MsgBranchNoNumber = "Could not extract a ticketNumber reference from the branch"
	MsgBranchNoPrefix = "Could not extract a ticketPrefix reference from the branch"
)

// Outcome names the success path a run took.
type Outcome string

const (
	// OutcomeTitleReferenced means the title already carried a reference.
	OutcomeTitleReferenced Outcome = "title_referenced"
	// OutcomeExempt means the author is exempt from the requirement.
	OutcomeExempt Outcome = "exempt"
	// OutcomeTitleUpdated means the title was rewritten from the branch reference.
	OutcomeTitleUpdated Outcome = "title_updated"
)

// Options configures a Linter. Patterns are compiled by the caller.
type Options struct {
	TitlePattern  *regexp.Regexp
	BranchPattern *regexp.Regexp
	TitleFormat   string
	TicketLink    string
	ExemptUsers   []string
	Quiet         bool
	// CourtesyComment overrides DefaultCourtesyComment when non-empty.
	CourtesyComment string
	// Identity normalizes author logins before the exemption lookup.
	Identity platform.IdentityFunc
}

// FailureError reports that a pull request does not satisfy the ticket requirement.
type FailureError struct {
	// Reason is the human-readable failure message.
	Reason string
}

func (e *FailureError) Error() string {
	if e == nil {
		return MsgNoTicket
	}
	return e.Reason
}

// IsFailure reports whether err is a lint failure rather than a remote or configuration error.
func IsFailure(err error) bool {
	var target *FailureError
	return errors.As(err, &target)
}

// Result describes a successful run.
type Result struct {
	Outcome Outcome
	// Source is "title" or "branch" when a reference was found.
	Source    string
	Reference ticket.Reference
	// Title is the pull request title after the run.
	Title string
	Links notify.Report
}

// Linter sequences the title check, the exemption check and the branch fallback.
type Linter struct {
	opts    Options
	client  platform.Client
	planner *notify.Planner
	logger  *slog.Logger
	exempt  []string
}

// New builds a Linter issuing remote calls through client.
func New(opts Options, client platform.Client, logger *slog.Logger) *Linter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Identity == nil {
		opts.Identity = platform.LoginIdentity
	}
	var exempt []string
	for _, u := range opts.ExemptUsers {
		if u = strings.TrimSpace(u); u != "" {
			exempt = append(exempt, u)
		}
	}
	return &Linter{
		opts:    opts,
		client:  client,
		planner: notify.NewPlanner(client, logger, opts.TicketLink),
		logger:  logger,
		exempt:  exempt,
	}
}

// Run evaluates one pull request. A *FailureError is returned when no usable reference exists;
// other errors come from remote calls and are returned wrapped.
func (l *Linter) Run(ctx context.Context, pr platform.PullRequest) (Result, error) {
	log := l.logger.With("pr", pr.String())

	if m, ok := ticket.MatchText(l.opts.TitlePattern, pr.Title); ok {
		log.Debug("title includes a ticket reference", "match", m.Raw)
		ref := l.parse(log, m)
		links, err := l.planner.LinkTickets(ctx, pr, ref)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Outcome:   OutcomeTitleReferenced,
			Source:    "title",
			Reference: ref,
			Title:     pr.Title,
			Links:     links,
		}, nil
	}

	sender := l.opts.Identity(pr.Author, pr.AuthorIsBot)
	log.Debug("checking exemption", "sender", sender, "bot", pr.AuthorIsBot, "exempt_users", l.exempt)
	if sender != "" && slices.Contains(l.exempt, sender) {
		log.Debug("user is listed as exempt", "sender", sender)
		return Result{Outcome: OutcomeExempt, Title: pr.Title}, nil
	}

	m, ok := ticket.MatchText(l.opts.BranchPattern, pr.Branch)
	if !ok {
		log.Debug("title and branch do not contain a reference to a ticket", "branch", pr.Branch)
		return Result{}, &FailureError{Reason: MsgNoTicket}
	}

	log.Debug("branch name contains a reference to a ticket, updating title", "branch", pr.Branch, "match", m.Raw)
	ref := l.parse(log, m)
	if !ref.HasNumbers() {
		return Result{}, &FailureError{Reason: MsgBranchNoNumber}
	}
	if ref.Prefix == "" {
		return Result{}, &FailureError{Reason: MsgBranchNoPrefix}
	}

	stripped := ticket.StripReference(pr.Title, ref.Numbers, ref.Prefix)
	title := ticket.FormatTitle(l.opts.TitleFormat, ref.Prefix, ref.Numbers, stripped)
	log.Debug("rewriting title", "title", pr.Title, "stripped", stripped, "new_title", title)

	if err := l.client.UpdateTitle(ctx, pr, title); err != nil {
		return Result{}, fmt.Errorf("update title of %s: %w", pr, err)
	}
	log.Info("pull request title updated", "title", title)

	if l.opts.Quiet {
		log.Debug("quiet mode, skipping courtesy comment")
	} else if err := l.client.CreateCommentReview(ctx, pr, l.courtesyComment()); err != nil {
		return Result{}, fmt.Errorf("post courtesy comment on %s: %w", pr, err)
	}

	links, err := l.planner.LinkTickets(ctx, pr, ref)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Outcome:   OutcomeTitleUpdated,
		Source:    "branch",
		Reference: ref,
		Title:     title,
		Links:     links,
	}, nil
}

func (l *Linter) parse(log *slog.Logger, m ticket.Match) ticket.Reference {
	ref := ticket.ParseMatch(m)
	log.Debug("parsed ticket reference", "prefix", ref.Prefix, "numbers", ref.Numbers)
	for _, part := range ref.Missing() {
		log.Debug("ticket reference part not found", "part", part)
	}
	return ref
}

func (l *Linter) courtesyComment() string {
	if strings.TrimSpace(l.opts.CourtesyComment) != "" {
		return l.opts.CourtesyComment
	}
	return DefaultCourtesyComment
}
