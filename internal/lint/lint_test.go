package lint_test

import (
	"context"
	"errors"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codex-k8s/ticketlint/internal/lint"
	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/platform/mocks"
)

var _ = Describe("Linter.Run", func() {
	var (
		ctx    context.Context
		client *mocks.Client
		opts   lint.Options
		pr     platform.PullRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mocks.Client{}
		opts = lint.Options{
			TitlePattern:  regexp.MustCompile(`(?i)^\[?(?<ticketPrefix>PROJ)-(?<ticketNumber>\d+(?:-\d+)*)\]?`),
			BranchPattern: regexp.MustCompile(`(?i)(?<ticketPrefix>[A-Z]+)-(?<ticketNumber>\d+)`),
			TitleFormat:   "[%ticketPrefix%-%ticketNumber%] %title%",
			TicketLink:    "https://example/%ticketPrefix%/%ticketNumber%",
			Identity:      platform.StripBotSuffix,
		}
		pr = platform.PullRequest{
			Owner:  "acme",
			Repo:   "web",
			Number: 12,
			Title:  "Add login flow",
			Branch: "feature/PROJ-42-login",
			Author: "alice",
		}
	})

	Context("when the title carries a reference", func() {
		BeforeEach(func() {
			pr.Title = "[PROJ-42] Add login flow"
			pr.Branch = "feature/OTHER-9"
		})

		It("succeeds without consulting the branch", func() {
			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(lint.OutcomeTitleReferenced))
			Expect(res.Source).To(Equal("title"))
			Expect(res.Reference.Prefix).To(Equal("PROJ"))
			Expect(client.Titles).To(BeEmpty())
		})

		It("links the ticket once", func() {
			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(client.CreatedBodies).To(Equal([]string{"See the ticket for this pull request: https://example/PROJ/42"}))
		})

		It("succeeds without linking when the reference is incomplete", func() {
			opts.TitlePattern = regexp.MustCompile(`^PROJ`)
			pr.Title = "PROJ cleanup"

			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(lint.OutcomeTitleReferenced))
			Expect(res.Links.Skipped).NotTo(BeEmpty())
			Expect(client.Calls).To(BeEmpty())
		})

		It("propagates link failures", func() {
			client.ListErr = errors.New("unauthorized")

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).To(MatchError(ContainSubstring("unauthorized")))
			Expect(lint.IsFailure(err)).To(BeFalse())
		})
	})

	Context("when the author is exempt", func() {
		BeforeEach(func() {
			opts.ExemptUsers = []string{" dependabot ", "carol"}
			pr.Branch = "main"
		})

		It("succeeds with no remote writes", func() {
			pr.Author = "carol"

			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(lint.OutcomeExempt))
			Expect(client.Writes()).To(Equal(0))
		})

		It("matches bot accounts without the bot suffix", func() {
			pr.Author = "dependabot[bot]"
			pr.AuthorIsBot = true

			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(lint.OutcomeExempt))
		})

		It("keeps the suffix for non-bot accounts", func() {
			pr.Author = "dependabot[bot]"

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(lint.IsFailure(err)).To(BeTrue())
		})
	})

	Context("when only the branch carries a reference", func() {
		It("rewrites the title, comments and links the ticket in order", func() {
			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(lint.OutcomeTitleUpdated))
			Expect(res.Title).To(Equal("[PROJ-42] Add login flow"))
			Expect(client.Titles).To(Equal([]string{"[PROJ-42] Add login flow"}))
			Expect(client.Calls).To(Equal([]string{"update", "create", "list", "create"}))
			Expect(client.CreatedBodies[0]).To(Equal(lint.DefaultCourtesyComment))
			Expect(client.CreatedContaining("https://example/PROJ/42")).To(Equal(1))
		})

		It("does not link twice when the link already exists", func() {
			client.Reviews = []platform.Review{{Body: "See the ticket for this pull request: https://example/PROJ/42"}}

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(client.Titles).To(HaveLen(1))
			Expect(client.CreatedContaining("https://example/PROJ/42")).To(Equal(0))
		})

		It("skips the courtesy comment in quiet mode", func() {
			opts.Quiet = true

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(client.Calls).To(Equal([]string{"update", "list", "create"}))
		})

		It("uses a configured courtesy comment", func() {
			opts.CourtesyComment = "Title fixed."
			opts.TicketLink = ""

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(client.CreatedBodies).To(Equal([]string{"Title fixed."}))
		})

		It("strips a stale leading reference before formatting", func() {
			opts.TitlePattern = regexp.MustCompile(`^NEVER`)
			pr.Title = "proj 42 - Add login flow"

			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Title).To(Equal("[PROJ-42] - Add login flow"))
		})

		It("joins several branch numbers with a comma", func() {
			opts.BranchPattern = regexp.MustCompile(`(?<ticketPrefix>[A-Z]+)-(?<ticketNumber>\d+(?:-\d+)*)`)
			opts.TicketLink = ""
			pr.Branch = "PROJ-1-2"

			res, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Title).To(Equal("[PROJ-1, 2] Add login flow"))
			Expect(res.Reference.Numbers).To(Equal([]string{"1", "2"}))
		})

		It("fails when the branch match has no number", func() {
			opts.BranchPattern = regexp.MustCompile(`(?<ticketPrefix>PROJ)`)

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).To(MatchError(lint.MsgBranchNoNumber))
			Expect(lint.IsFailure(err)).To(BeTrue())
			Expect(client.Calls).To(BeEmpty())
		})

		It("fails when the branch match has no prefix", func() {
			opts.BranchPattern = regexp.MustCompile(`-(?<ticketNumber>\d+)`)

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).To(MatchError(lint.MsgBranchNoPrefix))
			Expect(client.Calls).To(BeEmpty())
		})

		It("stops when the title update fails", func() {
			client.UpdateErr = errors.New("403")

			_, err := lint.New(opts, client, nil).Run(ctx, pr)

			Expect(err).To(MatchError(ContainSubstring("update title")))
			Expect(errors.Is(err, client.UpdateErr)).To(BeTrue())
			Expect(client.Calls).To(Equal([]string{"update"}))
		})
	})

	It("fails when no reference is found anywhere", func() {
		pr.Branch = "main"

		_, err := lint.New(opts, client, nil).Run(ctx, pr)

		Expect(err).To(MatchError(lint.MsgNoTicket))
		Expect(lint.IsFailure(err)).To(BeTrue())
		Expect(client.Calls).To(BeEmpty())
	})
})
