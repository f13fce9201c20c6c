package notify_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codex-k8s/ticketlint/internal/notify"
	"github.com/codex-k8s/ticketlint/internal/platform"
	"github.com/codex-k8s/ticketlint/internal/platform/mocks"
	"github.com/codex-k8s/ticketlint/internal/ticket"
)

const linkTemplate = "https://example/%ticketPrefix%/%ticketNumber%"

var _ = Describe("Planner.LinkTickets", func() {
	var (
		ctx    context.Context
		client *mocks.Client
		pr     platform.PullRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mocks.Client{}
		pr = platform.PullRequest{Owner: "acme", Repo: "web", Number: 7}
	})

	It("posts one comment per ticket number", func() {
		planner := notify.NewPlanner(client, nil, linkTemplate)
		report, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1", "2"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(client.CreatedBodies).To(Equal([]string{
			"See the ticket for this pull request: https://example/PROJ/1",
			"See the ticket for this pull request: https://example/PROJ/2",
		}))
		Expect(report.Posted).To(Equal([]string{"https://example/PROJ/1", "https://example/PROJ/2"}))
		Expect(report.Skipped).To(BeEmpty())
	})

	It("reads reviews afresh before every write", func() {
		planner := notify.NewPlanner(client, nil, linkTemplate)
		_, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1", "2"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(client.Calls).To(Equal([]string{"list", "create", "list", "create"}))
	})

	It("skips numbers already linked and keeps processing the rest", func() {
		client.Reviews = []platform.Review{{Body: "Tracked in https://example/PROJ/1 (auto)"}}
		planner := notify.NewPlanner(client, nil, linkTemplate)

		report, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1", "2"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(client.CreatedContaining("https://example/PROJ/1")).To(Equal(0))
		Expect(client.CreatedContaining("https://example/PROJ/2")).To(Equal(1))
		Expect(report.Existing).To(Equal([]string{"https://example/PROJ/1"}))
		Expect(report.Links()).To(Equal([]string{"https://example/PROJ/1", "https://example/PROJ/2"}))
	})

	It("posts a duplicated number once when the platform reflects the first post", func() {
		client.AppendCreated = true
		planner := notify.NewPlanner(client, nil, linkTemplate)

		_, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"3", "3"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(client.CreatedBodies).To(HaveLen(1))
	})

	DescribeTable("does nothing when preconditions fail",
		func(template string, ref ticket.Reference, reason string) {
			planner := notify.NewPlanner(client, nil, template)
			report, err := planner.LinkTickets(ctx, pr, ref)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Skipped).To(Equal(reason))
			Expect(client.Calls).To(BeEmpty())
		},
		Entry("no numbers", linkTemplate, ticket.Reference{Prefix: "PROJ"}, notify.SkipNoNumbers),
		Entry("blank numbers", linkTemplate, ticket.Reference{Prefix: "PROJ", Numbers: []string{""}}, notify.SkipNoNumbers),
		Entry("no prefix", linkTemplate, ticket.Reference{Numbers: []string{"1"}}, notify.SkipNoPrefix),
		Entry("no template", "", ticket.Reference{Prefix: "PROJ", Numbers: []string{"1"}}, notify.SkipNoTemplate),
		Entry("template without number token", "see %ticketPrefix% for details",
			ticket.Reference{Prefix: "PROJ", Numbers: []string{"1"}}, notify.SkipInvalidFormat),
	)

	It("skips blank entries between valid numbers", func() {
		planner := notify.NewPlanner(client, nil, linkTemplate)
		report, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1", ""}})

		Expect(err).NotTo(HaveOccurred())
		Expect(report.Posted).To(Equal([]string{"https://example/PROJ/1"}))
		Expect(client.ListCalls).To(Equal(1))
	})

	It("propagates list failures", func() {
		client.ListErr = errors.New("boom")
		planner := notify.NewPlanner(client, nil, linkTemplate)

		_, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1"}})

		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(errors.Is(err, client.ListErr)).To(BeTrue())
		Expect(client.CreatedBodies).To(BeEmpty())
	})

	It("propagates create failures without retrying", func() {
		client.CreateErr = errors.New("forbidden")
		planner := notify.NewPlanner(client, nil, linkTemplate)

		report, err := planner.LinkTickets(ctx, pr, ticket.Reference{Prefix: "PROJ", Numbers: []string{"1", "2"}})

		Expect(err).To(MatchError(ContainSubstring("forbidden")))
		Expect(client.Calls).To(Equal([]string{"list", "create"}))
		Expect(report.Posted).To(BeEmpty())
	})
})
