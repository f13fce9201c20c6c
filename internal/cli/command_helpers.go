package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/ticketlint/internal/config"
)

// newGroupCommand builds a cobra.Command that groups subcommands.
func newGroupCommand(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}
	if len(subcommands) > 0 {
		cmd.AddCommand(subcommands...)
	}
	return cmd
}

// inputFlags are the linter inputs accepted on the command line.
type inputFlags struct {
	titleRegex       string
	titleRegexFlags  string
	branchRegex      string
	branchRegexFlags string
	titleFormat      string
	ticketLink       string
	exemptUsers      string
	quiet            bool
	courtesyComment  string
	token            string
}

// bind registers the input flags on cmd. withToken adds --token.
func (f *inputFlags) bind(cmd *cobra.Command, withToken bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.titleRegex, "title-regex", "", "Regex with ticketPrefix/ticketNumber groups matched against the title")
	fs.StringVar(&f.titleRegexFlags, "title-regex-flags", "", "Flags for --title-regex (i, m, s; g, u, y, d are ignored)")
	fs.StringVar(&f.branchRegex, "branch-regex", "", "Regex with ticketPrefix/ticketNumber groups matched against the branch")
	fs.StringVar(&f.branchRegexFlags, "branch-regex-flags", "", "Flags for --branch-regex")
	fs.StringVar(&f.titleFormat, "title-format", "", "Rewritten title template using %ticketPrefix%, %ticketNumber% and %title%")
	fs.StringVar(&f.ticketLink, "ticket-link", "", "Ticket URL template; linking is skipped when empty")
	fs.StringVar(&f.exemptUsers, "exempt-users", "", "Comma-separated logins exempt from the ticket requirement")
	fs.BoolVar(&f.quiet, "quiet", false, "Do not post the courtesy comment after rewriting a title")
	fs.StringVar(&f.courtesyComment, "courtesy-comment", "", "Override the courtesy comment text")
	if withToken {
		fs.StringVar(&f.token, "token", "", "API token (defaults to INPUT_TOKEN, GH_TOKEN or GITHUB_TOKEN)")
	}
}

// apply copies explicitly set flags over cfg.
func (f *inputFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			*dst = v
		}
	}
	set("title-regex", &cfg.TitleRegex, f.titleRegex)
	set("title-regex-flags", &cfg.TitleRegexFlags, f.titleRegexFlags)
	set("branch-regex", &cfg.BranchRegex, f.branchRegex)
	set("branch-regex-flags", &cfg.BranchRegexFlags, f.branchRegexFlags)
	set("title-format", &cfg.TitleFormat, f.titleFormat)
	set("ticket-link", &cfg.TicketLink, f.ticketLink)
	set("exempt-users", &cfg.ExemptUsers, f.exemptUsers)
	set("courtesy-comment", &cfg.CourtesyComment, f.courtesyComment)
	set("token", &cfg.Token, strings.TrimSpace(f.token))
	if fs.Changed("quiet") {
		cfg.Quiet = config.Switch(f.quiet)
	}
}
