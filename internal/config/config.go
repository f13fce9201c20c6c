// Package config contains the loader and typed model for ticketlint inputs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/ticketlint/internal/env"
	"github.com/codex-k8s/ticketlint/internal/lint"
	"github.com/codex-k8s/ticketlint/internal/platform"
)

const (
	// DefaultPath is the repository-relative config file read when present.
	DefaultPath = ".github/ticketlint.yaml"

	// PlatformGitHub selects the GitHub collaborator.
	PlatformGitHub = "github"
	// PlatformGitLab selects the GitLab collaborator.
	PlatformGitLab = "gitlab"
)

// Config holds every linter input. Field names follow the action input names.
type Config struct {
	// Platform is the hosting platform: github or gitlab.
	Platform string `yaml:"platform,omitempty" env:"TICKETLINT_PLATFORM"`
	// TitleRegex is tested against the pull request title.
	TitleRegex string `yaml:"titleRegex" env:"INPUT_TITLEREGEX"`
	// TitleRegexFlags are JavaScript-style flags for TitleRegex (e.g. "gi").
	TitleRegexFlags string `yaml:"titleRegexFlags,omitempty" env:"INPUT_TITLEREGEXFLAGS"`
	// BranchRegex is tested against the source branch name.
	BranchRegex string `yaml:"branchRegex" env:"INPUT_BRANCHREGEX"`
	// BranchRegexFlags are JavaScript-style flags for BranchRegex.
	BranchRegexFlags string `yaml:"branchRegexFlags,omitempty" env:"INPUT_BRANCHREGEXFLAGS"`
	// TitleFormat renders the rewritten title from %ticketPrefix%, %ticketNumber% and %title%.
	TitleFormat string `yaml:"titleFormat" env:"INPUT_TITLEFORMAT"`
	// TicketLink renders ticket URLs; linking is skipped when empty.
	TicketLink string `yaml:"ticketLink,omitempty" env:"INPUT_TICKETLINK"`
	// ExemptUsers is a comma-separated list of logins exempt from the requirement.
	ExemptUsers string `yaml:"exemptUsers,omitempty" env:"INPUT_EXEMPTUSERS"`
	// Quiet suppresses the courtesy comment when set to "true".
	Quiet Switch `yaml:"quiet,omitempty" env:"INPUT_QUIET"`
	// CourtesyComment overrides the default courtesy comment text.
	CourtesyComment string `yaml:"courtesyComment,omitempty" env:"INPUT_COURTESYCOMMENT"`
	// Token authenticates API calls; never read from the config file.
	Token string `yaml:"-" env:"INPUT_TOKEN"`
	// LogLevel is the diagnostic log level.
	LogLevel string `yaml:"logLevel,omitempty" env:"TICKETLINT_LOG_LEVEL"`
}

// Switch is a boolean input that is on only for the literal "true".
type Switch bool

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (s *Switch) UnmarshalText(text []byte) error {
	*s = Switch(strings.TrimSpace(string(text)) == "true")
	return nil
}

// UnmarshalYAML accepts both `quiet: true` and `quiet: "true"`.
func (s *Switch) UnmarshalYAML(node *yaml.Node) error {
	return s.UnmarshalText([]byte(node.Value))
}

// LoadOptions controls where Load reads inputs from.
type LoadOptions struct {
	// Path is the YAML config file; empty skips it.
	Path string
	// Required makes a missing config file an error.
	Required bool
	// EnvFiles are .env-style files merged beneath Environ.
	EnvFiles []string
	// Environ overrides the process environment (tests).
	Environ env.Vars
}

// Load reads the config file, then overlays env files and environment inputs.
func Load(opts LoadOptions) (*Config, error) {
	cfg := &Config{}

	if opts.Path != "" {
		raw, err := os.ReadFile(opts.Path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %q: %w", opts.Path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !opts.Required:
		default:
			return nil, fmt.Errorf("read config %q: %w", opts.Path, err)
		}
	}

	fileVars, err := env.LoadEnvFiles("", opts.EnvFiles)
	if err != nil {
		return nil, err
	}
	environ := opts.Environ
	if environ == nil {
		environ = env.FromOS()
	}
	vars := env.Merge(fileVars, environ)

	if err := envparse.ParseWithOptions(cfg, envparse.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment inputs: %w", err)
	}

	if cfg.Token == "" {
		cfg.Token = vars.First("GH_TOKEN", "GITHUB_TOKEN")
	}
	if vars["RUNNER_DEBUG"] == "1" {
		cfg.LogLevel = "debug"
	}
	if cfg.Platform == "" {
		cfg.Platform = PlatformGitHub
	}
	return cfg, nil
}

// Validate checks that every required input is present.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.TitleRegex) == "" {
		missing = append(missing, "titleRegex")
	}
	if strings.TrimSpace(c.BranchRegex) == "" {
		missing = append(missing, "branchRegex")
	}
	if c.TitleFormat == "" {
		missing = append(missing, "titleFormat")
	}
	if len(missing) > 0 {
		return fmt.Errorf("input required and not supplied: %s", strings.Join(missing, ", "))
	}
	switch c.Platform {
	case PlatformGitHub, PlatformGitLab:
	default:
		return fmt.Errorf("unsupported platform %q, expected %s or %s", c.Platform, PlatformGitHub, PlatformGitLab)
	}
	return nil
}

// QuietMode reports whether the courtesy comment is suppressed.
func (c *Config) QuietMode() bool {
	return bool(c.Quiet)
}

// LinterOptions compiles the patterns and builds lint options.
func (c *Config) LinterOptions(identity platform.IdentityFunc) (lint.Options, error) {
	titleRe, err := CompilePattern(c.TitleRegex, c.TitleRegexFlags)
	if err != nil {
		return lint.Options{}, fmt.Errorf("titleRegex: %w", err)
	}
	branchRe, err := CompilePattern(c.BranchRegex, c.BranchRegexFlags)
	if err != nil {
		return lint.Options{}, fmt.Errorf("branchRegex: %w", err)
	}
	return lint.Options{
		TitlePattern:    titleRe,
		BranchPattern:   branchRe,
		TitleFormat:     c.TitleFormat,
		TicketLink:      c.TicketLink,
		ExemptUsers:     env.SplitList(c.ExemptUsers),
		Quiet:           c.QuietMode(),
		CourtesyComment: c.CourtesyComment,
		Identity:        identity,
	}, nil
}

// CompilePattern compiles expr with JavaScript-style flags. i, m and s map to Go inline flags;
// y anchors the match at the start of the text; g, u and d do not change a single match from
// position 0 and are ignored.
func CompilePattern(expr, flags string) (*regexp.Regexp, error) {
	var inline []rune
	sticky := false
	for _, f := range strings.TrimSpace(flags) {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(string(inline), f) {
				inline = append(inline, f)
			}
		case 'y':
			sticky = true
		case 'g', 'u', 'd':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}
	if sticky {
		expr = `\A(?:` + expr + `)`
	}
	if len(inline) > 0 {
		expr = "(?" + string(inline) + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return re, nil
}
