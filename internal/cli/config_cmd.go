package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCommand creates the "config" group for inspecting the effective inputs.
func newConfigCommand(opts *Options) *cobra.Command {
	return newGroupCommand(
		"config",
		"Inspect the effective ticketlint configuration",
		newConfigShowCommand(opts),
		newConfigValidateCommand(opts),
	)
}

// newConfigShowCommand prints the merged configuration as YAML. The token is never printed.
func newConfigShowCommand(opts *Options) *cobra.Command {
	inputs := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, opts, inputs)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	inputs.bind(cmd, false)
	return cmd
}

// newConfigValidateCommand checks the inputs and compiles both patterns without calling any API.
func newConfigValidateCommand(opts *Options) *cobra.Command {
	inputs := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate inputs and compile the title and branch patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, opts, inputs)
			if err != nil {
				return err
			}
			if _, err := cfg.LinterOptions(nil); err != nil {
				return err
			}
			logger.Info("configuration is valid", "platform", cfg.Platform)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	inputs.bind(cmd, false)
	return cmd
}
