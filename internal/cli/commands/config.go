package commands

import (
	"fmt"

	"github.com/leapstack-labs/bridgeport/internal/cli/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file, environment
variables and flags have been applied. Connection strings are masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)

			out, err := yaml.Marshal(cc.Cfg.Redacted())
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			if file := config.GetConfigFileUsed(); file != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", file)
			}
			_, _ = cmd.OutOrStdout().Write(out)
			return nil
		},
	}
}
