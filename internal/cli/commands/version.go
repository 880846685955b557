package commands

import (
	"fmt"

	"github.com/leapstack-labs/bridgeport/pkg/query"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display Bridgeport version information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bridgeport v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Query DSL version %d\n", query.Version)
		},
	}
}
