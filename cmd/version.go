package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via
// -ldflags "-X github.com/uimap/uimap-cli/cmd.Version=...".
var Version = "0.1.0-dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the uimap version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
