package cmd

import (
	"github.com/spf13/cobra"
)

// newStatusCmd is a top-level convenience alias for 'docwell daemon
// status': most users think in terms of "is my corpus ready" rather
// than "is the daemon subprocess running", so the same report is
// reachable without the daemon noun.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [folder...]",
		Short: "Show index health and daemon status",
		Long: `Display whether the background daemon is running, how many
files and chunks are indexed, and whether the embedding model is
ready. Equivalent to 'docwell daemon status'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
