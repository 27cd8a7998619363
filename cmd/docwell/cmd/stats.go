package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/daemon"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var folders []string

	cmd := &cobra.Command{
		Use:   "stats [folder...]",
		Short: "Show corpus statistics",
		Long: `Display indexed file and chunk counts for a corpus, served from
the Stats Cache. Requires the daemon to be running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				folders = args
			}
			return runStats(cmd.Context(), cmd, jsonOutput, folders)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVar(&folders, "folder", nil, "Watched folder(s) identifying the corpus (default: current directory's corpus)")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool, folders []string) error {
	_, corpusDir, err := resolveCorpus(folders)
	if err != nil {
		return err
	}

	client := daemon.NewClient(daemonConfig(corpusDir))
	if !client.IsRunning() {
		return fmt.Errorf("daemon is not running for this corpus\nRun 'docwell daemon start' first")
	}

	stats, err := client.DBStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if jsonOutput {
		return encodeJSON(cmd, stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Corpus Statistics")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Indexed files: %d\n", stats.IndexedFiles)
	fmt.Fprintf(w, "Total chunks:  %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "Vector dim:    %d\n", stats.ModelDim)

	return nil
}
