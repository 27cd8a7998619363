package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect a corpus's configuration",
		Long: `Show or locate the config.json for the corpus made up of a set
of watched folders. Settings control excluded path patterns, the
embedding batch size, and the indexing CPU throttle.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. config.json
  3. DOCWELL_* environment variables`,
		Example: `  # Show the current directory's corpus configuration
  docwell config show

  # Print where that config.json lives
  docwell config path`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [folder...]",
		Short: "Show the corpus configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path [folder...]",
		Short: "Print the corpus config.json path",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, corpusDir, err := resolveCorpus(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath(corpusDir))
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, folders []string, jsonOutput bool) error {
	cfg, corpusDir, err := resolveCorpus(folders)
	if err != nil {
		return err
	}
	if !config.Exists(corpusDir) {
		return fmt.Errorf("no configuration found for this corpus\nRun 'docwell init' first")
	}

	if jsonOutput {
		return encodeJSON(cmd, cfg)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Corpus:              %s\n", corpusDir)
	fmt.Fprintf(w, "Watched folders:\n")
	for _, f := range cfg.WatchedFolders {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	fmt.Fprintf(w, "Exclude patterns:\n")
	for _, p := range cfg.Settings.ExcludePatterns {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintf(w, "Embedding batch size: %d\n", cfg.Settings.EmbeddingBatchSize)
	fmt.Fprintf(w, "CPU throttle:         %s\n", cfg.Settings.CPUThrottle)

	return nil
}
