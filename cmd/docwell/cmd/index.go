package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/config"
	"github.com/jbovet/docwell/internal/daemon"
	"github.com/jbovet/docwell/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <folder> [folder...]",
		Short: "Add folders to a corpus's watched set",
		Long: `Add one or more folders to the set of folders a corpus watches.

Indexing itself is not a one-shot batch operation: once the daemon
is running for a corpus, every watched folder is scanned at startup
and then kept continuously in sync by the folder watcher. This
command only updates config.json; start (or restart) the daemon
to pick up a freshly added folder.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args)
		},
	}

	return cmd
}

func runIndex(cmd *cobra.Command, folders []string) error {
	out := output.New(cmd.OutOrStdout())

	abs := make([]string, len(folders))
	for i, f := range folders {
		a, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", f, err)
		}
		abs[i] = a
	}

	corpusDir, err := config.CorpusDir(abs)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if config.Exists(corpusDir) {
		cfg, err = config.Load(corpusDir)
		if err != nil {
			return err
		}
		cfg.WatchedFolders = mergeFolders(cfg.WatchedFolders, abs)
	} else {
		cfg = config.New()
		cfg.WatchedFolders = abs
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(corpusDir); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out.Success(fmt.Sprintf("Corpus now watches %d folder(s)", len(cfg.WatchedFolders)))
	for _, f := range cfg.WatchedFolders {
		out.Status("", fmt.Sprintf("  - %s", f))
	}

	client := daemon.NewClient(daemonConfig(corpusDir))
	if client.IsRunning() {
		out.Newline()
		out.Status("", "Daemon is already running; restart it to pick up the new folder set:")
		out.Status("", "  docwell daemon stop && docwell daemon start")
	} else {
		out.Newline()
		out.Status("", "Run 'docwell daemon start' to begin indexing")
	}

	return nil
}

// mergeFolders appends any folder in additions not already present in
// existing, preserving existing order.
func mergeFolders(existing, additions []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f] = true
	}
	merged := append([]string{}, existing...)
	for _, f := range additions {
		if !seen[f] {
			merged = append(merged, f)
			seen[f] = true
		}
	}
	return merged
}
