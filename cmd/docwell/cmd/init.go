package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/config"
	"github.com/jbovet/docwell/internal/output"
	"github.com/jbovet/docwell/internal/preflight"
)

func newInitCmd() *cobra.Command {
	var (
		force   bool
		offline bool
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "init [folder...]",
		Short: "Initialize a corpus for one or more folders",
		Long: `Initialize Docwell for a set of folders.

This command:
1. Resolves the corpus identity for the given folders (or the current
   directory, if none are given)
2. Writes config.json with default settings
3. Runs the same diagnostics as 'docwell doctor' so problems surface
   before the daemon is started

After it completes, run 'docwell daemon start' to begin indexing.`,
		Example: `  # Initialize the current directory
  docwell init

  # Initialize an explicit set of folders
  docwell init ~/Documents ~/Notes

  # Reinitialize, overwriting any existing config.json
  docwell init --force

  # Skip embedder-reachability checks
  docwell init --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, args, force, offline, exclude)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip embedder-reachability checks")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Additional path patterns to exclude")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, folders []string, force, offline bool, exclude []string) error {
	out := output.New(cmd.OutOrStdout())

	if len(folders) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		folders = []string{cwd}
	}

	abs := make([]string, len(folders))
	for i, f := range folders {
		a, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", f, err)
		}
		if info, err := os.Stat(a); err != nil || !info.IsDir() {
			return fmt.Errorf("%q is not a directory", f)
		}
		abs[i] = a
	}

	corpusDir, err := config.CorpusDir(abs)
	if err != nil {
		return err
	}

	if config.Exists(corpusDir) && !force {
		return fmt.Errorf("corpus already initialized at %s\nUse --force to overwrite", corpusDir)
	}

	cfg := config.New()
	cfg.WatchedFolders = abs
	cfg.Settings.ExcludePatterns = append(cfg.Settings.ExcludePatterns, exclude...)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}
	if err := cfg.Save(corpusDir); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out.Success(fmt.Sprintf("Initialized corpus at %s", corpusDir))
	for _, f := range abs {
		out.Status("", fmt.Sprintf("  - %s", f))
	}
	out.Newline()

	checker := preflight.New(
		preflight.WithOffline(offline),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, corpusDir)
	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed; fix the issues above before starting the daemon")
	}
	if err := preflight.MarkPassed(corpusDir); err != nil {
		return fmt.Errorf("recording diagnostics result: %w", err)
	}

	out.Newline()
	out.Status("", "Run 'docwell daemon start' to begin indexing")

	return nil
}
