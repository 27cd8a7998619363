package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbovet/docwell/internal/daemon"
	"github.com/jbovet/docwell/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	format  string // "text", "json"
	folders []string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search a watched corpus by semantic similarity, grouped by
source file with passage previews. Requires the daemon to be
running for that corpus ('docwell daemon start').

Examples:
  docwell search "vacation policy"
  docwell search "Q3 budget numbers" --limit 5
  docwell search "refund process" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.folders, "folder", nil, "Watched folder(s) identifying the corpus (default: current directory's corpus)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	_, corpusDir, err := resolveCorpus(opts.folders)
	if err != nil {
		return err
	}
	client := daemon.NewClient(daemonConfig(corpusDir))

	if !client.IsRunning() {
		return fmt.Errorf("daemon is not running for this corpus\nRun 'docwell daemon start' first")
	}

	results, err := client.Search(ctx, daemon.SearchParams{Query: query, K: opts.limit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		return encodeJSON(cmd, results)
	}

	return formatResults(out, query, results)
}

func formatResults(out *output.Writer, query string, results []daemon.SearchResult) error {
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()

	for i, r := range results {
		out.Statusf("", "%d. %s (score: %.3f)", i+1, r.Path, r.Score)
		for _, p := range r.Previews {
			snippet := getSnippet(p.Text, 2)
			for _, line := range snippet {
				out.Status("", "   "+line)
			}
		}
		out.Newline()
	}

	return nil
}

// getSnippet returns the first n non-empty-tail lines of content.
func getSnippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
