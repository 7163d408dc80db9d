package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/willoughbyrm/lighthouse/internal/config"
	"github.com/willoughbyrm/lighthouse/internal/database"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/report"
)

// compareOptions selects what the compare command shows.
type compareOptions struct {
	runIDs   []string
	artifact string
	json     bool
	markdown bool
}

// NewCompareCmd creates the compare command.
// This command compares runs stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare stored runs of a URL",
		Long: `Compare shows which artifacts changed between two stored runs of a URL:
- Artifacts that started failing
- Artifacts that were fixed
- Artifacts that were added or removed

By default the two most recent runs are compared. Every 'lighthouse gather'
stores its run unless --no-save is given.

Examples:
  # Compare latest two runs of a URL
  lighthouse compare https://example.com

  # List the run history of a URL
  lighthouse compare --list https://example.com

  # Compare an older run with the latest one
  lighthouse compare --run 3f9c... https://example.com

  # Compare two specific runs
  lighthouse compare --run <previous-id> --run <current-id> https://example.com

  # Show the status history of one artifact
  lighthouse compare --artifact DevtoolsLog https://example.com

  # List every URL in the database
  lighthouse compare --list-urls`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified URL")
	cmd.Flags().BoolP("list-urls", "L", false,
		"List all URLs with stored runs")
	cmd.Flags().StringP("artifact", "a", "",
		"Show the status history of one artifact id")

	// Comparison target flags
	cmd.Flags().StringSliceP("run", "r", nil,
		"Run id to compare; give once to compare with the latest run, twice for previous and current")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	listURLs, err := flags.GetBool("list-urls")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var url string
	if !listURLs {
		if len(args) == 0 {
			return errors.New("URL is required (use --list-urls to see stored URLs)")
		}
		url = args[0]
	}

	var opts compareOptions
	if opts.runIDs, err = flags.GetStringSlice("run"); err != nil {
		return err
	}
	if len(opts.runIDs) > 2 {
		return fmt.Errorf("at most 2 run ids can be compared (got %d)", len(opts.runIDs))
	}
	if opts.artifact, err = flags.GetString("artifact"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case listURLs:
		return listStoredURLs(ctx, out, db)
	case listHistory:
		return listRunHistory(ctx, out, db, url)
	case opts.artifact != "":
		return showArtifactHistory(ctx, out, db, url, opts.artifact)
	default:
		return runComparison(ctx, out, db, url, opts)
	}
}

// listStoredURLs lists every URL that has runs in the database.
func listStoredURLs(ctx context.Context, out io.Writer, db *database.RunDB) error {
	urls, err := db.ListURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list URLs: %w", err)
	}

	if len(urls) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'lighthouse gather <url>' to gather a URL.")
		return nil
	}

	fmt.Fprintf(out, "Gathered URLs (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  • %s\n", u)
	}
	fmt.Fprintln(out, "\nUse 'lighthouse compare --list <url>' to see the run history of a URL.")

	return nil
}

// listRunHistory lists all runs of url, newest first.
func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, url string) error {
	runs, err := db.ListRuns(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", url)
		fmt.Fprintln(out, "\nUse 'lighthouse gather' to gather this URL.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", url, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-10s  %s\n", "ID", "Date", "Duration", "Artifacts")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-10s  %s\n",
			meta.ID,
			meta.StartedAt.Format("2006-01-02 15:04:05"),
			meta.Duration.Round(time.Millisecond),
			formatRunSummary(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'lighthouse compare <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'lighthouse compare --run <id> <url>' to compare with a specific run.")

	return nil
}

// formatRunSummary formats the artifact counts of a stored run.
func formatRunSummary(meta database.RunMetadata) string {
	s := fmt.Sprintf("%d ok, %d failed", meta.Artifacts-meta.Failed, meta.Failed)
	if meta.Fault != "" {
		s += " (faulted)"
	}
	return s
}

// showArtifactHistory lists the status of one artifact across runs of url.
func showArtifactHistory(ctx context.Context, out io.Writer, db *database.RunDB, url, artifactID string) error {
	history, err := db.ArtifactHistory(ctx, url, artifactID)
	if err != nil {
		return fmt.Errorf("failed to get artifact history: %w", err)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No history found for artifact %s of %s\n", artifactID, url)
		return nil
	}

	fmt.Fprintf(out, "History of %s for %s (%d runs):\n\n", artifactID, url, len(history))
	for _, h := range history {
		status := "ok"
		if h.Failed {
			status = "failed: " + h.Error
		}
		fmt.Fprintf(out, "  %s  %s  %s\n", h.StartedAt.Format("2006-01-02 15:04:05"), h.RunID, status)
	}
	return nil
}

// runComparison selects two runs of url and writes their comparison.
func runComparison(ctx context.Context, out io.Writer, db *database.RunDB, url string, opts compareOptions) error {
	previous, current, err := selectRuns(ctx, db, url, opts.runIDs)
	if err != nil {
		return err
	}

	c := report.Compare(previous, current)
	_, err = newWriter(out, opts.json, opts.markdown, false).WriteComparison(c)
	return err
}

// selectRuns returns the previous and current run to compare.
// With no ids the latest two runs are used; one id is compared with the
// latest run; two ids are taken as previous and current.
func selectRuns(ctx context.Context, db *database.RunDB, url string, ids []string) (*model.Run, *model.Run, error) {
	switch len(ids) {
	case 0:
		runs, err := db.GetRecentRuns(ctx, url, 2)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get run history: %w", err)
		}
		if len(runs) == 0 {
			return nil, nil, fmt.Errorf("no run history found for %s", url)
		}
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		return runs[1], runs[0], nil

	case 1:
		previous, err := getRunOf(ctx, db, url, ids[0])
		if err != nil {
			return nil, nil, err
		}
		current, err := db.GetLatestRun(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get latest run: %w", err)
		}
		if current.ID == previous.ID {
			return nil, nil, fmt.Errorf("run %s is the latest run of %s; give a second --run to compare with", previous.ID, url)
		}
		return previous, current, nil

	default:
		previous, err := getRunOf(ctx, db, url, ids[0])
		if err != nil {
			return nil, nil, err
		}
		current, err := getRunOf(ctx, db, url, ids[1])
		if err != nil {
			return nil, nil, err
		}
		return previous, current, nil
	}
}

// getRunOf loads a run by id and checks that it was a run of url.
func getRunOf(ctx context.Context, db *database.RunDB, url, id string) (*model.Run, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	if run.RequestedURL != url {
		return nil, fmt.Errorf("run %s belongs to %s, not %s", id, run.RequestedURL, url)
	}
	return run, nil
}
