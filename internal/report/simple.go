package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/willoughbyrm/lighthouse/internal/model"
)

// ruleWidth is the width of the banner and section rules.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose shows artifact values next to their status.
	verbose bool

	// title renders labels such as directions in title case.
	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "LIGHTHOUSE GATHER REPORT")

	fmt.Fprintf(&sb, "URL:            %s\n", run.RequestedURL)
	if run.FinalURL != "" && run.FinalURL != run.RequestedURL {
		fmt.Fprintf(&sb, "Final URL:      %s\n", run.FinalURL)
	}
	fmt.Fprintf(&sb, "Run ID:         %s\n", run.ID)
	fmt.Fprintf(&sb, "Started:        %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:       %s\n", run.Duration)
	fmt.Fprintf(&sb, "Navigations:    %d\n", len(run.Navigations))
	if run.Faulted() {
		fmt.Fprintf(&sb, "Status:         FAULTED - %s\n", run.Fault)
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")

	w.writeSection(&sb, "ARTIFACT SUMMARY")
	failed := run.Artifacts.Failed()
	fmt.Fprintf(&sb, "  SUCCEEDED: %d\n", run.Succeeded())
	fmt.Fprintf(&sb, "  FAILED:    %d\n", len(failed))
	fmt.Fprintf(&sb, "  TOTAL:     %d artifacts\n\n", len(run.Artifacts))

	w.writeArtifacts(&sb, run)

	if len(failed) > 0 || w.showEmpty {
		w.writeSection(&sb, "ERRORS")
		if len(failed) == 0 {
			sb.WriteString("  No errors\n")
		}
		for _, id := range failed {
			fmt.Fprintf(&sb, "  [!] %s: %s\n", id, run.Artifacts[id].Err)
		}
		sb.WriteString("\n")
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeArtifacts lists every artifact with its status.
func (w *SimpleWriter) writeArtifacts(sb *strings.Builder, run *model.Run) {
	if len(run.Artifacts) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "ARTIFACTS")
	if len(run.Artifacts) == 0 {
		sb.WriteString("  No artifacts\n\n")
		return
	}

	for _, id := range run.Artifacts.IDs() {
		r := run.Artifacts[id]
		if r.Failed() {
			fmt.Fprintf(sb, "  [!] %s\n", id)
			continue
		}
		fmt.Fprintf(sb, "  [+] %s\n", id)
		if w.verbose {
			fmt.Fprintf(sb, "      %s\n", summarize(r.Value, ruleWidth-6))
		}
	}
	sb.WriteString("\n")
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(c *Comparison) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "LIGHTHOUSE RUN COMPARISON")

	fmt.Fprintf(&sb, "URL:       %s\n", c.URL)
	fmt.Fprintf(&sb, "Previous:  %s (%s)\n", c.Previous.ID, c.Previous.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current:   %s (%s)\n", c.Current.ID, c.Current.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Failed:    %d -> %d (%s)\n", c.Previous.Failed, c.Current.Failed, formatDelta(c.FailedDelta))
	fmt.Fprintf(&sb, "Direction: %s\n\n", w.title.String(string(c.Direction)))

	lists := []struct {
		label  string
		marker string
		ids    []string
	}{
		{"broken", "!", c.Broken},
		{"fixed", "+", c.Fixed},
		{"added", "+", c.Added},
		{"removed", "-", c.Removed},
	}
	for _, l := range lists {
		if len(l.ids) == 0 && !w.showEmpty {
			continue
		}
		w.writeSection(&sb, strings.ToUpper(l.label))
		if len(l.ids) == 0 {
			fmt.Fprintf(&sb, "  %s\n", w.title.String("none "+l.label))
		}
		for _, id := range l.ids {
			fmt.Fprintf(&sb, "  [%s] %s\n", l.marker, id)
		}
		sb.WriteString("\n")
	}
	if !c.HasChanges() {
		sb.WriteString("No artifact changes.\n\n")
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeBanner writes a centered title between double rules.
func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := (ruleWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

// writeSection writes a section heading between single rules.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by lighthouse\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
