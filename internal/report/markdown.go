package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/willoughbyrm/lighthouse/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeArtifacts(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and run metadata table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Lighthouse Gather Report")
	md.PlainText("")

	finalURL := run.FinalURL
	if finalURL == "" {
		finalURL = "-"
	}
	navigations := strings.Join(run.Navigations, ", ")
	if navigations == "" {
		navigations = "-"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", run.ID},
			{"Requested URL", run.RequestedURL},
			{"Final URL", finalURL},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration.String()},
			{"Navigations", navigations},
			{"Status", statusText(run)},
		},
	})
	md.PlainText("")
}

// statusText describes how the run ended.
func statusText(run *model.Run) string {
	switch {
	case run.Faulted():
		return "Faulted: " + run.Fault
	case len(run.Artifacts.Failed()) > 0:
		return "Complete with failed artifacts"
	default:
		return "Complete"
	}
}

// writeSummary writes the artifact counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.Run) {
	md.H2("Summary")
	md.PlainText("")

	failed := len(run.Artifacts.Failed())
	md.Table(markdown.TableSet{
		Header: []string{"Artifacts", "Count"},
		Rows: [][]string{
			{"Succeeded", strconv.Itoa(run.Succeeded())},
			{"Failed", strconv.Itoa(failed)},
			{"Total", strconv.Itoa(len(run.Artifacts))},
		},
	})

	if len(run.Artifacts) > 0 {
		w.writePieChart(md, run.Succeeded(), failed)
	}

	w.writeAlert(md, run, failed)
}

// writePieChart writes a mermaid pie chart of artifact outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, succeeded, failed int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Artifact Outcomes"),
		piechart.WithShowData(true),
	)
	if succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(succeeded))
	}
	if failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run, failed int) {
	switch {
	case run.Faulted():
		md.Cautionf("The run was cut short: %s", run.Fault)
	case failed > 0:
		md.Warningf("%d of %d artifact(s) failed.", failed, len(run.Artifacts))
	case len(run.Artifacts) == 0:
		md.Note("No artifacts were gathered.")
	default:
		md.Tip("Every artifact was gathered.")
	}
	md.PlainText("")
}

// writeArtifacts writes one table row per artifact, then error details.
func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, run *model.Run) {
	md.H2("Artifacts")
	md.PlainText("")

	if len(run.Artifacts) == 0 {
		md.PlainText("No artifacts.")
		md.PlainText("")
		return
	}

	ids := run.Artifacts.IDs()
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		r := run.Artifacts[id]
		if r.Failed() {
			rows = append(rows, []string{id, "failed", truncateString(r.Err.Error(), 60)})
			continue
		}
		rows = append(rows, []string{id, "ok", summarize(r.Value, 60)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Artifact", "Status", "Summary"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, id := range run.Artifacts.Failed() {
		md.Details(id, run.Artifacts[id].Err.Error())
	}
	md.PlainText("")
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Lighthouse Run Comparison")
	md.PlainText("")
	md.PlainTextf("**URL:** %s", c.URL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"", "Previous", "Current"},
		Rows: [][]string{
			{"Run ID", c.Previous.ID, c.Current.ID},
			{"Started", c.Previous.StartedAt.Format("2006-01-02 15:04:05"), c.Current.StartedAt.Format("2006-01-02 15:04:05")},
			{"Duration", c.Previous.Duration.String(), c.Current.Duration.String()},
			{"Artifacts", strconv.Itoa(c.Previous.Artifacts), strconv.Itoa(c.Current.Artifacts)},
			{"Failed", strconv.Itoa(c.Previous.Failed), strconv.Itoa(c.Current.Failed)},
		},
	})
	md.PlainText("")

	switch c.Direction {
	case DirectionRegressed:
		md.Warningf("Regressed: %s failed artifact(s).", formatDelta(c.FailedDelta))
	case DirectionImproved:
		md.Tip(fmt.Sprintf("Improved: %s failed artifact(s).", formatDelta(c.FailedDelta)))
	default:
		md.Note("Failure count unchanged.")
	}
	md.PlainText("")

	sections := []struct {
		title string
		ids   []string
	}{
		{"Broken", c.Broken},
		{"Fixed", c.Fixed},
		{"Added", c.Added},
		{"Removed", c.Removed},
	}
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		md.H2(s.title)
		md.PlainText("")
		md.BulletList(s.ids...)
		md.PlainText("")
	}
	if !c.HasChanges() {
		md.PlainText("No artifact changes.")
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by lighthouse*")
}

// formatDelta formats a signed count with an explicit plus sign.
func formatDelta(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("+%d", delta)
	}
	return strconv.Itoa(delta)
}
