// Package report renders gather runs and run comparisons.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - FullJSONWriter: JSON output wrapped with version and summary
//   - MarkdownWriter: Markdown output with tables and a mermaid chart
//
// Compare computes the artifact-level difference between two runs of the
// same URL, which every writer can render through WriteComparison.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
