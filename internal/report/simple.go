package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pagerank/internal/model"
)

const (
	// estimatorSampling names the Monte Carlo estimator in section headers.
	estimatorSampling = "sampling"
	// estimatorIteration names the fixed point estimator in section headers.
	estimatorIteration = "iteration"
)

// SimpleWriter outputs human-readable text reports.
// The two result sections use one "page: rank" line per page, sorted by
// page name, so the output of two runs can be diffed line by line.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it works in all terminals and is easy to pipe to
// files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose adds run parameters and timings to the output.
	verbose bool

	// title converts estimator names for section headers.
	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with run parameters.
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

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.RankReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if w.verbose {
		w.writeParameters(&sb, report)
	}
	w.writeRanks(&sb, report.EnsureSummary())
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.RankSummary) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Corpus:      %s\n", summary.CorpusDir)
	fmt.Fprintf(&sb, "Ranked:      %s\n", summary.DateRanked.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Status:      %s\n\n", statusText(summary.TimedOut, summary.Error))
	w.writeRanks(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with corpus information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RankReport) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("                    PAGERANK REPORT\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Corpus:      %s\n", report.CorpusDir)
	fmt.Fprintf(sb, "Ranked:      %s\n", report.DateRanked.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages:       %d (%d without links)\n", report.PageCount, report.SinkCount)
	fmt.Fprintf(sb, "Links:       %d\n", report.LinkCount)
	if report.Fingerprint != "" {
		fmt.Fprintf(sb, "Fingerprint: %s\n", shortFingerprint(report.Fingerprint))
	}
	fmt.Fprintf(sb, "Status:      %s\n\n", statusText(report.TimedOut, report.ErrorMessage))
}

// writeParameters writes the estimator parameters and timings.
func (w *SimpleWriter) writeParameters(sb *strings.Builder, report *model.RankReport) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\nPARAMETERS\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  damping:    %.2f\n", report.Damping)
	fmt.Fprintf(sb, "  seed:       %d\n", report.Seed)
	fmt.Fprintf(sb, "  walkers:    %d\n", report.Walkers)
	fmt.Fprintf(sb, "  tolerance:  %g\n", report.Tolerance)
	fmt.Fprintf(sb, "  rounds:     %d\n", report.Iterations)
	fmt.Fprintf(sb, "  %s: %s\n", w.title.String(estimatorSampling), report.SampleDuration)
	fmt.Fprintf(sb, "  %s: %s\n\n", w.title.String(estimatorIteration), report.IterateDuration)
}

// writeRanks writes one section per estimator that produced a result.
func (w *SimpleWriter) writeRanks(sb *strings.Builder, summary *model.RankSummary) {
	if !summary.HasResults() {
		sb.WriteString("No ranks computed.\n\n")
		return
	}

	if summary.Samples > 0 {
		fmt.Fprintf(sb, "PageRank Results from %s (n = %d)\n", w.title.String(estimatorSampling), summary.Samples)
		for _, row := range summary.Rows {
			fmt.Fprintf(sb, "  %s: %.4f\n", row.Page, row.Sampled)
		}
		sb.WriteString("\n")
	}

	if summary.Iterations > 0 {
		fmt.Fprintf(sb, "PageRank Results from %s\n", w.title.String(estimatorIteration))
		for _, row := range summary.Rows {
			fmt.Fprintf(sb, "  %s: %.4f\n", row.Page, row.Iterated)
		}
		sb.WriteString("\n")
	}

	if summary.Samples > 0 && summary.Iterations > 0 {
		fmt.Fprintf(sb, "Largest difference: %.4f\n", summary.MaxDelta)
		if summary.TopPage != "" {
			fmt.Fprintf(sb, "Top page:           %s\n", summary.TopPage)
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
}

// shortFingerprint returns the first 12 hex digits of a fingerprint.
func shortFingerprint(fp string) string {
	const n = 12
	if len(fp) <= n {
		return fp
	}
	return fp[:n]
}
