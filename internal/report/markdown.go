package report

import (
	"io"
	"math"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pagerank/internal/model"
)

// DisagreementThreshold is the largest per-page difference between the
// two estimators that the Markdown report accepts without a warning.
const DisagreementThreshold = 0.05

// basisPoints scales a rank to the integer values the pie chart accepts.
const basisPoints = 10000

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation. It gives us tables, mermaid charts and GitHub-flavored alerts
// without hand-building the syntax.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RankReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeRanks(md, report.EnsureSummary())
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.RankSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("PageRank Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Corpus", "`" + summary.CorpusDir + "`"},
			{"Ranked", summary.DateRanked.Format("2006-01-02 15:04:05 MST")},
			{"Status", statusText(summary.TimedOut, summary.Error)},
		},
	})
	md.PlainText("")
	w.writeRanks(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with corpus and run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RankReport) {
	md.H1("PageRank Report")
	md.PlainText("")

	rows := [][]string{
		{"Corpus", "`" + report.CorpusDir + "`"},
		{"Ranked", report.DateRanked.Format("2006-01-02 15:04:05 MST")},
		{"Pages", strconv.Itoa(report.PageCount)},
		{"Links", strconv.Itoa(report.LinkCount)},
		{"Pages without links", strconv.Itoa(report.SinkCount)},
		{"Damping", strconv.FormatFloat(report.Damping, 'f', 2, 64)},
		{"Samples", strconv.Itoa(report.Samples)},
		{"Seed", strconv.FormatUint(report.Seed, 10)},
		{"Tolerance", strconv.FormatFloat(report.Tolerance, 'g', -1, 64)},
		{"Rounds", strconv.Itoa(report.Iterations)},
		{"Status", statusText(report.TimedOut, report.ErrorMessage)},
	}
	if report.Fingerprint != "" {
		rows = append(rows, []string{"Fingerprint", "`" + report.Fingerprint + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRanks writes the side-by-side rank table, the chart and the
// agreement alert.
func (w *MarkdownWriter) writeRanks(md *markdown.Markdown, summary *model.RankSummary) {
	md.H2("Ranks")
	md.PlainText("")

	if !summary.HasResults() {
		md.PlainText("No ranks computed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Rows))
	for i, r := range summary.Rows {
		rows[i] = []string{
			"`" + r.Page + "`",
			formatRank(r.Sampled),
			formatRank(r.Iterated),
			formatRank(r.Delta),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Sampled", "Iterated", "Delta"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Iterations > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the iterated ranks.
// Pages whose rank rounds to zero basis points are left out.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RankSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Iterated PageRank (basis points)"),
		piechart.WithShowData(true),
	)

	for _, r := range summary.Rows {
		if bp := math.Round(r.Iterated * basisPoints); bp > 0 {
			chart.LabelAndIntValue(r.Page, uint64(bp))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert reports whether the two estimators agree.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.RankSummary) {
	switch {
	case summary.Error != "":
		md.Cautionf("Ranking failed: %s", summary.Error)
	case summary.Samples == 0 || summary.Iterations == 0:
		md.Note("Only one estimator produced a result.")
	case summary.Disagrees(DisagreementThreshold):
		md.Warningf(
			"The estimators differ by %s on at least one page. Consider more samples.",
			formatRank(summary.MaxDelta),
		)
	default:
		md.Tip("Sampled and iterated ranks agree.")
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagerank](https://github.com/nao1215/pagerank)*")
}

// formatRank formats a rank with four decimal places.
func formatRank(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
