package report

import (
	"io"

	"github.com/nao1215/pagerank/internal/model"
)

// Writer defines the interface for report output.
// Implementations write ranking results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files or stdout with the same
// API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RankReport) (int, error)

	// WriteSummary outputs only the side-by-side summary.
	WriteSummary(summary *model.RankSummary) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes the run state of a report.
func statusText(timedOut bool, errMsg string) string {
	if timedOut {
		return "TIMED OUT (partial results)"
	}
	if errMsg != "" {
		return "ERROR - " + errMsg
	}
	return "Complete"
}
