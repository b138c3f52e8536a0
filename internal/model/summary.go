package model

import (
	"math"
	"time"
)

// RankSummary is a compact, side-by-side view of a RankReport.
// Report writers and the history command render it instead of the raw
// distributions.
type RankSummary struct {
	// CorpusDir is the directory the corpus was loaded from.
	CorpusDir string `json:"corpus_dir"`

	// DateRanked is when the run was performed.
	DateRanked time.Time `json:"date_ranked"`

	// Samples is the number of sampler steps.
	Samples int `json:"samples"`

	// Iterations is the number of rounds the iterative estimator needed.
	Iterations int `json:"iterations"`

	// Rows holds one entry per page, sorted by page name.
	Rows []PageRank `json:"rows"`

	// MaxDelta is the largest disagreement between the two estimators.
	MaxDelta float64 `json:"max_delta"`

	// TopPage is the page with the highest iterated rank.
	TopPage string `json:"top_page,omitempty"`

	// TimedOut indicates if the run was cancelled.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if the run failed.
	Error string `json:"error,omitempty"`
}

// PageRank is one page's estimates from both estimators.
type PageRank struct {
	// Page is the page label.
	Page string `json:"page"`

	// Sampled is the Monte Carlo estimate.
	Sampled float64 `json:"sampled"`

	// Iterated is the fixed point estimate.
	Iterated float64 `json:"iterated"`

	// Delta is the absolute difference between the two estimates.
	Delta float64 `json:"delta"`
}

// NewRankSummary builds a summary from a report.
// Pages present in only one estimate appear with zero for the other.
func NewRankSummary(report *RankReport) *RankSummary {
	s := &RankSummary{
		CorpusDir:  report.CorpusDir,
		DateRanked: report.DateRanked,
		Samples:    report.Samples,
		Iterations: report.Iterations,
		Rows:       make([]PageRank, 0),
		TimedOut:   report.TimedOut,
		Error:      report.ErrorMessage,
	}

	union := make(Distribution, len(report.Iterated))
	for page := range report.Sampled {
		union[page] = 0
	}
	for page := range report.Iterated {
		union[page] = 0
	}

	for _, page := range union.Pages() {
		row := PageRank{
			Page:     page,
			Sampled:  report.Sampled[page],
			Iterated: report.Iterated[page],
		}
		row.Delta = math.Abs(row.Sampled - row.Iterated)
		if row.Delta > s.MaxDelta {
			s.MaxDelta = row.Delta
		}
		s.Rows = append(s.Rows, row)
	}

	s.TopPage = report.Iterated.Top()

	return s
}

// HasResults reports whether the summary contains any ranked pages.
func (s *RankSummary) HasResults() bool {
	return len(s.Rows) > 0
}

// Disagrees reports whether the estimators differ by more than threshold
// on any page.
func (s *RankSummary) Disagrees(threshold float64) bool {
	return s.MaxDelta > threshold
}
