package model

import (
	"time"
)

// RankReport is the main result structure for ranking one corpus.
// It contains the parameters of the run and the output of both estimators.
//
// Design decision: We use a single flat struct rather than one struct per
// estimator to simplify serialization and database storage. The summary
// sub-struct groups the side-by-side view used by report writers.
type RankReport struct {
	// === Corpus Information ===

	// CorpusDir is the directory the corpus was loaded from.
	CorpusDir string `json:"corpus_dir"`

	// Fingerprint is the SHA3-256 digest of the corpus link structure.
	// Runs with equal fingerprints ranked the same graph.
	Fingerprint string `json:"fingerprint,omitempty"`

	// PageCount is the number of pages in the corpus.
	PageCount int `json:"page_count"`

	// LinkCount is the number of in-corpus links.
	LinkCount int `json:"link_count"`

	// SinkCount is the number of pages without outbound links.
	SinkCount int `json:"sink_count"`

	// DateRanked is the timestamp when the run started.
	DateRanked time.Time `json:"date_ranked"`

	// Corpus is the loaded link graph. It is shared read-only by the
	// estimators and excluded from JSON because it can be rebuilt from disk.
	Corpus *Corpus `json:"-"`

	// === Parameters ===

	// Damping is the probability of following a link rather than jumping
	// to a uniformly random page.
	Damping float64 `json:"damping"`

	// Samples is the number of random surfer steps taken by the sampler.
	Samples int `json:"samples"`

	// Walkers is the number of independent walks the samples were split across.
	Walkers int `json:"walkers"`

	// Seed is the random seed used by the sampler. A run without a fixed
	// seed records the seed that was drawn for it.
	Seed uint64 `json:"seed,omitempty"`

	// Tolerance is the convergence threshold of the iterative estimator.
	Tolerance float64 `json:"tolerance"`

	// === Results ===

	// Sampled holds the Monte Carlo estimate.
	Sampled Distribution `json:"sampled,omitempty"`

	// Iterated holds the fixed point estimate.
	Iterated Distribution `json:"iterated,omitempty"`

	// Iterations is the number of update rounds until convergence.
	Iterations int `json:"iterations"`

	// SampleDuration is how long the sampler ran.
	SampleDuration time.Duration `json:"sample_duration"`

	// IterateDuration is how long the iterative estimator ran.
	IterateDuration time.Duration `json:"iterate_duration"`

	// Summary is the side-by-side view of both estimates.
	Summary *RankSummary `json:"summary,omitempty"`

	// === Run State ===

	// TimedOut indicates the run was cancelled before all steps finished.
	TimedOut bool `json:"timed_out"`

	// PerformedSteps lists the pipeline steps that were executed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error holds the last step error, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewRankReport creates a RankReport for the given corpus directory.
func NewRankReport(corpusDir string) *RankReport {
	return &RankReport{
		CorpusDir:      corpusDir,
		DateRanked:     time.Now(),
		PerformedSteps: make([]string, 0),
	}
}

// SetCorpus attaches a loaded corpus and records its statistics.
func (r *RankReport) SetCorpus(c *Corpus) {
	r.Corpus = c
	r.PageCount = c.Len()
	r.LinkCount = c.LinkCount()
	r.SinkCount = len(c.Sinks())
	r.Fingerprint = c.Fingerprint()
}

// Completed reports whether both estimators produced a result.
func (r *RankReport) Completed() bool {
	return r.Sampled != nil && r.Iterated != nil
}

// EnsureSummary builds the summary if it has not been built yet.
func (r *RankReport) EnsureSummary() *RankSummary {
	if r.Summary == nil {
		r.Summary = NewRankSummary(r)
	}
	return r.Summary
}
