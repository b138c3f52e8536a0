package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pagerank/internal/model"
)

// DefaultConcurrency is the number of corpora ranked at once when
// WithConcurrency is not given.
const DefaultConcurrency = 4

// BatchProcessor handles concurrent ranking of multiple corpora.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because it keeps the Pipeline focused on a
// single corpus and lets each corpus get its own configuration.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each corpus.
	// The directory is passed so per-corpus overrides can be applied.
	pipelineFactory func(corpusDir string) *Pipeline

	// concurrency is the maximum number of corpora ranked concurrently.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each corpus to create a fresh
// pipeline instance, so pipeline state never leaks between corpora.
func NewBatchProcessor(pipelineFactory func(corpusDir string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch ranks multiple corpora concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
//
// Reports are returned in the order of corpusDirs, including reports of
// corpora that failed. A slot stays nil only when the batch was cancelled
// before that corpus started. The error is non-nil only on cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, corpusDirs []string) ([]*model.RankReport, error) {
	results := make([]*model.RankReport, len(corpusDirs))
	err := bp.ProcessBatchWithCallback(ctx, corpusDirs, func(report *model.RankReport, index int) {
		// Each goroutine writes a distinct index.
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback ranks multiple corpora and calls a callback
// for each completed run. This is useful for streaming results.
//
// The callback receives the report and the index of the corpus in the
// original slice. The callback is called from the goroutine that completed
// the run, so it should be thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	corpusDirs []string,
	callback func(report *model.RankReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_corpora", len(corpusDirs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, dir := range corpusDirs {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("ranking corpus",
				"corpus", dir,
				"index", i+1,
				"total", len(corpusDirs),
			)

			report := model.NewRankReport(dir)
			pipeline := bp.pipelineFactory(dir)
			if err := pipeline.Execute(ctx, report); err != nil {
				// Don't return the error to errgroup; the other corpora
				// keep running and the error is recorded in the report.
				bp.logger.Warn("ranking failed",
					"corpus", dir,
					"error", err,
				)
			} else {
				bp.logger.Info("ranking completed",
					"corpus", dir,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_corpora", len(corpusDirs),
		"elapsed", time.Since(startTime),
	)

	return err
}
