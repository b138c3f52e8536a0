package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/pagerank/internal/model"
)

// Step is one stage of ranking a corpus. Each step reads and extends the
// report left by the steps before it.
//
// Design decision: Steps are values rather than plain functions so they can
// carry their own parameters (damping, samples, patterns), and Name gives
// logs and the report's PerformedSteps a stable label.
type Step interface {
	// Do runs the step against report. A returned error marks the step
	// as failed; the pipeline records it on the report.
	Do(ctx context.Context, report *model.RankReport) error

	// Name identifies the step in logs and in the report.
	Name() string
}

// Halting is implemented by steps that later steps cannot run without.
// A failed halting step ends the run even when WithContinueOnError is set.
type Halting interface {
	Halts() bool
}

// ResultAttrs is implemented by steps that add their own fields to the
// "step completed" log record, such as the top page of an estimate.
type ResultAttrs interface {
	ResultAttrs(report *model.RankReport) []any
}

// Pipeline runs an ordered list of steps against one report.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a step fails,
// unless that step halts the run (see Halting). The first failure stays
// on the report.
//
// With this set, iteration still produces ranks when sampling fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step. Steps run in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order against report.
//
// Cancellation is checked between steps and marks the report TimedOut.
// Long running steps such as parallel sampling watch ctx themselves.
//
// Execute returns the error that stopped the run. When the pipeline
// continues on error and no halting step failed, it returns nil and the
// failure is only recorded in report.Error.
func (p *Pipeline) Execute(ctx context.Context, report *model.RankReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"corpus", report.CorpusDir,
				"reason", err,
			)
			report.TimedOut = true
			return err
		}

		start := time.Now()
		err := step.Do(ctx, report)
		elapsed := time.Since(start)

		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"corpus", report.CorpusDir,
				"elapsed", elapsed,
				"error", err,
			)
			p.recordFailure(report, err)

			if !p.continueOnError || halts(step) {
				return err
			}
			continue
		}

		attrs := []any{"step", step.Name(), "corpus", report.CorpusDir, "elapsed", elapsed}
		if ra, ok := step.(ResultAttrs); ok {
			attrs = append(attrs, ra.ResultAttrs(report)...)
		}
		p.logger.Info("step completed", attrs...)

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// recordFailure stores err on the report unless an earlier step already failed.
func (p *Pipeline) recordFailure(report *model.RankReport, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.TimedOut = true
	}
	if report.Error != nil {
		return
	}
	report.Error = err
	report.ErrorMessage = err.Error()
}

func halts(step Step) bool {
	h, ok := step.(Halting)
	return ok && h.Halts()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
