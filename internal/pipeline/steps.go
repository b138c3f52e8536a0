package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nao1215/pagerank/internal/config"
	"github.com/nao1215/pagerank/internal/crawler"
	"github.com/nao1215/pagerank/internal/model"
	"github.com/nao1215/pagerank/internal/pagerank"
)

// ErrCorpusNotLoaded is returned by estimator steps that run before LoadStep.
var ErrCorpusNotLoaded = errors.New("corpus not loaded")

// LoadStep reads the corpus directory into a link graph.
// It must run before any estimator step.
type LoadStep struct {
	// ignorePatterns are file name patterns to skip.
	ignorePatterns []string

	// followPatterns are file name patterns to load.
	followPatterns []string

	// maxPages limits the number of pages loaded. Zero means unlimited.
	maxPages int

	// maxFileSize limits the bytes parsed per file.
	maxFileSize int64

	// logger for structured logging.
	logger *slog.Logger

	// stats describes the most recent load.
	stats crawler.LoadStats
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithLoadIgnorePatterns sets file name patterns to skip.
func WithLoadIgnorePatterns(patterns []string) LoadStepOption {
	return func(s *LoadStep) {
		s.ignorePatterns = patterns
	}
}

// WithLoadFollowPatterns sets file name patterns to load.
func WithLoadFollowPatterns(patterns []string) LoadStepOption {
	return func(s *LoadStep) {
		s.followPatterns = patterns
	}
}

// WithLoadMaxPages sets the maximum number of pages to load.
func WithLoadMaxPages(maxPages int) LoadStepOption {
	return func(s *LoadStep) {
		s.maxPages = maxPages
	}
}

// WithLoadMaxFileSize sets the maximum number of bytes parsed per file.
func WithLoadMaxFileSize(size int64) LoadStepOption {
	return func(s *LoadStep) {
		s.maxFileSize = size
	}
}

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a new corpus loading step.
func NewLoadStep(opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{
		maxFileSize: config.DefaultMaxFileSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(ctx context.Context, report *model.RankReport) error {
	loader := crawler.NewLoader(
		crawler.WithIgnorePatterns(s.ignorePatterns),
		crawler.WithFollowPatterns(s.followPatterns),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithMaxFileSize(s.maxFileSize),
		crawler.WithLogger(s.logger),
	)

	corpus, err := loader.Load(ctx, report.CorpusDir)
	if err != nil {
		return err
	}
	report.SetCorpus(corpus)
	s.stats = loader.Stats()

	return nil
}

// Halts reports that no later step can run without a corpus.
func (s *LoadStep) Halts() bool {
	return true
}

// ResultAttrs describes the loaded corpus.
func (s *LoadStep) ResultAttrs(report *model.RankReport) []any {
	return []any{
		"pages", s.stats.PagesLoaded,
		"links", report.LinkCount,
		"sinks", report.SinkCount,
		"skipped_files", s.stats.FilesSkipped,
		"dropped_links", s.stats.LinksDropped,
		"external_links", s.stats.ExternalLinks,
	}
}

// SampleStep runs the Monte Carlo estimator on the loaded corpus.
//
// With one walker it runs the classic single walk; with more it splits the
// samples across concurrent walks. Either way the seed is recorded in the
// report, so a run without a fixed seed can still be reproduced later.
type SampleStep struct {
	damping   float64
	samples   int
	walkers   int
	seed      uint64
	fixedSeed bool
}

// SampleStepOption configures a SampleStep.
type SampleStepOption func(*SampleStep)

// WithSampleDamping sets the damping factor.
func WithSampleDamping(damping float64) SampleStepOption {
	return func(s *SampleStep) {
		s.damping = damping
	}
}

// WithSampleCount sets the number of random surfer steps.
func WithSampleCount(n int) SampleStepOption {
	return func(s *SampleStep) {
		s.samples = n
	}
}

// WithSampleWalkers sets the number of independent walks.
func WithSampleWalkers(walkers int) SampleStepOption {
	return func(s *SampleStep) {
		s.walkers = walkers
	}
}

// WithSampleSeed fixes the random seed.
func WithSampleSeed(seed uint64) SampleStepOption {
	return func(s *SampleStep) {
		s.seed = seed
		s.fixedSeed = true
	}
}

// NewSampleStep creates a new sampling step with default parameters.
func NewSampleStep(opts ...SampleStepOption) *SampleStep {
	s := &SampleStep{
		damping: config.DefaultDamping,
		samples: config.DefaultSamples,
		walkers: config.DefaultWalkers,
	}

	for _, opt := range opts {
		opt(s)
	}

	if !s.fixedSeed {
		s.seed = rand.Uint64() //nolint:gosec // Statistical sampling, not security
	}

	return s
}

// Name returns the step name.
func (s *SampleStep) Name() string {
	return "sample"
}

// Do executes the sample step.
func (s *SampleStep) Do(ctx context.Context, report *model.RankReport) error {
	if report.Corpus == nil {
		return fmt.Errorf("%s: %w", s.Name(), ErrCorpusNotLoaded)
	}

	report.Damping = s.damping
	report.Samples = s.samples
	report.Walkers = s.walkers
	report.Seed = s.seed

	start := time.Now()

	var (
		dist model.Distribution
		err  error
	)
	if s.walkers > 1 {
		dist, err = pagerank.SampleParallel(ctx, report.Corpus, s.damping, s.samples, s.walkers,
			pagerank.WithSeed(s.seed))
	} else {
		dist, err = pagerank.Sample(report.Corpus, s.damping, s.samples,
			pagerank.WithSeed(s.seed))
	}
	if err != nil {
		return fmt.Errorf("sampling failed: %w", err)
	}

	report.Sampled = dist
	report.SampleDuration = time.Since(start)

	return nil
}

// ResultAttrs describes the sampled estimate.
func (s *SampleStep) ResultAttrs(report *model.RankReport) []any {
	return []any{"samples", s.samples, "walkers", s.walkers, "seed", s.seed, "top", report.Sampled.Top()}
}

// IterateStep runs the fixed point estimator on the loaded corpus.
type IterateStep struct {
	damping   float64
	tolerance float64
	logger    *slog.Logger
}

// IterateStepOption configures an IterateStep.
type IterateStepOption func(*IterateStep)

// WithIterateDamping sets the damping factor.
func WithIterateDamping(damping float64) IterateStepOption {
	return func(s *IterateStep) {
		s.damping = damping
	}
}

// WithIterateTolerance sets the convergence threshold.
func WithIterateTolerance(tolerance float64) IterateStepOption {
	return func(s *IterateStep) {
		s.tolerance = tolerance
	}
}

// WithIterateLogger sets a custom logger for the iterate step.
func WithIterateLogger(logger *slog.Logger) IterateStepOption {
	return func(s *IterateStep) {
		s.logger = logger
	}
}

// NewIterateStep creates a new iteration step with default parameters.
func NewIterateStep(opts ...IterateStepOption) *IterateStep {
	s := &IterateStep{
		damping:   config.DefaultDamping,
		tolerance: config.DefaultTolerance,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *IterateStep) Name() string {
	return "iterate"
}

// Do executes the iterate step.
func (s *IterateStep) Do(_ context.Context, report *model.RankReport) error {
	if report.Corpus == nil {
		return fmt.Errorf("%s: %w", s.Name(), ErrCorpusNotLoaded)
	}

	report.Damping = s.damping
	report.Tolerance = s.tolerance

	start := time.Now()
	rounds := 0
	dist, err := pagerank.Iterate(report.Corpus, s.damping,
		pagerank.WithTolerance(s.tolerance),
		pagerank.WithObserver(func(round int, maxDelta float64) {
			rounds = round
			s.logger.Debug("iteration round",
				"corpus", report.CorpusDir,
				"round", round,
				"max_delta", maxDelta,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("iteration failed: %w", err)
	}

	report.Iterated = dist
	report.Iterations = rounds
	report.IterateDuration = time.Since(start)

	return nil
}

// ResultAttrs describes the converged estimate.
func (s *IterateStep) ResultAttrs(report *model.RankReport) []any {
	return []any{"rounds", report.Iterations, "top", report.Iterated.Top()}
}

// SummaryStep builds the side-by-side summary of both estimates.
// It is a no-op when neither estimator produced a result.
type SummaryStep struct{}

// NewSummaryStep creates a new summary step.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, report *model.RankReport) error {
	if report.Sampled == nil && report.Iterated == nil {
		return nil
	}
	report.Summary = model.NewRankSummary(report)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Damping is the link-following probability.
	Damping float64

	// Samples is the number of random surfer steps.
	Samples int

	// Tolerance is the convergence threshold of the iteration.
	Tolerance float64

	// Walkers is the number of independent random walks.
	Walkers int

	// Seed fixes the sampler seed when FixedSeed is true.
	Seed      uint64
	FixedSeed bool

	// IgnorePatterns are file name patterns to skip when loading.
	IgnorePatterns []string

	// FollowPatterns are file name patterns to load.
	FollowPatterns []string

	// MaxPages limits the pages loaded per corpus. Zero means unlimited.
	MaxPages int

	// MaxFileSize limits the bytes parsed per file.
	MaxFileSize int64
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineDamping sets the damping factor of both estimators.
func WithPipelineDamping(damping float64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Damping = damping
	}
}

// WithPipelineSamples sets the number of random surfer steps.
func WithPipelineSamples(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Samples = n
	}
}

// WithPipelineTolerance sets the convergence threshold.
func WithPipelineTolerance(tolerance float64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Tolerance = tolerance
	}
}

// WithPipelineWalkers sets the number of independent random walks.
func WithPipelineWalkers(walkers int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Walkers = walkers
	}
}

// WithPipelineSeed fixes the sampler seed.
func WithPipelineSeed(seed uint64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Seed = seed
		c.FixedSeed = true
	}
}

// WithPipelineIgnorePatterns sets file name patterns to skip.
func WithPipelineIgnorePatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.IgnorePatterns = patterns
	}
}

// WithPipelineFollowPatterns sets file name patterns to load.
func WithPipelineFollowPatterns(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.FollowPatterns = patterns
	}
}

// WithPipelineMaxPages sets the maximum number of pages loaded.
func WithPipelineMaxPages(maxPages int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxPages = maxPages
	}
}

// WithPipelineMaxFileSize sets the maximum number of bytes parsed per file.
func WithPipelineMaxFileSize(size int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxFileSize = size
	}
}

// OptionsFromConfig translates a per-corpus configuration into pipeline
// options. The patterns come from the config file entry for the corpus.
func OptionsFromConfig(cfg *config.Config, corpusDir string) []DefaultPipelineOption {
	opts := []DefaultPipelineOption{
		WithPipelineDamping(cfg.Damping),
		WithPipelineSamples(cfg.Samples),
		WithPipelineTolerance(cfg.Tolerance),
		WithPipelineWalkers(cfg.Walkers),
		WithPipelineMaxPages(cfg.MaxPages),
		WithPipelineMaxFileSize(cfg.MaxFileSize),
	}
	if cfg.FixedSeed {
		opts = append(opts, WithPipelineSeed(cfg.Seed))
	}
	if cfg.CorpusConfigs != nil {
		cc := cfg.CorpusConfigs.GetCorpusConfig(corpusDir)
		if len(cc.IgnorePatterns) > 0 {
			opts = append(opts, WithPipelineIgnorePatterns(cc.IgnorePatterns))
		}
		if len(cc.FollowPatterns) > 0 {
			opts = append(opts, WithPipelineFollowPatterns(cc.FollowPatterns))
		}
	}
	return opts
}

// DefaultPipeline creates a pipeline with all default steps configured:
// load, sample, iterate and summary.
//
// The first parameter accepts pipeline options (WithLogger, etc).
// The variadic parameter accepts pipeline config options (WithPipelineDamping, etc).
func DefaultPipeline(pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Damping:     config.DefaultDamping,
		Samples:     config.DefaultSamples,
		Tolerance:   config.DefaultTolerance,
		Walkers:     config.DefaultWalkers,
		MaxFileSize: config.DefaultMaxFileSize,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	sampleOpts := []SampleStepOption{
		WithSampleDamping(cfg.Damping),
		WithSampleCount(cfg.Samples),
		WithSampleWalkers(cfg.Walkers),
	}
	if cfg.FixedSeed {
		sampleOpts = append(sampleOpts, WithSampleSeed(cfg.Seed))
	}

	p.AddSteps(
		NewLoadStep(
			WithLoadIgnorePatterns(cfg.IgnorePatterns),
			WithLoadFollowPatterns(cfg.FollowPatterns),
			WithLoadMaxPages(cfg.MaxPages),
			WithLoadMaxFileSize(cfg.MaxFileSize),
			WithLoadLogger(p.logger),
		),
		NewSampleStep(sampleOpts...),
		NewIterateStep(
			WithIterateDamping(cfg.Damping),
			WithIterateTolerance(cfg.Tolerance),
			WithIterateLogger(p.logger),
		),
		NewSummaryStep(),
	)

	return p
}
