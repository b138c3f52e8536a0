package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagerank/internal/config"
	"github.com/nao1215/pagerank/internal/database"
	pagelog "github.com/nao1215/pagerank/internal/log"
	"github.com/nao1215/pagerank/internal/model"
	"github.com/nao1215/pagerank/internal/pipeline"
	"github.com/nao1215/pagerank/internal/report"
)

// NewRankCmd creates the rank command.
func NewRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank [corpus-dir...]",
		Short: "Estimate PageRank for one or more corpora",
		Long: `Rank loads every HTML file of a corpus directory, builds the link graph and
estimates the PageRank of each page twice:

- Sampling: a random surfer takes n steps and each page is ranked by the
  share of steps spent on it.
- Iteration: ranks are updated until no page changes by more than the
  tolerance.

Examples:
  # Rank a single corpus
  pagerank rank ./site

  # Rank several corpora, two at a time
  pagerank rank -b 2 ./site ./docs ./blog

  # Reproducible sampling with four concurrent walks
  pagerank rank --seed 42 --walkers 4 ./site

  # Output a Markdown report to a file
  pagerank rank -m -o report.md ./site

  # Rank without storing the run in the history database
  pagerank rank --no-db ./site

Configuration file (.pagerank) example:
  defaults:
    damping: 0.85
    samples: 10000
  corpora:
    site:
      seed: 7
      ignorePatterns:
        - "draft-*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runRankCmd,
	}

	// Estimator flags
	cmd.Flags().Float64P("damping", "d", config.DefaultDamping,
		"Probability of following a link instead of jumping to a random page")
	cmd.Flags().IntP("samples", "n", config.DefaultSamples,
		"Number of random-surfer steps for the sampling estimator")
	cmd.Flags().Float64("tolerance", config.DefaultTolerance,
		"Largest per-page change at which iteration stops")
	cmd.Flags().Uint64P("seed", "s", 0,
		"Random seed for reproducible sampling (default: random)")
	cmd.Flags().IntP("walkers", "w", config.DefaultWalkers,
		"Number of concurrent random walks sharing the samples")

	// Loader flags
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages loaded per corpus (0 = unlimited)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of corpora ranked concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pagerank in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("summary", false,
		"Output only the side-by-side rank table")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the history database")

	return cmd
}

// runRankCmd executes the rank command.
func runRankCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := pagelog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	if jsonLogs, _ := cmd.Flags().GetBool("log-json"); jsonLogs { //nolint:errcheck // persistent flag always exists
		logger = pagelog.NewJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runRank(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getDBDir returns the database directory from the --db-dir flag or the
// XDG data directory.
func getDBDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil || dir == "" {
		return config.XDGDataDir()
	}
	return dir
}

// buildConfig creates a Config from cobra command flags and the config file.
// Flags given on the command line win over the defaults section of the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Damping, err = flags.GetFloat64("damping"); err != nil {
		return nil, err
	}
	if cfg.Samples, err = flags.GetInt("samples"); err != nil {
		return nil, err
	}
	if cfg.Tolerance, err = flags.GetFloat64("tolerance"); err != nil {
		return nil, err
	}
	if cfg.Seed, err = flags.GetUint64("seed"); err != nil {
		return nil, err
	}
	cfg.FixedSeed = flags.Changed("seed")
	if cfg.Walkers, err = flags.GetInt("walkers"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly given config file must exist; the implicit lookup
	// silently falls back to an empty configuration.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.CorpusConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.CorpusConfigs = &config.File{
			Corpora: make(map[string]config.CorpusConfig),
		}
	}
	cfg.ApplyDefaults(flags.Changed)

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.SummaryOnly, err = flags.GetBool("summary"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir = getDBDir(cmd)
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Corpora = args

	return cfg, nil
}

// ranker ranks the corpora of one command invocation and routes each
// finished report to the report writer and the history database.
type ranker struct {
	cfg    *config.Config
	logger *slog.Logger
	writer report.Writer
	db     *database.RankDB
	errOut io.Writer

	// keys maps the absolute corpus directory back to the argument the
	// user typed, which is what config file entries are keyed by.
	keys map[string]string

	// mu serializes output and database writes of concurrent runs.
	mu       sync.Mutex
	failures int
}

// runRank ranks every corpus of cfg.
func runRank(ctx context.Context, cfg *config.Config, out, errOut io.Writer, logger *slog.Logger) error {
	logger.Info("starting ranking",
		"corpora", cfg.Corpora,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	r := &ranker{
		cfg:    cfg,
		logger: logger,
		errOut: errOut,
		keys:   make(map[string]string, len(cfg.Corpora)),
	}

	dirs := make([]string, 0, len(cfg.Corpora))
	for _, arg := range cfg.Corpora {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid corpus directory %q: %w", arg, err)
		}
		r.keys[abs] = arg
		dirs = append(dirs, abs)
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		r.db = db
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()
	r.writer = newReportWriter(cfg, output)

	if len(dirs) > 1 && cfg.BatchSize > 1 {
		err = r.rankBatch(ctx, dirs)
	} else {
		err = r.rankSequential(ctx, dirs)
	}
	if err != nil {
		return err
	}

	if r.failures > 0 {
		return fmt.Errorf("ranking failed for %d of %d corpora", r.failures, len(dirs))
	}
	return nil
}

// rankSequential ranks corpora one at a time.
func (r *ranker) rankSequential(ctx context.Context, dirs []string) error {
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(r.errOut, "Ranking %s...\n", r.keys[dir])
		startTime := time.Now()

		rankReport := model.NewRankReport(dir)
		if err := r.newPipeline(dir).Execute(ctx, rankReport); err != nil {
			r.logger.Error("ranking failed", "corpus", dir, "error", err)
		} else {
			fmt.Fprintf(r.errOut, "Ranked in %s\n", time.Since(startTime).Round(time.Millisecond))
		}
		r.handleReport(ctx, rankReport)
	}
	return nil
}

// rankBatch ranks corpora concurrently using the batch processor.
func (r *ranker) rankBatch(ctx context.Context, dirs []string) error {
	fmt.Fprintf(r.errOut, "Ranking %d corpora (concurrency: %d)...\n", len(dirs), r.cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(r.newPipeline,
		pipeline.WithConcurrency(r.cfg.BatchSize),
		pipeline.WithBatchLogger(r.logger),
	)

	err := bp.ProcessBatchWithCallback(ctx, dirs, func(rankReport *model.RankReport, index int) {
		fmt.Fprintf(r.errOut, "[%d/%d] Ranked: %s\n", index+1, len(dirs), r.keys[rankReport.CorpusDir])
		r.handleReport(ctx, rankReport)
	})

	fmt.Fprintf(r.errOut, "Batch completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return err
}

// newPipeline creates the pipeline for one corpus with the corpus-specific
// configuration applied. The two estimators are independent, so a failed
// sampling run still lets iteration report ranks.
func (r *ranker) newPipeline(dir string) *pipeline.Pipeline {
	key, ok := r.keys[dir]
	if !ok {
		key = dir
	}
	perCorpus := r.cfg.ForCorpus(key)

	return pipeline.DefaultPipeline(
		[]pipeline.Option{
			pipeline.WithLogger(r.logger),
			pipeline.WithContinueOnError(true),
		},
		pipeline.OptionsFromConfig(perCorpus, key)...,
	)
}

// handleReport writes a finished report and saves completed runs.
// It is safe for concurrent use.
func (r *ranker) handleReport(ctx context.Context, rankReport *model.RankReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rankReport.Error != nil {
		r.failures++
		fmt.Fprintf(r.errOut, "Ranking error for %s: %v\n", r.keys[rankReport.CorpusDir], rankReport.Error)
	}

	var err error
	if r.cfg.SummaryOnly {
		_, err = r.writer.WriteSummary(rankReport.EnsureSummary())
	} else {
		_, err = r.writer.Write(rankReport)
	}
	if err != nil {
		r.logger.Error("report failed", "corpus", rankReport.CorpusDir, "error", err)
	}

	if err := saveRankReport(ctx, r.db, rankReport, r.logger); err != nil {
		r.logger.Error("failed to save rank report", "corpus", rankReport.CorpusDir, "error", err)
	}
}

// openOutput returns the report destination. When path is empty the
// report goes to stdout and the returned close function does nothing.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format requested in cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// saveRankReport saves the report to the database.
// If db is nil, this function is a no-op. Incomplete runs are not stored.
func saveRankReport(ctx context.Context, db *database.RankDB, rankReport *model.RankReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	if !rankReport.Completed() {
		logger.Debug("skipping database save of incomplete run", "corpus", rankReport.CorpusDir)
		return nil
	}

	id, err := db.SaveRankReport(ctx, rankReport)
	if err != nil {
		return fmt.Errorf("failed to save rank report: %w", err)
	}

	logger.Info("rank report saved to database", "corpus", rankReport.CorpusDir, "run", id)
	return nil
}
