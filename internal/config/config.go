package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultDamping is the probability that the random surfer follows a link
	// instead of jumping to a random page. 0.85 is the value from the
	// original PageRank paper and the one most implementations use.
	DefaultDamping = 0.85

	// DefaultSamples is the number of random-surfer steps for the sampling
	// estimator. 10,000 steps put most estimates within a few thousandths
	// of the iterative result on small corpora.
	DefaultSamples = 10000

	// DefaultTolerance is the largest per-page change between two rounds at
	// which the iterative estimator considers itself converged.
	DefaultTolerance = 0.001

	// DefaultWalkers of 1 runs a single random walk, which matches the
	// classic sampling estimator. Higher values split the steps across
	// independent walks running concurrently.
	DefaultWalkers = 1

	// DefaultBatchSize of 4 concurrent corpora keeps CPU use predictable on
	// laptops while still overlapping file I/O with computation.
	DefaultBatchSize = 4

	// DefaultMaxFileSize limits how much of each HTML file is parsed.
	DefaultMaxFileSize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "pagerank"
)

// Config holds all configuration options for pagerank.
// This struct is populated from CLI flags and the .pagerank file, and passed
// through the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., EstimatorConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Damping is the link-following probability, strictly between 0 and 1.
	Damping float64

	// Samples is the number of steps taken by the sampling estimator.
	Samples int

	// Tolerance is the convergence threshold of the iterative estimator.
	Tolerance float64

	// Seed seeds the sampling estimator when FixedSeed is true.
	Seed uint64

	// FixedSeed makes sampling reproducible by using Seed.
	// When false, every run draws a fresh random seed.
	FixedSeed bool

	// Walkers is the number of independent random walks that share the
	// sample budget. 1 means a single sequential walk.
	Walkers int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of corpora ranked concurrently.
	BatchSize int

	// MaxPages limits the number of pages loaded per corpus.
	// A value of 0 means unlimited.
	MaxPages int

	// MaxFileSize is the maximum number of bytes parsed per HTML file.
	// Set to 0 to use the default (5MB).
	MaxFileSize int64

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .pagerank in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// CorpusConfigs holds corpus-specific configurations loaded from the
	// config file. This is populated by LoadConfigFile.
	CorpusConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output with tables and charts.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// SummaryOnly writes only the side-by-side rank table of each run,
	// without the header and parameter sections.
	SummaryOnly bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// Corpora is the list of corpus directories to rank.
	Corpora []string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/pagerank on Linux).
	DBDir string

	// SaveToDB indicates whether to save rank runs to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., damping, samples).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Damping:     DefaultDamping,
		Samples:     DefaultSamples,
		Tolerance:   DefaultTolerance,
		Walkers:     DefaultWalkers,
		BatchSize:   DefaultBatchSize,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// XDGDataDir returns the XDG data directory for pagerank.
// On Linux: ~/.local/share/pagerank
// On macOS: ~/Library/Application Support/pagerank
// On Windows: %LOCALAPPDATA%\pagerank
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagerank.
// On Linux: ~/.config/pagerank
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Corpora) == 0 {
		return ErrNoCorpus
	}

	// The negated form also rejects NaN
	if !(c.Damping > 0 && c.Damping < 1) {
		return ErrInvalidDamping
	}

	if c.Samples <= 0 {
		return ErrInvalidSamples
	}

	if !(c.Tolerance > 0) {
		return ErrInvalidTolerance
	}

	if c.Walkers <= 0 {
		return ErrInvalidWalkers
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxFileSize < 0 {
		return ErrInvalidMaxFileSize
	}

	return nil
}

// ApplyDefaults copies the estimator parameters from the defaults section of
// the config file into c. Parameters for which explicit(name) reports true
// were set on the command line and are left alone; name is the flag name
// ("damping", "samples", "seed", "walkers").
func (c *Config) ApplyDefaults(explicit func(name string) bool) {
	if c.CorpusConfigs == nil {
		return
	}
	d := c.CorpusConfigs.Defaults
	if d.Damping != 0 && !explicit("damping") {
		c.Damping = d.Damping
	}
	if d.Samples != 0 && !explicit("samples") {
		c.Samples = d.Samples
	}
	if d.Walkers != 0 && !explicit("walkers") {
		c.Walkers = d.Walkers
	}
	if d.Seed != nil && !explicit("seed") {
		c.Seed = *d.Seed
		c.FixedSeed = true
	}
}

// ForCorpus returns a copy of the configuration for ranking dir.
// The corpus entry of the config file, when present, overrides the global
// estimator parameters because it is the more specific setting.
func (c *Config) ForCorpus(dir string) *Config {
	merged := *c
	merged.Corpora = []string{dir}
	if c.CorpusConfigs == nil {
		return &merged
	}

	cc, ok := c.CorpusConfigs.Lookup(dir)
	if !ok {
		return &merged
	}
	if cc.Damping != 0 {
		merged.Damping = cc.Damping
	}
	if cc.Samples != 0 {
		merged.Samples = cc.Samples
	}
	if cc.Walkers != 0 {
		merged.Walkers = cc.Walkers
	}
	if cc.Seed != nil {
		merged.Seed = *cc.Seed
		merged.FixedSeed = true
	}
	return &merged
}
