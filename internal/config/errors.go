package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoCorpus is returned when no corpus directory is specified.
	ErrNoCorpus = errors.New("no corpus specified: provide at least one corpus directory")

	// ErrInvalidDamping is returned when the damping factor is outside (0, 1).
	// A damping of 0 ignores links entirely and 1 makes sinks absorbing.
	ErrInvalidDamping = errors.New("invalid damping: must be greater than 0 and less than 1")

	// ErrInvalidSamples is returned when the sample count is not positive.
	ErrInvalidSamples = errors.New("invalid samples: must be positive")

	// ErrInvalidTolerance is returned when the convergence tolerance is not positive.
	// A zero tolerance may never be reached because of floating point rounding.
	ErrInvalidTolerance = errors.New("invalid tolerance: must be positive")

	// ErrInvalidWalkers is returned when the number of walkers is not positive.
	ErrInvalidWalkers = errors.New("invalid walkers: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no corpus is ever ranked.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxFileSize is returned when the max file size is negative.
	// Use 0 to apply the default limit.
	ErrInvalidMaxFileSize = errors.New("invalid max file size: must be non-negative")
)
