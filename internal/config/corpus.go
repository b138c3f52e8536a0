package config

import "path/filepath"

// CorpusConfig holds corpus-specific configuration for a single directory.
// This allows customizing estimator parameters and file selection per corpus.
type CorpusConfig struct {
	// Damping overrides the global damping factor. Zero means unset.
	Damping float64 `yaml:"damping,omitempty"`

	// Samples overrides the global sample count. Zero means unset.
	Samples int `yaml:"samples,omitempty"`

	// Seed fixes the sampling seed for this corpus. Nil means unset.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Walkers overrides the global number of random walks. Zero means unset.
	Walkers int `yaml:"walkers,omitempty"`

	// IgnorePatterns are file name patterns to skip when loading.
	// Patterns use glob syntax (e.g., "draft-*").
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are file name patterns to load.
	// If specified, only files matching these patterns become pages.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .pagerank configuration file.
type File struct {
	// Corpora maps corpus directories to their specific configurations.
	// Keys may be the directory as passed on the command line or its base name.
	Corpora map[string]CorpusConfig `yaml:"corpora,omitempty"`

	// Defaults contains configuration applied to all corpora
	// unless overridden in the corpus-specific configuration.
	Defaults CorpusConfig `yaml:"defaults,omitempty"`
}

// Lookup returns the corpus-specific entry for dir without defaults.
// An exact key match wins over a match on the directory's base name.
func (cf *File) Lookup(dir string) (CorpusConfig, bool) {
	if cc, ok := cf.Corpora[dir]; ok {
		return cc, true
	}
	if cc, ok := cf.Corpora[filepath.Clean(dir)]; ok {
		return cc, true
	}
	cc, ok := cf.Corpora[filepath.Base(dir)]
	return cc, ok
}

// GetCorpusConfig returns the configuration for a specific corpus directory.
// It merges the corpus-specific configuration with defaults.
func (cf *File) GetCorpusConfig(dir string) CorpusConfig {
	// Start with defaults
	result := cf.Defaults

	corpusConfig, ok := cf.Lookup(dir)
	if !ok {
		return result
	}

	if corpusConfig.Damping != 0 {
		result.Damping = corpusConfig.Damping
	}
	if corpusConfig.Samples != 0 {
		result.Samples = corpusConfig.Samples
	}
	if corpusConfig.Seed != nil {
		result.Seed = corpusConfig.Seed
	}
	if corpusConfig.Walkers != 0 {
		result.Walkers = corpusConfig.Walkers
	}
	if len(corpusConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = corpusConfig.IgnorePatterns
	}
	if len(corpusConfig.FollowPatterns) > 0 {
		result.FollowPatterns = corpusConfig.FollowPatterns
	}

	return result
}
