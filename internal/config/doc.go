// Package config provides configuration structures and utilities for pagerank.
// It defines the estimator parameters, the per-corpus overrides read from the
// .pagerank file, and report output preferences.
package config
