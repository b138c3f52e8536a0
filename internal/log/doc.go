// Package log provides logging helpers built on top of the standard slog
// package.
//
// This package extends slog to provide:
//   - Rewriting of home directory paths to "~" in messages and attributes
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("page loaded", "path", "/home/alice/corpus0/1.html")
//	// path=~/corpus0/1.html
//
//	slog.SetDefault(logger)
package log
