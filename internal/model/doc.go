// Package model defines the core data structures used throughout pagerank.
//
// This package contains the following main types:
//   - Corpus: The immutable link graph of a set of pages
//   - Distribution: A page-to-weight mapping used for probabilities and ranks
//   - RankReport: The result of ranking one corpus with both estimators
//   - RankSummary: A side-by-side view of both estimates
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, pagerank, report, database) need to
// use these types, so centralizing them prevents import cycles.
//
// The report types are designed to be serializable to JSON for report output
// and database storage.
package model
