// Package pipeline provides a framework for executing rank steps in sequence.
//
// A corpus is processed through three stages: loading the HTML files into a
// link graph, estimating PageRank by random sampling, and estimating it again
// by fixed point iteration. Each stage is implemented as a Step that receives
// the current report and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running runs
//
// The pipeline supports both single corpora and batch processing with
// concurrency control using errgroup.
package pipeline
