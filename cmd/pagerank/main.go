// Package main provides the entry point for the pagerank CLI.
//
// pagerank estimates the importance of the pages in a directory of HTML
// files with two independent estimators: a random-surfer sampler and a
// fixed point iteration.
//
// Usage:
//
//	pagerank rank <corpus-dir>
//	pagerank history <corpus-dir>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
