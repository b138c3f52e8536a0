// Package crawler builds a corpus link graph from a directory of HTML files.
//
// # Components
//
//   - Loader: Reads the directory, filters file names and builds the corpus
//   - Parser: HTML parser that extracts <a href> links and the page title
//
// # Link Resolution
//
// A page is named after its file name. An href names another page when it
// is a relative path; fragments, queries and leading "./" or "/" are
// ignored. Absolute URLs are counted as external links and never enter the
// corpus. Names are compared in Unicode NFC form.
//
// # Usage
//
//	loader := crawler.NewLoader(crawler.WithIgnorePatterns([]string{"draft-*"}))
//	corpus, err := loader.Load(ctx, "corpus0")
//
// The crawler never touches the network; it only reads local files.
package crawler
