package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/pagerank/internal/model"
)

// DefaultMaxFileSize limits how much of each HTML file is parsed.
const DefaultMaxFileSize = 5 * 1024 * 1024 // 5MB

// Loader reads a directory of HTML files and builds the corpus link graph.
//
// Only files directly inside the directory are considered. Every accepted
// file becomes a page named after its file name; its anchors become
// outbound links. Links to files outside the corpus and links from a page
// to itself are dropped.
type Loader struct {
	// extensions lists accepted file extensions with the dot.
	// Matching is case-sensitive, so ".html" does not accept "A.HTML".
	extensions []string

	// ignorePatterns are file name patterns to skip.
	// Patterns use glob syntax (e.g., "draft-*", "*.bak.html").
	ignorePatterns []string

	// followPatterns restrict loading to file names matching at least one
	// pattern. Empty means all files are allowed (subject to ignorePatterns).
	followPatterns []string

	// maxPages limits the number of pages loaded. Zero means unlimited.
	maxPages int

	// maxFileSize limits the bytes read from each file.
	maxFileSize int64

	// logger is used for structured logging.
	logger *slog.Logger

	// parser extracts links from each file.
	parser *Parser

	// stats describes the most recent Load call.
	stats LoadStats
}

// LoadStats contains statistics about a corpus load.
type LoadStats struct {
	// PagesLoaded is the number of files that became pages.
	PagesLoaded int

	// FilesSkipped is the number of directory entries that were ignored.
	FilesSkipped int

	// LinksFound is the number of distinct in-corpus hrefs before filtering.
	LinksFound int

	// LinksDropped is the number of hrefs that did not name a corpus page,
	// including self-links.
	LinksDropped int

	// ExternalLinks is the number of hrefs pointing outside the corpus.
	ExternalLinks int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtensions sets the accepted file extensions (e.g., ".html", ".htm").
// Each extension must match exactly, including case.
func WithExtensions(exts ...string) LoaderOption {
	return func(l *Loader) {
		l.extensions = exts
	}
}

// WithIgnorePatterns sets file name patterns to skip.
func WithIgnorePatterns(patterns []string) LoaderOption {
	return func(l *Loader) {
		l.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets file name patterns to load.
// If set, only file names matching at least one pattern are loaded.
func WithFollowPatterns(patterns []string) LoaderOption {
	return func(l *Loader) {
		l.followPatterns = patterns
	}
}

// WithMaxPages sets the maximum number of pages to load.
func WithMaxPages(maxPages int) LoaderOption {
	return func(l *Loader) {
		l.maxPages = maxPages
	}
}

// WithMaxFileSize sets the maximum number of bytes parsed per file.
func WithMaxFileSize(size int64) LoaderOption {
	return func(l *Loader) {
		if size > 0 {
			l.maxFileSize = size
		}
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a new Loader accepting .html files by default.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extensions:  []string{".html"},
		maxFileSize: DefaultMaxFileSize,
		parser:      NewParser(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// Load reads dir and returns its corpus.
// It fails when dir cannot be read or contains no acceptable files.
func (l *Loader) Load(ctx context.Context, dir string) (*model.Corpus, error) {
	l.stats = LoadStats{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	raw := make(map[string][]string)
	files := make(map[string]string) // page -> file name that produced it
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name := entry.Name()
		if entry.IsDir() || !l.shouldLoad(name) {
			l.stats.FilesSkipped++
			continue
		}
		if l.maxPages > 0 && len(raw) >= l.maxPages {
			l.logger.Warn("page limit reached, skipping remaining files",
				"dir", dir,
				"maxPages", l.maxPages,
			)
			l.stats.FilesSkipped++
			continue
		}

		page := NormalizeName(name)
		if first, dup := files[page]; dup {
			// Directory entries are sorted, so the first file always wins.
			l.logger.Warn("file name collides with an existing page, skipping",
				"dir", dir,
				"file", name,
				"page", page,
				"loadedFrom", first,
			)
			l.stats.FilesSkipped++
			continue
		}

		result, err := l.parseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		files[page] = name
		raw[page] = result.Links
		l.stats.LinksFound += len(result.Links)
		l.stats.ExternalLinks += len(result.ExternalLinks)

		l.logger.Debug("page loaded",
			"page", page,
			"links", len(result.Links),
			"external", len(result.ExternalLinks),
		)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("no pages found in %s", dir)
	}

	corpus := model.NewCorpus(raw)
	l.stats.PagesLoaded = corpus.Len()
	l.stats.LinksDropped = l.stats.LinksFound - corpus.LinkCount()

	return corpus, nil
}

// Stats returns statistics about the most recent Load call.
func (l *Loader) Stats() LoadStats {
	return l.stats
}

// parseFile extracts links from one HTML file.
func (l *Loader) parseFile(path string) (*ParseResult, error) {
	f, err := os.Open(path) //nolint:gosec // Corpus path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result, err := l.parser.Parse(io.LimitReader(f, l.maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return result, nil
}

// shouldLoad checks a file name against extensions and patterns.
//
// Logic:
//  1. If the extension is not accepted, skip it (return false)
//  2. If the name matches any ignorePattern, skip it (return false)
//  3. If followPatterns is set and the name matches none, skip it (return false)
//  4. Otherwise, load it (return true)
func (l *Loader) shouldLoad(name string) bool {
	ext := filepath.Ext(name)
	accepted := false
	for _, e := range l.extensions {
		if ext == e {
			accepted = true
			break
		}
	}
	if !accepted {
		return false
	}

	for _, pattern := range l.ignorePatterns {
		if matchPattern(pattern, name) {
			return false
		}
	}

	if len(l.followPatterns) > 0 {
		for _, pattern := range l.followPatterns {
			if matchPattern(pattern, name) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a file name matches a glob pattern.
// Patterns can use * and ? as in filepath.Match. Invalid patterns never match.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
