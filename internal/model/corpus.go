package model

import (
	"encoding/hex"
	"slices"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Corpus is an immutable directed graph of pages and their outbound links.
//
// Every link target is itself a page of the corpus, and no page links to
// itself. A page may have no outbound links at all; such a page is a sink.
//
// Design decision: We keep pages and links in sorted slices rather than
// exposing the underlying maps because:
//  1. Callers cannot mutate the graph after construction
//  2. Iteration order is stable, which keeps floating point sums reproducible
//  3. Membership checks still go through a map for O(1) lookups
type Corpus struct {
	// pages holds every page label in ascending order.
	pages []string

	// links maps each page to its sorted, de-duplicated outbound targets.
	links map[string][]string

	// linkSets mirrors links for constant time membership checks.
	linkSets map[string]map[string]struct{}
}

// NewCorpus builds a Corpus from a page-to-targets mapping.
//
// Every key becomes a page. Targets that are not keys of the mapping
// (links leaving the corpus) and targets equal to their source page
// (self-links) are dropped. Duplicate targets are collapsed.
func NewCorpus(raw map[string][]string) *Corpus {
	c := &Corpus{
		pages:    make([]string, 0, len(raw)),
		links:    make(map[string][]string, len(raw)),
		linkSets: make(map[string]map[string]struct{}, len(raw)),
	}

	for page := range raw {
		c.pages = append(c.pages, page)
	}
	slices.Sort(c.pages)

	for _, page := range c.pages {
		set := make(map[string]struct{})
		for _, target := range raw[page] {
			if target == page {
				continue
			}
			if _, ok := raw[target]; !ok {
				continue
			}
			set[target] = struct{}{}
		}

		targets := make([]string, 0, len(set))
		for target := range set {
			targets = append(targets, target)
		}
		slices.Sort(targets)

		c.links[page] = targets
		c.linkSets[page] = set
	}

	return c
}

// Len returns the number of pages in the corpus.
func (c *Corpus) Len() int {
	return len(c.pages)
}

// Pages returns every page label in ascending order.
// The returned slice is a copy.
func (c *Corpus) Pages() []string {
	return slices.Clone(c.pages)
}

// Has reports whether page belongs to the corpus.
func (c *Corpus) Has(page string) bool {
	_, ok := c.links[page]
	return ok
}

// Links returns the sorted outbound targets of page.
// It returns nil when page is not part of the corpus.
func (c *Corpus) Links(page string) []string {
	targets, ok := c.links[page]
	if !ok {
		return nil
	}
	return slices.Clone(targets)
}

// OutDegree returns the number of outbound links of page.
func (c *Corpus) OutDegree(page string) int {
	return len(c.links[page])
}

// LinksTo reports whether from has an outbound link to to.
func (c *Corpus) LinksTo(from, to string) bool {
	_, ok := c.linkSets[from][to]
	return ok
}

// IsSink reports whether page has no outbound links.
func (c *Corpus) IsSink(page string) bool {
	return c.Has(page) && len(c.links[page]) == 0
}

// LinkCount returns the total number of links in the corpus.
func (c *Corpus) LinkCount() int {
	total := 0
	for _, targets := range c.links {
		total += len(targets)
	}
	return total
}

// Sinks returns the pages that have no outbound links, in ascending order.
func (c *Corpus) Sinks() []string {
	sinks := make([]string, 0)
	for _, page := range c.pages {
		if len(c.links[page]) == 0 {
			sinks = append(sinks, page)
		}
	}
	return sinks
}

// Fingerprint returns a SHA3-256 digest of the canonical edge list.
// Two corpora with the same pages and links share a fingerprint regardless
// of the order their links were discovered in.
func (c *Corpus) Fingerprint() string {
	h := sha3.New256()
	for _, page := range c.pages {
		h.Write([]byte(page))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(c.links[page], "\x00")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
