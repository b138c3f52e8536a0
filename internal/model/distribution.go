package model

import (
	"math"
	"slices"
)

// Distribution maps each page to a non-negative weight.
// Both transition probabilities and rank results use this shape; their
// values sum to 1.0 within floating point tolerance and every page of the
// corpus is present, including pages with a weight of zero.
type Distribution map[string]float64

// NewDistribution returns a Distribution holding 0 for every page.
func NewDistribution(pages []string) Distribution {
	d := make(Distribution, len(pages))
	for _, page := range pages {
		d[page] = 0
	}
	return d
}

// Sum returns the total weight of the distribution.
// Values are added in page order so the result does not depend on map
// iteration order.
func (d Distribution) Sum() float64 {
	total := 0.0
	for _, page := range d.Pages() {
		total += d[page]
	}
	return total
}

// Pages returns the pages of the distribution in ascending order.
func (d Distribution) Pages() []string {
	pages := make([]string, 0, len(d))
	for page := range d {
		pages = append(pages, page)
	}
	slices.Sort(pages)
	return pages
}

// Top returns the page with the highest weight.
// Ties are broken by page name so the result is deterministic.
// It returns an empty string for an empty distribution.
func (d Distribution) Top() string {
	best := ""
	bestValue := math.Inf(-1)
	for _, page := range d.Pages() {
		if d[page] > bestValue {
			best = page
			bestValue = d[page]
		}
	}
	return best
}

// MaxDelta returns the largest absolute difference between d and other
// over the pages of d. Pages missing from other count as zero.
func (d Distribution) MaxDelta(other Distribution) float64 {
	maxDelta := 0.0
	for page, value := range d {
		if delta := math.Abs(value - other[page]); delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta
}

// Clone returns a copy of the distribution.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for page, value := range d {
		out[page] = value
	}
	return out
}
