package pagerank

import (
	"fmt"
	"math"

	"github.com/nao1215/pagerank/internal/model"
)

// DefaultTolerance is the convergence threshold used when none is given.
const DefaultTolerance = 0.001

// IterateOption configures Iterate.
type IterateOption func(*iterateOptions)

type iterateOptions struct {
	tolerance float64
	observer  func(round int, maxDelta float64)
}

// WithTolerance sets the largest per-page change that still counts as
// converged.
func WithTolerance(tolerance float64) IterateOption {
	return func(o *iterateOptions) {
		o.tolerance = tolerance
	}
}

// WithObserver registers a function called after every round with the
// round number (starting at 1) and the largest per-page change of that round.
func WithObserver(observer func(round int, maxDelta float64)) IterateOption {
	return func(o *iterateOptions) {
		o.observer = observer
	}
}

// Iterate estimates PageRank by repeatedly applying
//
//	rank'(p) = (1-d)/N + d * Σ rank(q)/outDegree(q)   over q linking to p
//	                   + d * Σ rank(s)/N              over sinks s
//
// starting from 1/N for every page, until no page changes by more than the
// tolerance. Each round reads only the previous round's ranks, so the
// result does not depend on page order. Sums are taken in sorted page order,
// which makes repeated calls bit-identical.
//
// There is no round limit; the damped chain is irreducible and aperiodic,
// so the iteration always converges.
func Iterate(c *model.Corpus, damping float64, opts ...IterateOption) (model.Distribution, error) {
	if err := validate(c, damping); err != nil {
		return nil, err
	}

	o := &iterateOptions{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(o)
	}
	if !(o.tolerance > 0) {
		return nil, fmt.Errorf("%w: tolerance %v must be positive", ErrInvalidInput, o.tolerance)
	}

	g := newInboundGraph(c)
	rank := model.NewDistribution(g.pages)
	for _, p := range g.pages {
		rank[p] = 1 / float64(len(g.pages))
	}

	for round := 1; ; round++ {
		next := g.step(rank, damping)

		maxDelta := 0.0
		for _, p := range g.pages {
			maxDelta = math.Max(maxDelta, math.Abs(next[p]-rank[p]))
		}

		if o.observer != nil {
			o.observer(round, maxDelta)
		}

		if maxDelta <= o.tolerance {
			return next, nil
		}
		rank = next
	}
}

// inboundGraph is the reverse view of a corpus used by the iteration.
type inboundGraph struct {
	// pages is the sorted page list.
	pages []string

	// inbound maps a page to the sorted pages linking to it.
	inbound map[string][]string

	// outDegree caches the number of outbound links per page.
	outDegree map[string]int

	// sinks lists pages without outbound links in sorted order.
	sinks []string
}

func newInboundGraph(c *model.Corpus) *inboundGraph {
	g := &inboundGraph{
		pages:     c.Pages(),
		inbound:   make(map[string][]string),
		outDegree: make(map[string]int),
		sinks:     c.Sinks(),
	}
	// Walking sources in sorted order keeps every inbound list sorted.
	for _, q := range g.pages {
		g.outDegree[q] = c.OutDegree(q)
		for _, p := range c.Links(q) {
			g.inbound[p] = append(g.inbound[p], q)
		}
	}
	return g
}

// step computes one round of the update from a snapshot of rank.
func (g *inboundGraph) step(rank model.Distribution, damping float64) model.Distribution {
	n := float64(len(g.pages))

	sinkShare := 0.0
	for _, s := range g.sinks {
		sinkShare += rank[s] / n
	}

	next := make(model.Distribution, len(g.pages))
	for _, p := range g.pages {
		sum := 0.0
		for _, q := range g.inbound[p] {
			sum += rank[q] / float64(g.outDegree[q])
		}
		next[p] = (1-damping)/n + damping*(sum+sinkShare)
	}
	return next
}
