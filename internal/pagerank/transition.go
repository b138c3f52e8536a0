package pagerank

import (
	"fmt"

	"github.com/nao1215/pagerank/internal/model"
)

// Transition returns the probability distribution over the page a random
// surfer visits after page.
//
// Every page receives (1 - damping) / N. When page has outbound links,
// each linked page additionally receives damping / |links|. When page is a
// sink, every page additionally receives damping / N, which makes the
// distribution uniform.
func Transition(c *model.Corpus, page string, damping float64) (model.Distribution, error) {
	if err := validate(c, damping); err != nil {
		return nil, err
	}
	if !c.Has(page) {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, page)
	}

	pages := c.Pages()
	weights := transitionWeights(c, pages, page, damping)

	dist := model.NewDistribution(pages)
	for i, p := range pages {
		dist[p] = weights[i]
	}
	return dist, nil
}

// transitionWeights computes the transition distribution of page as a slice
// aligned with pages. It assumes the inputs are already validated.
func transitionWeights(c *model.Corpus, pages []string, page string, damping float64) []float64 {
	n := float64(len(pages))
	base := (1 - damping) / n

	weights := make([]float64, len(pages))
	if c.IsSink(page) {
		for i := range weights {
			weights[i] = base + damping/n
		}
		return weights
	}

	share := damping / float64(c.OutDegree(page))
	for i, p := range pages {
		weights[i] = base
		if c.LinksTo(page, p) {
			weights[i] += share
		}
	}
	return weights
}
