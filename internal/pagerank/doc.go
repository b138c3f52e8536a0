// Package pagerank estimates the importance of pages in a corpus.
//
// Two independent estimators are provided:
//   - Sample: a Monte Carlo random surfer that counts page visits
//   - Iterate: a deterministic fixed point iteration of the PageRank equations
//
// Both share the damped random surfer model exposed by Transition. With
// probability equal to the damping factor the surfer follows one of the
// current page's links uniformly; otherwise it jumps to any page of the
// corpus uniformly. A page without outbound links (a sink) is treated as
// linking to every page, itself included, in both the transition model and
// the iterative estimator.
//
// # Usage
//
//	corpus := model.NewCorpus(map[string][]string{
//	    "1.html": {"2.html"},
//	    "2.html": {"1.html", "3.html"},
//	    "3.html": nil,
//	})
//
//	sampled, err := pagerank.Sample(corpus, 0.85, 10000, pagerank.WithSeed(42))
//	iterated, err := pagerank.Iterate(corpus, 0.85)
//
// All functions are pure with respect to the corpus: it is only read. The
// randomness of the sampler is abstracted behind Source so tests can
// substitute a scripted sequence of choices.
package pagerank
