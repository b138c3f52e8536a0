package pagerank

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pagerank/internal/model"
)

// cancelCheckInterval is how many steps a walk takes between context checks.
const cancelCheckInterval = 1024

// SampleOption configures Sample and SampleParallel.
type SampleOption func(*sampleOptions)

type sampleOptions struct {
	// source is used by Sample, and shared by every walker of
	// SampleParallel when no factory is set.
	source Source

	// factory creates a dedicated source per walker.
	factory func(walker int) Source

	// seed seeds the default sources when seeded is true.
	seed   uint64
	seeded bool

	// concurrency limits the number of walks running at once.
	concurrency int
}

// WithSource sets the random source used for every choice.
// SampleParallel serializes access to it across walkers.
func WithSource(src Source) SampleOption {
	return func(o *sampleOptions) {
		o.source = src
	}
}

// WithSourceFactory sets a function that returns a dedicated source for
// each walker of SampleParallel. Walker indexes start at 0.
// Sample uses the source of walker 0.
func WithSourceFactory(factory func(walker int) Source) SampleOption {
	return func(o *sampleOptions) {
		o.factory = factory
	}
}

// WithSeed makes the default source deterministic.
// SampleParallel seeds walker i with seed + i.
func WithSeed(seed uint64) SampleOption {
	return func(o *sampleOptions) {
		o.seed = seed
		o.seeded = true
	}
}

// WithConcurrency limits how many walks SampleParallel runs at once.
// Values below 1 are ignored.
func WithConcurrency(n int) SampleOption {
	return func(o *sampleOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newSampleOptions(opts []SampleOption) *sampleOptions {
	o := &sampleOptions{
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sourceFor returns the source walker i should draw from.
func (o *sampleOptions) sourceFor(walker int) Source {
	switch {
	case o.factory != nil:
		return o.factory(walker)
	case o.source != nil:
		return o.source
	case o.seeded:
		return NewRandSource(o.seed + uint64(walker)) //nolint:gosec // walker is never negative
	default:
		return NewUnseededSource()
	}
}

// Sample estimates PageRank by simulating a random surfer for n steps.
//
// The surfer starts on a uniformly chosen page. On every step the current
// page is counted once, and the next page is drawn from Transition of the
// current page. The result is the fraction of steps spent on each page, so
// it sums to 1.
func Sample(c *model.Corpus, damping float64, n int, opts ...SampleOption) (model.Distribution, error) {
	if err := validate(c, damping); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: sample count %d must be at least 1", ErrInvalidInput, n)
	}

	o := newSampleOptions(opts)
	w := newWalker(c, damping)

	counts, err := w.walk(context.Background(), n, o.sourceFor(0))
	if err != nil {
		return nil, err
	}
	return w.frequencies(counts, n), nil
}

// SampleParallel estimates PageRank like Sample, but splits the n steps
// across walkers independent walks that run concurrently. Each walk starts
// on its own uniformly chosen page. Visit counts of all walks are summed
// before normalizing.
//
// With WithSeed, walker i uses a source seeded with seed + i, so the result
// is reproducible regardless of scheduling.
func SampleParallel(ctx context.Context, c *model.Corpus, damping float64, n, walkers int, opts ...SampleOption) (model.Distribution, error) {
	if err := validate(c, damping); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: sample count %d must be at least 1", ErrInvalidInput, n)
	}
	if walkers < 1 {
		return nil, fmt.Errorf("%w: walker count %d must be at least 1", ErrInvalidInput, walkers)
	}
	walkers = min(walkers, n)

	o := newSampleOptions(opts)
	if o.factory == nil && o.source != nil {
		o.source = &lockedSource{src: o.source}
	}

	results := make([][]int, walkers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i := range walkers {
		steps := n / walkers
		if i < n%walkers {
			steps++
		}
		g.Go(func() error {
			// Each walk owns its walker so the lazily built rows are never shared.
			w := newWalker(c, damping)
			counts, err := w.walk(ctx, steps, o.sourceFor(i))
			if err != nil {
				return err
			}
			results[i] = counts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	w := newWalker(c, damping)
	total := make([]int, len(w.pages))
	for _, counts := range results {
		for i, v := range counts {
			total[i] += v
		}
	}
	return w.frequencies(total, n), nil
}

// walker performs random surfer walks over a corpus.
type walker struct {
	corpus  *model.Corpus
	damping float64

	// pages is the sorted page list; all slices below are aligned with it.
	pages []string

	// index maps a page to its position in pages.
	index map[string]int

	// rows caches the transition weights of each page once computed.
	rows [][]float64
}

func newWalker(c *model.Corpus, damping float64) *walker {
	pages := c.Pages()
	index := make(map[string]int, len(pages))
	for i, p := range pages {
		index[p] = i
	}
	return &walker{
		corpus:  c,
		damping: damping,
		pages:   pages,
		index:   index,
		rows:    make([][]float64, len(pages)),
	}
}

// row returns the transition weights out of page i.
func (w *walker) row(i int) []float64 {
	if w.rows[i] == nil {
		w.rows[i] = transitionWeights(w.corpus, w.pages, w.pages[i], w.damping)
	}
	return w.rows[i]
}

// lookup resolves a page returned by a source to its index.
func (w *walker) lookup(page string) (int, error) {
	i, ok := w.index[page]
	if !ok {
		return 0, fmt.Errorf("%w: source returned %q", ErrKeyNotFound, page)
	}
	return i, nil
}

// walk takes steps steps from a uniformly chosen start page and returns the
// number of visits per page.
func (w *walker) walk(ctx context.Context, steps int, src Source) ([]int, error) {
	counts := make([]int, len(w.pages))

	current, err := w.lookup(src.UniformPage(w.pages))
	if err != nil {
		return nil, err
	}

	for step := range steps {
		if step%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		counts[current]++

		next, err := w.lookup(src.WeightedPage(w.pages, w.row(current)))
		if err != nil {
			return nil, err
		}
		current = next
	}

	return counts, nil
}

// frequencies converts visit counts over n steps into a distribution.
func (w *walker) frequencies(counts []int, n int) model.Distribution {
	dist := model.NewDistribution(w.pages)
	for i, p := range w.pages {
		dist[p] = float64(counts[i]) / float64(n)
	}
	return dist
}
