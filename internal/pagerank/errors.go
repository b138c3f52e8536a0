package pagerank

import (
	"errors"
	"fmt"

	"github.com/nao1215/pagerank/internal/model"
)

// Estimation errors.
// Callers use errors.Is to distinguish them; the returned errors wrap these
// sentinels with details about the offending value.
var (
	// ErrInvalidInput is returned for an empty corpus, a damping factor
	// outside (0, 1), a sample count below 1, a walker count below 1, or a
	// non-positive convergence tolerance.
	ErrInvalidInput = errors.New("invalid input")

	// ErrKeyNotFound is returned when a page is not part of the corpus.
	ErrKeyNotFound = errors.New("page not found in corpus")
)

// validate checks the preconditions shared by every estimator.
func validate(c *model.Corpus, damping float64) error {
	if c == nil || c.Len() == 0 {
		return fmt.Errorf("%w: corpus has no pages", ErrInvalidInput)
	}
	// Written as a negated range check so NaN is rejected too.
	if !(damping > 0 && damping < 1) {
		return fmt.Errorf("%w: damping factor %v is outside (0, 1)", ErrInvalidInput, damping)
	}
	return nil
}
