package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pagerank/internal/model"
)

// singleStep returns a pipeline factory whose pipelines run one step.
func singleStep(name string, do func(ctx context.Context, report *model.RankReport) error) func(string) *Pipeline {
	return func(string) *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: name, doFunc: do})
		return p
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	factory := func(string) *Pipeline { return New() }

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory)
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(factory, WithConcurrency(5)); bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(factory, WithConcurrency(0)); bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})

	t.Run("nil batch logger falls back to default", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(factory, WithBatchLogger(nil)); bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all corpora in order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(singleStep("counter", func(_ context.Context, _ *model.RankReport) error {
			processed.Add(1)
			return nil
		}))

		corpora := []string{"corpus0", "corpus1", "corpus2"}
		results, err := bp.ProcessBatch(context.Background(), corpora)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, result := range results {
			if result.CorpusDir != corpora[i] {
				t.Errorf("result[%d]: got %q, expected %q", i, result.CorpusDir, corpora[i])
			}
		}
	})

	t.Run("passes the corpus to the factory", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := make(map[string]bool)
		bp := NewBatchProcessor(func(dir string) *Pipeline {
			mu.Lock()
			seen[dir] = true
			mu.Unlock()
			return New()
		})

		if _, err := bp.ProcessBatch(context.Background(), []string{"a", "b"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !seen["a"] || !seen["b"] {
			t.Errorf("factory was not called per corpus: %v", seen)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(
			singleStep("concurrent-counter", func(_ context.Context, _ *model.RankReport) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			}),
			WithConcurrency(2),
		)

		corpora := make([]string, 8)
		for i := range corpora {
			corpora[i] = fmt.Sprintf("corpus%d", i)
		}

		if _, err := bp.ProcessBatch(context.Background(), corpora); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency was %d, expected <= 2", peak.Load())
		}
	})

	t.Run("continues after individual corpus failure", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(singleStep("sometimes-fails", func(_ context.Context, report *model.RankReport) error {
			if report.CorpusDir == "broken" {
				return errors.New("simulated ranking failure")
			}
			return nil
		}))

		results, err := bp.ProcessBatch(context.Background(), []string{"first", "broken", "third"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[1].Error == nil {
			t.Error("expected error in second result")
		}
		if results[0].Error != nil || results[2].Error != nil {
			t.Error("other corpora should succeed")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32

		bp := NewBatchProcessor(
			singleStep("slow-step", func(ctx context.Context, _ *model.RankReport) error {
				started.Add(1)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
					return nil
				}
			}),
			WithConcurrency(2),
		)

		corpora := make([]string, 10)
		for i := range corpora {
			corpora[i] = fmt.Sprintf("corpus%d", i)
		}

		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		_, err := bp.ProcessBatch(ctx, corpora)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		//nolint:gosec // len(corpora) is small, no overflow risk
		if started.Load() >= int32(len(corpora)) {
			t.Error("expected some corpora to not start due to cancellation")
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(singleStep("noop", nil))

	corpora := []string{"corpus0", "corpus1", "corpus2"}
	var mu sync.Mutex
	received := make(map[int]string)

	err := bp.ProcessBatchWithCallback(context.Background(), corpora, func(report *model.RankReport, index int) {
		mu.Lock()
		received[index] = report.CorpusDir
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, dir := range corpora {
		if received[i] != dir {
			t.Errorf("index %d: expected %q, got %q", i, dir, received[i])
		}
	}
}
