package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagerank/internal/model"
)

// createTestReport creates a completed report for the line corpus a -> b -> c.
func createTestReport() *model.RankReport {
	report := model.NewRankReport("testdata/line")
	report.DateRanked = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	report.SetCorpus(model.NewCorpus(map[string][]string{
		"a.html": {"b.html"},
		"b.html": {"c.html"},
		"c.html": nil,
	}))
	report.Damping = 0.85
	report.Samples = 10000
	report.Walkers = 1
	report.Seed = 42
	report.Tolerance = 0.001
	report.Iterations = 12
	report.Sampled = model.Distribution{"a.html": 0.1851, "b.html": 0.3398, "c.html": 0.4751}
	report.Iterated = model.Distribution{"a.html": 0.1843, "b.html": 0.3412, "c.html": 0.4745}
	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"PAGERANK REPORT", "testdata/line", "Pages:       3 (1 without links)", "Status:      Complete"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes both estimator sections in page order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		sampling := strings.Index(output, "PageRank Results from Sampling (n = 10000)")
		iteration := strings.Index(output, "PageRank Results from Iteration")
		if sampling < 0 || iteration < 0 || sampling > iteration {
			t.Fatalf("expected sampling section before iteration section:\n%s", output)
		}
		if !strings.Contains(output, "  a.html: 0.1851\n  b.html: 0.3398\n  c.html: 0.4751\n") {
			t.Errorf("sampled ranks not listed in page order:\n%s", output)
		}
		if !strings.Contains(output, "  a.html: 0.1843\n  b.html: 0.3412\n  c.html: 0.4745\n") {
			t.Errorf("iterated ranks not listed in page order:\n%s", output)
		}
		if !strings.Contains(output, "Top page:           c.html") {
			t.Error("expected top page")
		}
	})

	t.Run("verbose mode includes parameters", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		report := createTestReport()
		if _, err := NewSimpleWriter(&quiet).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(quiet.String(), "PARAMETERS") {
			t.Error("parameters should only be shown in verbose mode")
		}
		if !strings.Contains(verbose.String(), "seed:       42") {
			t.Error("expected seed in verbose output")
		}
	})

	t.Run("handles timed out report", func(t *testing.T) {
		t.Parallel()

		report := model.NewRankReport("slow")
		report.TimedOut = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "TIMED OUT") {
			t.Error("expected timed out status")
		}
		if !strings.Contains(buf.String(), "No ranks computed.") {
			t.Error("expected empty rank notice")
		}
	})

	t.Run("shows error in status", func(t *testing.T) {
		t.Parallel()

		report := model.NewRankReport("broken")
		report.ErrorMessage = "no pages found in broken"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "ERROR - no pages found in broken") {
			t.Error("expected error status")
		}
	})

	t.Run("writes summary directly", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := model.NewRankSummary(createTestReport())
		if _, err := NewSimpleWriter(&buf).WriteSummary(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, "PAGERANK REPORT") {
			t.Error("summary output should not include the full header")
		}
		if !strings.Contains(output, "PageRank Results from Iteration") {
			t.Error("expected iteration section in summary")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.RankReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.CorpusDir != "testdata/line" {
			t.Errorf("expected corpus dir, got %q", decoded.CorpusDir)
		}
		if decoded.Iterated["c.html"] != 0.4745 {
			t.Errorf("expected iterated rank of c.html, got %v", decoded.Iterated["c.html"])
		}
		if decoded.Summary == nil || len(decoded.Summary.Rows) != 3 {
			t.Error("expected summary to be generated")
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected a single line of JSON")
		}
	})

	t.Run("pretty print with indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"corpus_dir\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("corpus graph is not serialized", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, ok := raw["Corpus"]; ok {
			t.Error("corpus graph should be excluded")
		}
	})

	t.Run("WriteSummary outputs the summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := model.NewRankSummary(createTestReport())
		if _, err := NewJSONWriter(&buf).WriteSummary(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.RankSummary
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.TopPage != "c.html" {
			t.Errorf("expected top page c.html, got %q", decoded.TopPage)
		}
	})
}

// TestFullJSONWriter tests the versioned JSON wrapper.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded JSONReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %q", decoded.Version)
	}
	if decoded.Report == nil || decoded.Summary == nil {
		t.Error("expected report and summary")
	}
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes table and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected bytes to be written")
		}

		output := buf.String()
		for _, want := range []string{"# PageRank Report", "## Ranks", "Sampled", "Iterated", "```mermaid", "c.html", "0.4745"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if !strings.Contains(output, "TIP") {
			t.Error("expected agreement tip")
		}
	})

	t.Run("warns when estimators disagree", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Sampled = model.Distribution{"a.html": 0.4, "b.html": 0.3, "c.html": 0.3}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "WARNING") {
			t.Error("expected disagreement warning")
		}
	})

	t.Run("handles empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewRankReport("empty")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No ranks computed.") {
			t.Error("expected empty rank notice")
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Error("no chart expected without ranks")
		}
	})
}

func TestShortFingerprint(t *testing.T) {
	t.Parallel()

	if got := shortFingerprint("abc"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := shortFingerprint(strings.Repeat("f", 64)); len(got) != 12 {
		t.Errorf("expected 12 characters, got %q", got)
	}
}
