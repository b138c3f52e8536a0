package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagerank/internal/database"
	"github.com/nao1215/pagerank/internal/model"
)

// rankedHistory ranks a corpus twice into a fresh database and returns the
// database and corpus directories. A page is added between the two runs.
func rankedHistory(t *testing.T) (string, string) {
	t.Helper()

	tmp := t.TempDir()
	dbDir := filepath.Join(tmp, "db")
	site := filepath.Join(tmp, "line")
	cfgPath := writeConfig(t, "defaults: {}\n")

	writeSite(t, site, lineSite)
	if _, _, err := execute(t, "rank", "--db-dir", dbDir, "-c", cfgPath, "--seed", "1", "-n", "2000", site); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	writeSite(t, site, map[string]string{"d.html": `<a href="a.html">a</a>`})
	if _, _, err := execute(t, "rank", "--db-dir", dbDir, "-c", cfgPath, "--seed", "1", "-n", "2000", site); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	return dbDir, site
}

// TestNewHistoryCmd tests the history command flags.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	for name, shorthand := range map[string]string{
		"list":         "l",
		"list-corpora": "L",
		"with-run-id":  "i",
		"page":         "p",
		"json":         "j",
		"markdown":     "m",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected %s flag", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("%s: expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

// TestHistoryCmd tests the history command against a real database.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dbDir, site := rankedHistory(t)

	t.Run("compares the latest two runs", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Rank Comparison", "Link structure: CHANGED", "Added Pages (1)", "[+] d.html"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q:\n%s", want, stdout)
			}
		}
	})

	t.Run("outputs comparison as JSON", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-j", site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(stdout), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !result.StructureChanged {
			t.Error("expected structure change")
		}
		if result.PreviousRun.PageCount != 3 || result.CurrentRun.PageCount != 4 {
			t.Errorf("unexpected page counts: %d -> %d", result.PreviousRun.PageCount, result.CurrentRun.PageCount)
		}
	})

	t.Run("outputs comparison as Markdown", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-m", site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "# Rank Comparison") {
			t.Errorf("expected Markdown heading:\n%s", stdout)
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "--list", site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(2 runs)") {
			t.Errorf("expected two runs:\n%s", stdout)
		}
	})

	t.Run("lists corpora", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-L")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, site) {
			t.Errorf("expected corpus in list:\n%s", stdout)
		}
	})

	t.Run("shows page history", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-p", "a.html", "-j", site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var records []database.PageRankRecord
		if err := json.Unmarshal([]byte(stdout), &records); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("compares with a specific run", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-i", "1", site)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Link structure: CHANGED") {
			t.Errorf("expected comparison against run 1:\n%s", stdout)
		}
	})

	t.Run("rejects unknown run", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", dbDir, "-i", "99", site)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("rejects the latest run", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", dbDir, "-i", "2", site)
		if err == nil || !strings.Contains(err.Error(), "latest run") {
			t.Errorf("expected latest run error, got %v", err)
		}
	})

	t.Run("requires a corpus", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "history", "--db-dir", dbDir); err == nil {
			t.Error("expected error without corpus")
		}
	})
}

func TestHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", filepath.Join(t.TempDir(), "none"), "site")
		if err == nil || !strings.Contains(err.Error(), "no rank history") {
			t.Errorf("expected missing history error, got %v", err)
		}
	})

	t.Run("single run cannot be compared", func(t *testing.T) {
		t.Parallel()

		tmp := t.TempDir()
		dbDir := filepath.Join(tmp, "db")
		site := filepath.Join(tmp, "line")
		writeSite(t, site, lineSite)
		if _, _, err := execute(t, "rank", "--db-dir", dbDir, "-c", writeConfig(t, "defaults: {}\n"), "-n", "500", site); err != nil {
			t.Fatalf("rank failed: %v", err)
		}

		_, _, err := execute(t, "history", "--db-dir", dbDir, site)
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected comparison error, got %v", err)
		}
	})

	t.Run("json and markdown conflict", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "history", "-j", "-m", "site"); err == nil {
			t.Error("expected error for conflicting formats")
		}
	})
}

// TestCompareReports tests the comparison of two runs.
func TestCompareReports(t *testing.T) {
	t.Parallel()

	newReport := func(fp string, ranks model.Distribution) *model.RankReport {
		r := model.NewRankReport("/corpus")
		r.DateRanked = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		r.Fingerprint = fp
		r.Iterated = ranks
		return r
	}

	previous := newReport("aaa", model.Distribution{"a": 0.2, "b": 0.3, "c": 0.5, "gone": 0})
	current := newReport("aaa", model.Distribution{"a": 0.1, "b": 0.3002, "c": 0.55, "new": 0.05})

	result := compareReports(previous, current)

	if result.StructureChanged {
		t.Error("equal fingerprints must not report a structure change")
	}
	if len(result.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", result.Changes)
	}
	if result.Changes[0].Page != "a" {
		t.Errorf("expected largest change first, got %q", result.Changes[0].Page)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("expected b to count as unchanged, got %d", result.UnchangedCount)
	}
	if len(result.AddedPages) != 1 || result.AddedPages[0] != "new" {
		t.Errorf("expected added page 'new', got %v", result.AddedPages)
	}
	if len(result.RemovedPages) != 1 || result.RemovedPages[0] != "gone" {
		t.Errorf("expected removed page 'gone', got %v", result.RemovedPages)
	}
	if result.CurrentRun.TopPage != "c" {
		t.Errorf("expected top page c, got %q", result.CurrentRun.TopPage)
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		0.0125: "+0.0125",
		-0.25:  "-0.2500",
		0:      "0.0000",
	}
	for in, want := range tests {
		if got := formatDelta(in); got != want {
			t.Errorf("formatDelta(%v) = %q, want %q", in, got, want)
		}
	}
}
