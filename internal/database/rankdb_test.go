package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/pagerank/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RankDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// newTestReport creates a completed report ranked at the given time.
func newTestReport(dir string, at time.Time, iterated model.Distribution) *model.RankReport {
	report := model.NewRankReport(dir)
	report.DateRanked = at
	report.SetCorpus(model.NewCorpus(map[string][]string{
		"a.html": {"b.html"},
		"b.html": {"c.html"},
		"c.html": nil,
	}))
	report.Damping = 0.85
	report.Samples = 1000
	report.Seed = 7
	report.Iterations = 10
	report.Sampled = iterated.Clone()
	report.Iterated = iterated
	return report
}

var (
	baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ranksV1  = model.Distribution{"a.html": 0.2, "b.html": 0.3, "c.html": 0.5}
	ranksV2  = model.Distribution{"a.html": 0.1, "b.html": 0.4, "c.html": 0.5}
)

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestRankReports tests saving and loading reports.
func TestRankReports(t *testing.T) {
	t.Parallel()

	t.Run("round trips a report", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		saved := newTestReport("/corpus/one", baseTime, ranksV1)
		id, err := db.SaveRankReport(ctx, saved)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		if id <= 0 {
			t.Errorf("expected positive run id, got %d", id)
		}

		loaded, err := db.GetRankReportByID(ctx, id)
		if err != nil {
			t.Fatalf("failed to load report: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected report")
		}
		if loaded.Fingerprint != saved.Fingerprint || loaded.Seed != 7 {
			t.Errorf("report fields not preserved: %+v", loaded)
		}
		if loaded.Iterated["c.html"] != 0.5 {
			t.Errorf("expected iterated rank 0.5, got %v", loaded.Iterated["c.html"])
		}
		if loaded.Corpus != nil {
			t.Error("corpus graph should not be stored")
		}
	})

	t.Run("missing run returns nil", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report, err := db.GetRankReportByID(context.Background(), 99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report != nil {
			t.Error("expected nil report")
		}

		latest, err := db.GetLatestRankReport(context.Background(), "/nowhere")
		if err != nil || latest != nil {
			t.Errorf("expected nil, nil; got %v, %v", latest, err)
		}
	})

	t.Run("latest report and history are newest first", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		for _, r := range []*model.RankReport{
			newTestReport("/corpus/one", baseTime, ranksV1),
			newTestReport("/corpus/one", baseTime.Add(time.Hour), ranksV2),
			newTestReport("/corpus/two", baseTime.Add(2*time.Hour), ranksV1),
		} {
			if _, err := db.SaveRankReport(ctx, r); err != nil {
				t.Fatalf("failed to save report: %v", err)
			}
		}

		latest, err := db.GetLatestRankReport(ctx, "/corpus/one")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest.Iterated["a.html"] != 0.1 {
			t.Errorf("expected the second run, got %v", latest.Iterated)
		}

		history, err := db.GetRankHistory(ctx, "/corpus/one")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 reports, got %d", len(history))
		}
		if !history[0].DateRanked.After(history[1].DateRanked) {
			t.Error("expected newest report first")
		}
	})

	t.Run("runs within the same second keep their order", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		if _, err := db.SaveRankReport(ctx, newTestReport("/c", baseTime, ranksV1)); err != nil {
			t.Fatal(err)
		}
		second, err := db.SaveRankReport(ctx, newTestReport("/c", baseTime.Add(time.Millisecond), ranksV2))
		if err != nil {
			t.Fatal(err)
		}

		runs, err := db.GetRunHistory(ctx, "/c")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != second {
			t.Errorf("expected run %d first, got %+v", second, runs)
		}
	})
}

// TestRunHistory tests metadata listing.
func TestRunHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newTestReport("/corpus/one", baseTime, ranksV1)
	report.Sampled = model.Distribution{"a.html": 0.25, "b.html": 0.3, "c.html": 0.45}
	id, err := db.SaveRankReport(ctx, report)
	if err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	runs, err := db.GetRunHistory(ctx, "/corpus/one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	run := runs[0]
	if run.ID != id || run.PageCount != 3 || run.Samples != 1000 || run.Iterations != 10 {
		t.Errorf("unexpected metadata: %+v", run)
	}
	if run.TopPage != "c.html" {
		t.Errorf("expected top page c.html, got %q", run.TopPage)
	}
	if run.MaxDelta < 0.049 || run.MaxDelta > 0.051 {
		t.Errorf("expected max delta 0.05, got %v", run.MaxDelta)
	}
	if !run.Timestamp.Equal(baseTime) {
		t.Errorf("expected timestamp %v, got %v", baseTime, run.Timestamp)
	}
	if run.Fingerprint != report.Fingerprint {
		t.Error("fingerprint not stored")
	}
}

// TestListCorpora tests listing ranked corpora.
func TestListCorpora(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	corpora, err := db.ListCorpora(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corpora) != 0 {
		t.Errorf("expected no corpora, got %v", corpora)
	}

	for _, dir := range []string{"/b", "/a", "/b"} {
		if _, err := db.SaveRankReport(ctx, newTestReport(dir, baseTime, ranksV1)); err != nil {
			t.Fatal(err)
		}
	}

	corpora, err = db.ListCorpora(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corpora) != 2 || corpora[0] != "/a" || corpora[1] != "/b" {
		t.Errorf("expected [/a /b], got %v", corpora)
	}
}

// TestGetPageHistory tests per-page rank history.
func TestGetPageHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveRankReport(ctx, newTestReport("/c", baseTime, ranksV1)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveRankReport(ctx, newTestReport("/c", baseTime.Add(time.Hour), ranksV2)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveRankReport(ctx, newTestReport("/other", baseTime, ranksV1)); err != nil {
		t.Fatal(err)
	}

	records, err := db.GetPageHistory(ctx, "/c", "a.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Iterated != 0.1 || records[1].Iterated != 0.2 {
		t.Errorf("expected newest first, got %+v", records)
	}

	none, err := db.GetPageHistory(ctx, "/c", "missing.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no records, got %v", none)
	}
}

// TestParseTimestamp tests timestamp parsing.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-03-01 12:00:00.250", time.Date(2025, 3, 1, 12, 0, 0, 250_000_000, time.UTC)},
		{"2025-03-01 12:00:00", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2025-03-01T12:00:00Z", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"not a time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
