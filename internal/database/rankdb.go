package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagerank/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "pagerank.db"

// timestampLayout is the layout rank runs are stored with. Millisecond
// precision keeps runs made within the same second in order.
const timestampLayout = "2006-01-02 15:04:05.000"

// RankDB provides SQLite-based storage for rank runs.
// Every run is stored twice: as the full report JSON for exact reloads,
// and as one row per page so rank history can be queried without decoding
// every report.
//
// Design decision: We use a single database file for all corpora rather
// than one file per corpus. This keeps cross-run queries and backups simple.
type RankDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RankDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// writer while a batch is being saved.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RankDB in the given directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RankDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run 'pagerank rank' first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RankDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RankDB) Close() error {
	return rdb.db.Close()
}

// Path returns the path of the database file.
func (rdb *RankDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RankDB) createTables() error {
	schema := `
	-- One row per ranking run
	CREATE TABLE IF NOT EXISTS rank_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		corpus_dir TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		fingerprint TEXT,
		page_count INTEGER,
		link_count INTEGER,
		damping REAL,
		samples INTEGER,
		seed INTEGER,
		iterations INTEGER,
		max_delta REAL,
		top_page TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_corpus ON rank_runs(corpus_dir);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON rank_runs(timestamp);

	-- Per-page estimates of each run
	CREATE TABLE IF NOT EXISTS page_ranks (
		run_id INTEGER NOT NULL REFERENCES rank_runs(id) ON DELETE CASCADE,
		page TEXT NOT NULL,
		sampled REAL,
		iterated REAL,
		PRIMARY KEY (run_id, page)
	);

	CREATE INDEX IF NOT EXISTS idx_ranks_page ON page_ranks(page);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRankReport stores a report and its per-page ranks in one transaction.
// It returns the ID of the new run.
func (rdb *RankDB) SaveRankReport(ctx context.Context, report *model.RankReport) (int64, error) {
	summary := report.EnsureSummary()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO rank_runs (corpus_dir, timestamp, fingerprint, page_count, link_count,
		damping, samples, seed, iterations, max_delta, top_page, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.CorpusDir,
		report.DateRanked.UTC().Format(timestampLayout),
		report.Fingerprint,
		report.PageCount,
		report.LinkCount,
		report.Damping,
		report.Samples,
		int64(report.Seed), //nolint:gosec // stored bit pattern is converted back on read
		report.Iterations,
		summary.MaxDelta,
		summary.TopPage,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save rank run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO page_ranks (run_id, page, sampled, iterated) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page rank insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range summary.Rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Page, row.Sampled, row.Iterated); err != nil {
			return 0, fmt.Errorf("failed to save rank of %s: %w", row.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rank run: %w", err)
	}

	return runID, nil
}

// GetLatestRankReport retrieves the most recent report for a corpus.
// It returns nil without an error when the corpus has no runs.
func (rdb *RankDB) GetLatestRankReport(ctx context.Context, corpusDir string) (*model.RankReport, error) {
	query := `
	SELECT report_json FROM rank_runs
	WHERE corpus_dir = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return rdb.queryReport(ctx, query, corpusDir)
}

// GetRankReportByID retrieves a report by its run ID.
// It returns nil without an error when the run does not exist.
func (rdb *RankDB) GetRankReportByID(ctx context.Context, id int64) (*model.RankReport, error) {
	query := `
	SELECT report_json FROM rank_runs
	WHERE id = ?
	`
	return rdb.queryReport(ctx, query, id)
}

// queryReport decodes the report_json column of a single row query.
func (rdb *RankDB) queryReport(ctx context.Context, query string, args ...any) (*model.RankReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error here
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rank report: %w", err)
	}

	var report model.RankReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetRankHistory retrieves all reports for a corpus, newest first.
// Rows that fail to decode are skipped.
func (rdb *RankDB) GetRankHistory(ctx context.Context, corpusDir string) ([]*model.RankReport, error) {
	query := `
	SELECT report_json FROM rank_runs
	WHERE corpus_dir = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, corpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RankReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.RankReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// ListCorpora returns every corpus directory that has at least one run.
func (rdb *RankDB) ListCorpora(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT corpus_dir FROM rank_runs
	ORDER BY corpus_dir
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpora: %w", err)
	}
	defer rows.Close()

	var corpora []string
	for rows.Next() {
		var dir string
		if err := rows.Scan(&dir); err != nil {
			return nil, fmt.Errorf("failed to scan corpus: %w", err)
		}
		corpora = append(corpora, dir)
	}

	return corpora, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64 `json:"id"`

	// CorpusDir is the ranked corpus.
	CorpusDir string `json:"corpus_dir"`

	// Timestamp is when the run was performed.
	Timestamp time.Time `json:"timestamp"`

	// Fingerprint identifies the link structure that was ranked.
	Fingerprint string `json:"fingerprint"`

	// PageCount is the number of pages in the corpus.
	PageCount int `json:"page_count"`

	// Samples is the number of sampler steps.
	Samples int `json:"samples"`

	// Iterations is the number of rounds of the iterative estimator.
	Iterations int `json:"iterations"`

	// MaxDelta is the largest disagreement between the estimators.
	MaxDelta float64 `json:"max_delta"`

	// TopPage is the page with the highest iterated rank.
	TopPage string `json:"top_page"`
}

// GetRunHistory retrieves run metadata for a corpus, newest first.
func (rdb *RankDB) GetRunHistory(ctx context.Context, corpusDir string) ([]RunMetadata, error) {
	query := `
	SELECT id, corpus_dir, timestamp, fingerprint, page_count, samples, iterations, max_delta, top_page
	FROM rank_runs
	WHERE corpus_dir = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, corpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var fingerprint, topPage sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.CorpusDir,
			&timestamp,
			&fingerprint,
			&meta.PageCount,
			&meta.Samples,
			&meta.Iterations,
			&meta.MaxDelta,
			&topPage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.Fingerprint = fingerprint.String
		meta.TopPage = topPage.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// PageRankRecord is one page's estimates in one run.
type PageRankRecord struct {
	// RunID is the run the estimates belong to.
	RunID int64 `json:"run_id"`

	// Timestamp is when the run was performed.
	Timestamp time.Time `json:"timestamp"`

	// Sampled is the Monte Carlo estimate.
	Sampled float64 `json:"sampled"`

	// Iterated is the fixed point estimate.
	Iterated float64 `json:"iterated"`
}

// GetPageHistory retrieves the estimates of one page across all runs of a
// corpus, newest first.
func (rdb *RankDB) GetPageHistory(ctx context.Context, corpusDir, page string) ([]PageRankRecord, error) {
	query := `
	SELECT r.id, r.timestamp, p.sampled, p.iterated
	FROM page_ranks p
	JOIN rank_runs r ON r.id = p.run_id
	WHERE r.corpus_dir = ? AND p.page = ?
	ORDER BY r.timestamp DESC, r.id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, corpusDir, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var records []PageRankRecord
	for rows.Next() {
		var rec PageRankRecord
		var timestamp string
		if err := rows.Scan(&rec.RunID, &timestamp, &rec.Sampled, &rec.Iterated); err != nil {
			return nil, fmt.Errorf("failed to scan page rank: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
