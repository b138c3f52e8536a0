package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/pagerank/internal/database"
	"github.com/nao1215/pagerank/internal/model"
)

// rankChangeThreshold is the smallest iterated rank change that is listed
// as a change rather than as noise.
const rankChangeThreshold = 0.0005

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [corpus-dir]",
		Short: "Compare stored rank runs of a corpus",
		Long: `History reads the run history database and compares rank runs of a corpus.

By default the latest run is compared with the one before it. The output
lists how the iterated rank of each page changed and whether the link
structure of the corpus changed between the runs.

Examples:
  # Compare the latest two runs
  pagerank history ./site

  # List all runs of a corpus
  pagerank history --list ./site

  # List every ranked corpus
  pagerank history --list-corpora

  # Compare the latest run with run 3
  pagerank history --with-run-id 3 ./site

  # Show the rank of one page across all runs
  pagerank history --page index.html ./site

  # Output the comparison as JSON
  pagerank history --json ./site`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List all runs of the corpus")
	cmd.Flags().BoolP("list-corpora", "L", false,
		"List all corpora in the history database")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with the run of this ID")
	cmd.Flags().StringP("page", "p", "",
		"Show the rank history of a single page")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	list           bool
	listCorpora    bool
	withRunID      int64
	page           string
	jsonOutput     bool
	markdownOutput bool
	corpusDir      string
	dbDir          string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no rank history available: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if opts.listCorpora {
		return listRankedCorpora(ctx, db, out)
	}

	if opts.corpusDir == "" {
		return errors.New("corpus directory required (or use --list-corpora)")
	}

	switch {
	case opts.list:
		return listRunHistory(ctx, db, out, opts.corpusDir)
	case opts.page != "":
		return showPageHistory(ctx, db, out, opts)
	default:
		return runComparison(ctx, db, out, opts)
	}
}

// parseHistoryFlags reads the history flags and resolves the corpus path.
func parseHistoryFlags(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{dbDir: getDBDir(cmd)}
	flags := cmd.Flags()

	var err error
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.listCorpora, err = flags.GetBool("list-corpora"); err != nil {
		return nil, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return nil, err
	}
	if opts.page, err = flags.GetString("page"); err != nil {
		return nil, err
	}
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdownOutput, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.jsonOutput && opts.markdownOutput {
		return nil, errors.New("--json and --markdown cannot be used together")
	}

	if len(args) > 0 {
		// Runs are stored under the absolute corpus path.
		if opts.corpusDir, err = filepath.Abs(args[0]); err != nil {
			return nil, fmt.Errorf("invalid corpus directory %q: %w", args[0], err)
		}
	}
	return opts, nil
}

// listRankedCorpora prints every corpus with stored runs.
func listRankedCorpora(ctx context.Context, db *database.RankDB, w io.Writer) error {
	corpora, err := db.ListCorpora(ctx)
	if err != nil {
		return fmt.Errorf("failed to list corpora: %w", err)
	}

	if len(corpora) == 0 {
		fmt.Fprintln(w, "No ranked corpora found in database.")
		return nil
	}

	fmt.Fprintf(w, "Ranked corpora (%d):\n\n", len(corpora))
	for _, dir := range corpora {
		fmt.Fprintf(w, "  %s\n", dir)
	}
	fmt.Fprintln(w, "\nUse 'pagerank history --list <corpus-dir>' to see the runs of a corpus.")
	return nil
}

// listRunHistory prints the runs of a corpus, newest first.
func listRunHistory(ctx context.Context, db *database.RankDB, w io.Writer, corpusDir string) error {
	runs, err := db.GetRunHistory(ctx, corpusDir)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for %s\n", corpusDir)
		return nil
	}

	fmt.Fprintf(w, "Run history for %s (%d runs):\n\n", corpusDir, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %-12s  %-6s  %-8s  %-9s  %s\n",
		"ID", "Date", "Structure", "Pages", "Samples", "MaxDelta", "Top page")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 86))
	for _, run := range runs {
		fmt.Fprintf(w, "  %-6d  %-20s  %-12s  %-6d  %-8d  %-9.4f  %s\n",
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortHash(run.Fingerprint),
			run.PageCount,
			run.Samples,
			run.MaxDelta,
			run.TopPage,
		)
	}

	fmt.Fprintln(w, "\nUse 'pagerank history <corpus-dir>' to compare the latest two runs.")
	fmt.Fprintln(w, "Use 'pagerank history --with-run-id <id> <corpus-dir>' to compare with a specific run.")
	return nil
}

// showPageHistory prints the estimates of one page across all runs.
func showPageHistory(ctx context.Context, db *database.RankDB, w io.Writer, opts *historyOptions) error {
	records, err := db.GetPageHistory(ctx, opts.corpusDir, opts.page)
	if err != nil {
		return fmt.Errorf("failed to get page history: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no runs found for page %s in %s", opts.page, opts.corpusDir)
	}

	if opts.jsonOutput {
		return writeJSON(w, records)
	}

	fmt.Fprintf(w, "Rank history of %s in %s:\n\n", opts.page, opts.corpusDir)
	fmt.Fprintf(w, "  %-6s  %-20s  %-8s  %-8s\n", "Run", "Date", "Sampled", "Iterated")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 48))
	for _, rec := range records {
		fmt.Fprintf(w, "  %-6d  %-20s  %-8.4f  %-8.4f\n",
			rec.RunID,
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Sampled,
			rec.Iterated,
		)
	}
	return nil
}

// runComparison compares the latest run of a corpus with an earlier one.
func runComparison(ctx context.Context, db *database.RankDB, w io.Writer, opts *historyOptions) error {
	reports, err := db.GetRankHistory(ctx, opts.corpusDir)
	if err != nil {
		return fmt.Errorf("failed to get rank history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no rank history found for %s", opts.corpusDir)
	}

	current := reports[0]
	var previous *model.RankReport

	if opts.withRunID > 0 {
		previous, err = db.GetRankReportByID(ctx, opts.withRunID)
		if err != nil {
			return fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if previous == nil {
			return fmt.Errorf("run with ID %d not found", opts.withRunID)
		}
		if previous.CorpusDir != opts.corpusDir {
			return fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, previous.CorpusDir, opts.corpusDir)
		}
		runs, err := db.GetRunHistory(ctx, opts.corpusDir)
		if err != nil {
			return fmt.Errorf("failed to get run history: %w", err)
		}
		if len(runs) > 0 && runs[0].ID == opts.withRunID {
			return fmt.Errorf("run ID %d is the latest run of %s; choose an earlier run to compare with", opts.withRunID, opts.corpusDir)
		}
	} else {
		if len(reports) < 2 {
			return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
		}
		previous = reports[1]
	}

	comparison := compareReports(previous, current)

	switch {
	case opts.jsonOutput:
		return writeJSON(w, comparison)
	case opts.markdownOutput:
		return outputComparisonMarkdown(w, comparison)
	default:
		return outputComparisonText(w, comparison)
	}
}

// ComparisonResult holds the result of comparing two rank runs.
type ComparisonResult struct {
	// CorpusDir is the ranked corpus.
	CorpusDir string `json:"corpus_dir"`

	// PreviousRun describes the older run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun describes the newer run.
	CurrentRun RunSummary `json:"current_run"`

	// StructureChanged reports whether the link graph differs between runs.
	StructureChanged bool `json:"structure_changed"`

	// Changes lists pages whose iterated rank moved, largest move first.
	Changes []PageChange `json:"changes,omitempty"`

	// AddedPages exist only in the current run.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages exist only in the previous run.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// UnchangedCount is the number of pages present in both runs whose
	// rank moved less than the change threshold.
	UnchangedCount int `json:"unchanged_count"`
}

// RunSummary contains the run properties shown in a comparison.
type RunSummary struct {
	DateRanked  time.Time `json:"date_ranked"`
	Fingerprint string    `json:"fingerprint"`
	PageCount   int       `json:"page_count"`
	LinkCount   int       `json:"link_count"`
	Damping     float64   `json:"damping"`
	Samples     int       `json:"samples"`
	TopPage     string    `json:"top_page"`
}

// PageChange is the iterated rank movement of a page present in both runs.
type PageChange struct {
	Page     string  `json:"page"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}

// newRunSummary extracts the comparison view of a report.
func newRunSummary(r *model.RankReport) RunSummary {
	return RunSummary{
		DateRanked:  r.DateRanked,
		Fingerprint: r.Fingerprint,
		PageCount:   r.PageCount,
		LinkCount:   r.LinkCount,
		Damping:     r.Damping,
		Samples:     r.Samples,
		TopPage:     r.Iterated.Top(),
	}
}

// compareReports compares the iterated ranks of two runs.
// The iterated estimate is used because it is deterministic, so every
// reported change comes from the corpus or the parameters and not from
// sampling noise.
func compareReports(previous, current *model.RankReport) *ComparisonResult {
	result := &ComparisonResult{
		CorpusDir:        current.CorpusDir,
		PreviousRun:      newRunSummary(previous),
		CurrentRun:       newRunSummary(current),
		StructureChanged: previous.Fingerprint != current.Fingerprint,
	}

	for _, page := range current.Iterated.Pages() {
		before, ok := previous.Iterated[page]
		if !ok {
			result.AddedPages = append(result.AddedPages, page)
			continue
		}
		now := current.Iterated[page]
		if math.Abs(now-before) < rankChangeThreshold {
			result.UnchangedCount++
			continue
		}
		result.Changes = append(result.Changes, PageChange{
			Page:     page,
			Previous: before,
			Current:  now,
			Delta:    now - before,
		})
	}

	for _, page := range previous.Iterated.Pages() {
		if _, ok := current.Iterated[page]; !ok {
			result.RemovedPages = append(result.RemovedPages, page)
		}
	}

	sort.SliceStable(result.Changes, func(i, j int) bool {
		return math.Abs(result.Changes[i].Delta) > math.Abs(result.Changes[j].Delta)
	})

	return result
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputComparisonText outputs the comparison in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(w, "Rank Comparison: %s\n", result.CorpusDir)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nLink structure: %s\n", formatStructure(result.StructureChanged))
	fmt.Fprintf(w, "\nPrevious run: %s\n", result.PreviousRun.DateRanked.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Current run:  %s\n", result.CurrentRun.DateRanked.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "\nRun Summary:")
	fmt.Fprintf(w, "  %-10s  %-12s  %-12s\n", "", "Previous", "Current")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 38))
	fmt.Fprintf(w, "  %-10s  %-12d  %-12d\n", "Pages", result.PreviousRun.PageCount, result.CurrentRun.PageCount)
	fmt.Fprintf(w, "  %-10s  %-12d  %-12d\n", "Links", result.PreviousRun.LinkCount, result.CurrentRun.LinkCount)
	fmt.Fprintf(w, "  %-10s  %-12.2f  %-12.2f\n", "Damping", result.PreviousRun.Damping, result.CurrentRun.Damping)
	fmt.Fprintf(w, "  %-10s  %-12s  %-12s\n", "Top page", result.PreviousRun.TopPage, result.CurrentRun.TopPage)

	if len(result.Changes) > 0 {
		fmt.Fprintf(w, "\nRank Changes (%d):\n", len(result.Changes))
		for _, c := range result.Changes {
			fmt.Fprintf(w, "  %s: %.4f -> %.4f (%s)\n", c.Page, c.Previous, c.Current, formatDelta(c.Delta))
		}
	}

	if len(result.AddedPages) > 0 {
		fmt.Fprintf(w, "\nAdded Pages (%d):\n", len(result.AddedPages))
		for _, page := range result.AddedPages {
			fmt.Fprintf(w, "  [+] %s\n", page)
		}
	}

	if len(result.RemovedPages) > 0 {
		fmt.Fprintf(w, "\nRemoved Pages (%d):\n", len(result.RemovedPages))
		for _, page := range result.RemovedPages {
			fmt.Fprintf(w, "  [-] %s\n", page)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(w, "\nUnchanged: %d pages\n", result.UnchangedCount)
	}

	return nil
}

// outputComparisonMarkdown outputs the comparison in Markdown format.
func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Rank Comparison: " + result.CorpusDir)
	md.PlainText("")

	if result.StructureChanged {
		md.Warningf("The link structure changed between the runs.")
	} else {
		md.Note("The link structure is unchanged.")
	}
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current"},
		Rows: [][]string{
			{"Date", result.PreviousRun.DateRanked.Format("2006-01-02 15:04"), result.CurrentRun.DateRanked.Format("2006-01-02 15:04")},
			{"Pages", strconv.Itoa(result.PreviousRun.PageCount), strconv.Itoa(result.CurrentRun.PageCount)},
			{"Links", strconv.Itoa(result.PreviousRun.LinkCount), strconv.Itoa(result.CurrentRun.LinkCount)},
			{"Top page", result.PreviousRun.TopPage, result.CurrentRun.TopPage},
		},
	})
	md.PlainText("")

	if len(result.Changes) > 0 {
		md.H2(fmt.Sprintf("Rank Changes (%d)", len(result.Changes)))
		md.PlainText("")
		rows := make([][]string, len(result.Changes))
		for i, c := range result.Changes {
			rows[i] = []string{
				"`" + c.Page + "`",
				strconv.FormatFloat(c.Previous, 'f', 4, 64),
				strconv.FormatFloat(c.Current, 'f', 4, 64),
				formatDelta(c.Delta),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(result.AddedPages) > 0 {
		md.H2(fmt.Sprintf("Added Pages (%d)", len(result.AddedPages)))
		md.PlainText("")
		md.BulletList(result.AddedPages...)
		md.PlainText("")
	}

	if len(result.RemovedPages) > 0 {
		md.H2(fmt.Sprintf("Removed Pages (%d)", len(result.RemovedPages)))
		md.PlainText("")
		md.BulletList(result.RemovedPages...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d pages unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// formatStructure describes whether the link structure changed.
func formatStructure(changed bool) string {
	if changed {
		return "CHANGED"
	}
	return "UNCHANGED"
}

// formatDelta formats a rank change with its sign.
func formatDelta(delta float64) string {
	s := strconv.FormatFloat(delta, 'f', 4, 64)
	if delta > 0 {
		return "+" + s
	}
	return s
}

// shortHash returns the first 12 characters of a fingerprint.
func shortHash(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
