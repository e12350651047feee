// =============================================================================
// COUNTER Usage Converter - Usage Report Loader
// =============================================================================
//
// This module reads vendor usage reports: every tab-delimited *.tsv file in
// the input directory. Vendors agree on almost nothing, so the loader makes
// only two assumptions:
//   - The first row is a header row.
//   - Columns are identified by header name, never by position.
//
// Two layouts are recognized:
//
//   WIDE (COUNTER JR1 style): one row per title, one column per month.
//     Journal | Publisher | Print ISSN | Online ISSN | Sep-2017 | Oct-2017
//
//   LONG: one row per title/period observation.
//     Title | ISSN | Period | Usage
//
// Rows with problems (no title and no ISSN, unparseable period) are skipped
// and counted, never fatal. Non-numeric or empty usage cells count as zero.
//
// =============================================================================

package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"counter-usage/internal/types"
)

// =============================================================================
// REPORT STRUCTURE
// =============================================================================

// Report holds the usable records extracted from one usage report file.
type Report struct {
	// SourceFile is the path the report was read from.
	SourceFile string

	// Records are the extracted title/month/count observations.
	Records []types.UsageRecord

	// SkippedRows counts data rows that could not be used.
	SkippedRows int
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Discover lists every *.tsv file directly in inputDir, skipping the
// subscription table if it happens to share the extension. Subdirectories
// (archives, the output directory) are not descended into. Results are
// sorted so the pipeline processes files in a stable order.
func Discover(inputDir, subscriptionPath string) ([]string, error) {
	subscription := filepath.Clean(subscriptionPath)

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", inputDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".tsv") {
			continue
		}
		path := filepath.Join(inputDir, entry.Name())
		if filepath.Clean(path) == subscription {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)

	return files, nil
}

// =============================================================================
// COLUMN LAYOUT DETECTION
// =============================================================================

// columnLayout is the result of interpreting a report's header row.
type columnLayout struct {
	titleCol int
	issnCol  int

	// wide layout: one column per month. monthOrder keeps the columns in
	// file order so record extraction is deterministic.
	monthCols  map[int]types.Month
	monthOrder []int

	// long layout: a period column plus a usage column.
	periodCol int
	usageCol  int
}

func (l *columnLayout) wide() bool { return len(l.monthCols) > 0 }

// detectLayout locates the title, ISSN, and usage columns by header name.
// It returns an error when the header yields nothing usable; the caller
// skips the file with a warning rather than aborting the run.
func detectLayout(header []string) (*columnLayout, error) {
	layout := &columnLayout{
		titleCol:  -1,
		issnCol:   -1,
		periodCol: -1,
		usageCol:  -1,
		monthCols: make(map[int]types.Month),
	}

	// Track ISSN candidates separately: an online ISSN beats a bare "ISSN"
	// header, which beats a print ISSN. Online usage is what we pay for.
	onlineISSN, genericISSN, printISSN := -1, -1, -1

	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case h == "":
			continue

		case strings.Contains(h, "issn"):
			switch {
			case strings.Contains(h, "online"):
				onlineISSN = i
			case strings.Contains(h, "print"):
				printISSN = i
			default:
				genericISSN = i
			}

		case h == "journal" || strings.Contains(h, "title"):
			if layout.titleCol < 0 {
				layout.titleCol = i
			}

		case h == "period" || h == "month" || h == "date":
			layout.periodCol = i

		case isUsageHeader(h):
			if layout.usageCol < 0 {
				layout.usageCol = i
			}

		default:
			if m, ok := types.ParseMonth(raw); ok {
				layout.monthCols[i] = m
			}
		}
	}

	for col := range layout.monthCols {
		layout.monthOrder = append(layout.monthOrder, col)
	}
	sort.Ints(layout.monthOrder)

	switch {
	case onlineISSN >= 0:
		layout.issnCol = onlineISSN
	case genericISSN >= 0:
		layout.issnCol = genericISSN
	default:
		layout.issnCol = printISSN
	}

	if layout.titleCol < 0 && layout.issnCol < 0 {
		return nil, fmt.Errorf("header has no title or ISSN column")
	}
	if !layout.wide() && (layout.periodCol < 0 || layout.usageCol < 0) {
		return nil, fmt.Errorf("header has no month columns and no period/usage pair")
	}

	return layout, nil
}

// isUsageHeader recognizes the long-layout usage column. "Reporting Period
// Total" style columns also match, but in a wide report the month columns
// win, so the total column is never double counted.
func isUsageHeader(h string) bool {
	for _, key := range []string{"usage", "total", "count", "download"} {
		if strings.Contains(h, key) {
			return true
		}
	}
	return false
}

// =============================================================================
// PARSING
// =============================================================================

// Parse reads one usage report file and extracts its usage records.
//
// The error return covers structural failures only (unreadable file, empty
// file, unusable header). Per-row problems are counted in SkippedRows and
// processing continues.
func Parse(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("report is empty")
	}

	layout, err := detectLayout(rows[0])
	if err != nil {
		return nil, err
	}

	report := &Report{SourceFile: path}
	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		report.parseDataRow(row, layout)
	}

	return report, nil
}

// parseDataRow extracts zero or more usage records from one data row.
func (r *Report) parseDataRow(row []string, layout *columnLayout) {
	title := cell(row, layout.titleCol)
	issn := types.NormalizeISSN(cell(row, layout.issnCol))

	// A row we can't key by anything is usage for nobody.
	if title == "" && issn == "" {
		r.SkippedRows++
		return
	}

	if layout.wide() {
		for _, col := range layout.monthOrder {
			r.Records = append(r.Records, types.UsageRecord{
				Title:      title,
				ISSN:       issn,
				Month:      layout.monthCols[col],
				Count:      parseCount(cell(row, col)),
				SourceFile: r.SourceFile,
			})
		}
		return
	}

	month, ok := types.ParseMonth(cell(row, layout.periodCol))
	if !ok {
		r.SkippedRows++
		return
	}

	r.Records = append(r.Records, types.UsageRecord{
		Title:      title,
		ISSN:       issn,
		Month:      month,
		Count:      parseCount(cell(row, layout.usageCol)),
		SourceFile: r.SourceFile,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// cell safely reads a column from a possibly ragged row.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseCount converts a usage cell to an integer. Vendors format counts with
// thousands separators; anything that still isn't a non-negative integer
// counts as zero.
func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
