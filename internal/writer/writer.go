// =============================================================================
// COUNTER Usage Converter - Output Writer Module
// =============================================================================
//
// This module renders the aggregator's result into files:
//
//   PER-PACKAGE IMPORT FILES (output directory):
//     One CSV per package in the analytics platform's import format:
//       Date,Downloads,Searches,Sessions,Views,Clicks
//       2017-09-01,42,0,0,0,0
//     Only downloads are sourced from JR1 data; the remaining metric
//     columns are always zero.
//
//   DIAGNOSTIC REPORTS (output directory, alongside the package files):
//     journals_with_automated_zero_usage.tsv    - titles needing a manual look
//     no_usage_reports_or_password_only.tsv     - NoCounterSet titles
//     journals_with_no_issn.tsv                 - titles missing an ISSN
//     journals_with_low_usage.tsv               - optional threshold report
//
// All writes truncate and rewrite, and every row sequence is sorted before
// writing, so rerunning on identical inputs produces byte-identical files.
//
// =============================================================================

package writer

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"counter-usage/internal/aggregator"
	"counter-usage/internal/config"
	"counter-usage/internal/types"
	"counter-usage/pkg/utils"
)

// Diagnostic report file names. Kept stable across runs; downstream sanity
// checks grep for them by name.
const (
	ZeroUsageFile = "journals_with_automated_zero_usage.tsv"
	NoReportFile  = "no_usage_reports_or_password_only.tsv"
	NoISSNFile    = "journals_with_no_issn.tsv"
	LowUsageFile  = "journals_with_low_usage.tsv"
)

// importHeader is the analytics platform's import schema.
var importHeader = []string{"Date", "Downloads", "Searches", "Sessions", "Views", "Clicks"}

// =============================================================================
// WRITER
// =============================================================================

// Writer renders results into the configured output directory.
type Writer struct {
	outputDir  string
	nameFormat string

	// timestamp is captured once per Writer so a single run using the
	// {timestamp} placeholder writes a consistent set of file names.
	timestamp string
}

// New creates a Writer from the loaded configuration.
func New(cfg *config.MainConfig) *Writer {
	return &Writer{
		outputDir:  cfg.OutputDir,
		nameFormat: cfg.OutputNameFormat,
		timestamp:  time.Now().Format("20060102_150405"),
	}
}

// WriteAll writes the per-package import files and the diagnostic reports.
// Returns the number of package files written.
func (w *Writer) WriteAll(result *aggregator.Result) (int, error) {
	n, err := w.WritePackageFiles(result.Totals)
	if err != nil {
		return n, err
	}
	if err := w.WriteDiagnostics(&result.Classification); err != nil {
		return n, err
	}
	return n, nil
}

// =============================================================================
// PACKAGE IMPORT FILES
// =============================================================================

// WritePackageFiles writes one import CSV per package total. On error the
// returned count still reflects the files written before the failure.
func (w *Writer) WritePackageFiles(totals []*types.PackageTotal) (int, error) {
	written := 0
	for _, total := range totals {
		path := filepath.Join(w.outputDir, w.expandName(total.Package))
		if err := w.writePackageFile(path, total); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}

func (w *Writer) writePackageFile(path string, total *types.PackageTotal) error {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)

	if err := cw.Write(importHeader); err != nil {
		return err
	}
	for _, month := range total.SortedMonths() {
		row := []string{month.Date(), strconv.Itoa(total.Months[month]), "0", "0", "0", "0"}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return utils.WriteFile(path, []byte(sb.String()))
}

// expandName fills the output_name_format placeholders for one package.
func (w *Writer) expandName(pkg string) string {
	name := w.nameFormat
	name = strings.ReplaceAll(name, "{package}", utils.SanitizeFileName(pkg))
	name = strings.ReplaceAll(name, "{timestamp}", w.timestamp)
	if strings.Contains(name, "{uuid}") {
		name = strings.ReplaceAll(name, "{uuid}", uuid.NewString())
	}
	return name
}

// =============================================================================
// DIAGNOSTIC REPORTS
// =============================================================================

// WriteDiagnostics writes the data-quality reports. These files ARE the
// error-reporting mechanism for data problems: a title listed in them is an
// expected output artifact, not a failure.
func (w *Writer) WriteDiagnostics(cls *aggregator.Classification) error {
	zeroRows := titleRows(cls.ZeroUsage)
	if err := w.writeTSV(ZeroUsageFile, nil, zeroRows); err != nil {
		return err
	}

	noReportRows := make([][]string, 0, len(cls.NoReport))
	for _, entry := range cls.NoReport {
		noReportRows = append(noReportRows, []string{entry.Vendor, entry.Title})
	}
	sortRows(noReportRows)
	if err := w.writeTSV(NoReportFile, []string{"Publisher", "Title"}, noReportRows); err != nil {
		return err
	}

	noISSNRows := make([][]string, 0, len(cls.NoISSN))
	for _, title := range dedupeSorted(cls.NoISSN) {
		noISSNRows = append(noISSNRows, []string{title})
	}
	if err := w.writeTSV(NoISSNFile, nil, noISSNRows); err != nil {
		return err
	}

	if len(cls.LowUsage) > 0 {
		lowRows := make([][]string, 0, len(cls.LowUsage))
		for _, lu := range cls.LowUsage {
			lowRows = append(lowRows, []string{lu.Package, strconv.Itoa(lu.Total)})
		}
		if err := w.writeTSV(LowUsageFile, []string{"Package", "Total"}, lowRows); err != nil {
			return err
		}
	}

	return nil
}

// writeTSV writes one diagnostic file into the output directory.
func (w *Writer) writeTSV(name string, header []string, rows [][]string) error {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	cw.Comma = '\t'

	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	path := filepath.Join(w.outputDir, name)
	if err := utils.WriteFile(path, []byte(sb.String())); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// ROW HELPERS
// =============================================================================

// titleRows renders entries as sorted, deduplicated single-column rows.
func titleRows(entries []*types.SubscriptionEntry) [][]string {
	titles := make([]string, 0, len(entries))
	for _, entry := range entries {
		titles = append(titles, entry.Title)
	}
	rows := make([][]string, 0, len(titles))
	for _, title := range dedupeSorted(titles) {
		rows = append(rows, []string{title})
	}
	return rows
}

// dedupeSorted returns the unique values in sorted order.
func dedupeSorted(values []string) []string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)

	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// sortRows orders multi-column rows lexicographically by column.
func sortRows(rows [][]string) {
	sort.Slice(rows, func(i, j int) bool {
		for k := 0; k < len(rows[i]) && k < len(rows[j]); k++ {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return len(rows[i]) < len(rows[j])
	})
}
