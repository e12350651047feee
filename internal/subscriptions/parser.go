// =============================================================================
// COUNTER Usage Converter - Subscription Table Loader
// =============================================================================
//
// This module loads the vendor's subscription/package export into the lookup
// structures the aggregator joins against. The export is a tab-delimited,
// header-less file with fixed column positions; an .xlsx file with the same
// column layout is also accepted (some acquisitions staff re-save the export
// as a spreadsheet).
//
// LOADING RULES:
//   - A row with fewer than 13 fields is fatal; the table is the one input
//     the pipeline cannot limp along without.
//   - Only entries whose access identifier contains "online" participate in
//     matching. "Digital" in the export means password-only magazine access,
//     which has no retrievable report.
//   - ISSN 9999-9994 is the vendor's package-marker pseudo-ISSN, not a real
//     publication identifier.
//   - We pay per package, so titles collapse into their package name; the
//     package name is cut at the first colon because colons break file names.
//   - Special-case vendors are excluded from matching entirely; their usage
//     is processed out of band.
//
// =============================================================================

package subscriptions

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"counter-usage/internal/config"
	"counter-usage/internal/types"
)

// =============================================================================
// COLUMN LAYOUT
// =============================================================================

// Fixed column positions in the subscription export. The file has no header
// row; these indices are part of the export contract.
const (
	colTitle   = 0
	colAccess  = 1
	colPackage = 3
	colISSN    = 11
	colVendor  = 12

	// minColumns is the minimum field count for a row to be usable.
	minColumns = 13
)

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table is the loaded subscription table plus the derived lookup mappings.
// It is built once at load time and read-only thereafter.
type Table struct {
	// Entries holds every loaded subscription entry, in file order, special
	// cases excluded. The classification pass iterates this.
	Entries []*types.SubscriptionEntry

	// NoISSN lists titles whose ISSN column is empty. These are flagged in
	// the no-ISSN diagnostic regardless of usage outcome.
	NoISSN []string

	// DuplicateISSNs lists ISSNs that appeared more than once. The first
	// entry wins; duplicates are reported by the validate command.
	DuplicateISSNs []string

	// SkippedSpecial counts rows dropped because their vendor is on the
	// special-case list.
	SkippedSpecial int

	byISSN  map[string]*types.SubscriptionEntry
	byTitle map[string]*types.SubscriptionEntry
}

func newTable() *Table {
	return &Table{
		byISSN:  make(map[string]*types.SubscriptionEntry),
		byTitle: make(map[string]*types.SubscriptionEntry),
	}
}

// LookupISSN returns the matchable entry for an ISSN.
func (t *Table) LookupISSN(issn string) (*types.SubscriptionEntry, bool) {
	entry, ok := t.byISSN[types.NormalizeISSN(issn)]
	return entry, ok
}

// LookupTitle returns the matchable entry for a title, using normalized
// comparison (case and whitespace insensitive).
func (t *Table) LookupTitle(title string) (*types.SubscriptionEntry, bool) {
	entry, ok := t.byTitle[types.NormalizeTitle(title)]
	return entry, ok
}

// MatchableISSNs reports how many entries are reachable by ISSN lookup.
func (t *Table) MatchableISSNs() int {
	return len(t.byISSN)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the subscription table named by the configuration and builds
// the lookup mappings. Manually configured extra subscriptions are merged in
// after the file is read; on ISSN collision the config entry wins.
//
// Any structural problem with the table is fatal: a missing file, an
// unreadable spreadsheet, or a row with fewer than 13 fields.
func Load(cfg *config.MainConfig) (*Table, error) {
	path := cfg.SubscriptionPath()

	var rows [][]string
	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSX(path)
	} else {
		rows, err = readTSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription table %s: %w", path, err)
	}

	table, err := build(rows, cfg.SpecialCaseSet())
	if err != nil {
		return nil, fmt.Errorf("subscription table %s: %w", path, err)
	}

	mergeExtras(table, cfg.ExtraSubscriptions)

	return table, nil
}

// readTSV reads the tab-delimited export. The reader configuration mirrors
// what the vendor actually ships: no quoting discipline, occasional ragged
// rows (caught later by the column check).
func readTSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}

// readXLSX reads the first sheet of a spreadsheet-format export. The column
// layout is identical to the TSV form.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	return f.GetRows(sheetName)
}

// build constructs the Table from raw rows.
func build(rows [][]string, special types.VendorSet) (*Table, error) {
	table := newTable()

	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		if len(row) < minColumns {
			return nil, fmt.Errorf("row %d has %d fields, need at least %d", i+1, len(row), minColumns)
		}

		entry := parseRow(row)
		if special.Contains(entry.Vendor) {
			table.SkippedSpecial++
			continue
		}

		table.add(entry)
	}

	return table, nil
}

// parseRow converts a raw row into a SubscriptionEntry.
func parseRow(row []string) *types.SubscriptionEntry {
	title := strings.TrimSpace(row[colTitle])
	return &types.SubscriptionEntry{
		Title:   title,
		ISSN:    types.NormalizeISSN(row[colISSN]),
		Package: collapsePackage(strings.TrimSpace(row[colPackage]), title),
		Vendor:  strings.TrimSpace(row[colVendor]),
		Access:  strings.TrimSpace(row[colAccess]),
	}
}

// collapsePackage picks the payment-unit name for a title: the package
// column when present, otherwise the title itself, cut at the first colon.
func collapsePackage(pkg, title string) string {
	if pkg == "" {
		pkg = title
	}
	return strings.TrimSpace(strings.SplitN(pkg, ":", 2)[0])
}

// add registers an entry in the table and its lookup mappings.
func (t *Table) add(entry *types.SubscriptionEntry) {
	t.Entries = append(t.Entries, entry)

	if entry.ISSN == "" {
		t.NoISSN = append(t.NoISSN, entry.Title)
	}

	// Password/print-only entries stay out of the lookups entirely; a match
	// against them would be a coincidence, not usage we paid for online.
	if !entry.OnlineAccess() {
		return
	}

	if hasRealISSN(entry.ISSN) {
		if _, dup := t.byISSN[entry.ISSN]; dup {
			t.DuplicateISSNs = append(t.DuplicateISSNs, entry.ISSN)
		} else {
			t.byISSN[entry.ISSN] = entry
		}
	}

	if key := types.NormalizeTitle(entry.Title); key != "" {
		if _, exists := t.byTitle[key]; !exists {
			t.byTitle[key] = entry
		}
	}
}

// hasRealISSN reports whether the value identifies an actual publication.
func hasRealISSN(issn string) bool {
	return issn != "" && issn != types.PackageMarkerISSN
}

// =============================================================================
// MANUAL ADDITIONS
// =============================================================================

// mergeExtras folds the configured extra subscriptions into the table.
// Keys are sorted so table construction stays deterministic.
func mergeExtras(table *Table, extras map[string]config.ExtraSubscription) {
	issns := make([]string, 0, len(extras))
	for issn := range extras {
		issns = append(issns, issn)
	}
	sort.Strings(issns)

	for _, issn := range issns {
		extra := extras[issn]
		entry := &types.SubscriptionEntry{
			Title:   strings.TrimSpace(extra.Title),
			ISSN:    types.NormalizeISSN(issn),
			Package: collapsePackage(strings.TrimSpace(extra.Package), strings.TrimSpace(extra.Title)),
			Vendor:  strings.TrimSpace(extra.Vendor),
			Access:  "Online",
		}

		if existing, ok := table.byISSN[entry.ISSN]; ok {
			// Config wins: rewrite the existing entry in place so Entries
			// and the ISSN lookup stay consistent, then re-key the title
			// lookup if the title changed.
			oldKey := types.NormalizeTitle(existing.Title)
			*existing = *entry
			newKey := types.NormalizeTitle(entry.Title)
			if newKey != oldKey {
				if table.byTitle[oldKey] == existing {
					delete(table.byTitle, oldKey)
				}
				if _, exists := table.byTitle[newKey]; !exists {
					table.byTitle[newKey] = existing
				}
			}
			continue
		}

		table.add(entry)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
