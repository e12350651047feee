// =============================================================================
// COUNTER Usage Converter - Aggregator Module
// =============================================================================
//
// This module is the join-and-sum core of the pipeline. It consumes the
// subscription table and the stream of usage records, and produces:
//   - one PackageTotal per subscribed package (zero-filled over the
//     configured coverage window)
//   - the classification of subscriptions that never matched any usage
//   - processing statistics for the end-of-run summary
//
// MATCHING:
//   A usage record resolves to a subscription entry by ISSN first; the
//   normalized title is only consulted when the record carries no ISSN or
//   the ISSN is unknown. ISSN-over-title is the deterministic tie-break when
//   the two keys would disagree. Records that match nothing are usage for
//   titles we don't subscribe to; they are counted and dropped.
//
// CLASSIFICATION:
//   After all reports are processed, every subscription entry with zero
//   matched records is classified:
//     - vendor in the NoCounterSet -> no-report/password-only
//     - otherwise                  -> automated zero usage
//   Entries without an ISSN are flagged separately regardless of usage.
//
// =============================================================================

package aggregator

import (
	"sort"

	"counter-usage/internal/subscriptions"
	"counter-usage/internal/types"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// ProcessingStats counts what happened during a run.
type ProcessingStats struct {
	// ReportsProcessed is the number of usage report files consumed.
	ReportsProcessed int

	// ReportsSkipped is the number of files dropped for structural problems
	// (unusable header, unreadable file).
	ReportsSkipped int

	// RecordsRead is the total number of usage records consumed.
	RecordsRead int

	// RecordsMatched is how many of those resolved to a subscription.
	RecordsMatched int

	// RecordsUnmatched is usage for titles not currently subscribed.
	RecordsUnmatched int

	// RowsSkipped is the total of per-file skipped data rows.
	RowsSkipped int
}

// LowUsagePackage identifies a package whose whole-window total fell below
// the configured threshold.
type LowUsagePackage struct {
	Package string
	Total   int
}

// Classification is the diagnostic output of the zero-usage pass.
type Classification struct {
	// ZeroUsage are subscriptions with no matched usage whose vendor should
	// have supplied a report. These warrant a manual look: either the
	// title genuinely went unused or an ISSN/title mismatch hid its usage.
	ZeroUsage []*types.SubscriptionEntry

	// NoReport are subscriptions with no matched usage whose vendor is on
	// the NoCounterSet: no report exists to match against, so zero matches
	// is expected, not suspicious.
	NoReport []*types.SubscriptionEntry

	// NoISSN are subscribed titles lacking an ISSN, flagged regardless of
	// usage outcome.
	NoISSN []string

	// LowUsage lists packages under the low-usage threshold. Empty when the
	// threshold is disabled.
	LowUsage []LowUsagePackage
}

// Result is everything the writer needs, finalized and deterministically
// ordered.
type Result struct {
	// Totals holds one entry per subscribed package, sorted by package name.
	Totals []*types.PackageTotal

	Classification Classification
	Stats          ProcessingStats
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator accumulates usage records against a subscription table.
type Aggregator struct {
	table     *subscriptions.Table
	noCounter types.VendorSet

	totals  map[string]*types.PackageTotal
	matched map[*types.SubscriptionEntry]bool

	stats ProcessingStats

	// Logf receives per-record diagnostics (unmatched titles). Defaults to
	// a no-op; the process command points it at stdout under --verbose.
	Logf func(format string, args ...any)
}

// New creates an aggregator over a loaded subscription table.
func New(table *subscriptions.Table, noCounter types.VendorSet) *Aggregator {
	return &Aggregator{
		table:     table,
		noCounter: noCounter,
		totals:    make(map[string]*types.PackageTotal),
		matched:   make(map[*types.SubscriptionEntry]bool),
		Logf:      func(string, ...any) {},
	}
}

// Resolve maps a usage record to its subscription entry. ISSN match takes
// priority; title match is the fallback.
func (a *Aggregator) Resolve(rec types.UsageRecord) (*types.SubscriptionEntry, bool) {
	if rec.ISSN != "" {
		if entry, ok := a.table.LookupISSN(rec.ISSN); ok {
			return entry, true
		}
	}
	if rec.Title != "" {
		if entry, ok := a.table.LookupTitle(rec.Title); ok {
			return entry, true
		}
	}
	return nil, false
}

// Add consumes one usage record, accumulating it into its package total.
// Unmatched records are counted and dropped.
func (a *Aggregator) Add(rec types.UsageRecord) {
	a.stats.RecordsRead++

	entry, ok := a.Resolve(rec)
	if !ok {
		a.stats.RecordsUnmatched++
		a.Logf("  unmatched: %q (ISSN %q) in %s", rec.Title, rec.ISSN, rec.SourceFile)
		return
	}

	a.stats.RecordsMatched++
	a.matched[entry] = true
	a.packageTotal(entry.Package).Add(rec.Month, rec.Count)
}

// AddReportStats folds one report file's bookkeeping into the run stats.
func (a *Aggregator) AddReportStats(skippedRows int) {
	a.stats.ReportsProcessed++
	a.stats.RowsSkipped += skippedRows
}

// SkipReport records a report file dropped for structural problems.
func (a *Aggregator) SkipReport() {
	a.stats.ReportsSkipped++
}

func (a *Aggregator) packageTotal(pkg string) *types.PackageTotal {
	total, ok := a.totals[pkg]
	if !ok {
		total = types.NewPackageTotal(pkg)
		a.totals[pkg] = total
	}
	return total
}

// =============================================================================
// FINALIZATION
// =============================================================================

// Finalize closes the accumulation phase and produces the Result.
//
// Every subscribed package gets a total, even when no usage matched it, and
// every total is zero-filled across the coverage months: the import platform
// needs a complete series per package, and COUNTER reports routinely omit
// zero-use months despite the standard. lowThreshold <= 0 disables the
// low-usage pass.
func (a *Aggregator) Finalize(months []types.Month, lowThreshold int) *Result {
	// Packages with no matched usage still need (all-zero) output files.
	for _, entry := range a.table.Entries {
		a.packageTotal(entry.Package)
	}

	for _, total := range a.totals {
		for _, m := range months {
			if _, ok := total.Months[m]; !ok {
				total.Months[m] = 0
			}
		}
	}

	result := &Result{Stats: a.stats}

	packages := make([]string, 0, len(a.totals))
	for pkg := range a.totals {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	for _, pkg := range packages {
		result.Totals = append(result.Totals, a.totals[pkg])
	}

	result.Classification = a.classify(lowThreshold)

	return result
}

// classify runs the zero-usage pass over every subscription entry.
func (a *Aggregator) classify(lowThreshold int) Classification {
	cls := Classification{}

	for _, entry := range a.table.Entries {
		if !a.matched[entry] {
			if a.noCounter.Contains(entry.Vendor) {
				cls.NoReport = append(cls.NoReport, entry)
			} else {
				cls.ZeroUsage = append(cls.ZeroUsage, entry)
			}
		}
	}

	cls.NoISSN = append(cls.NoISSN, a.table.NoISSN...)

	if lowThreshold > 0 {
		for _, total := range a.totals {
			if sum := total.Total(); sum < lowThreshold {
				cls.LowUsage = append(cls.LowUsage, LowUsagePackage{
					Package: total.Package,
					Total:   sum,
				})
			}
		}
		sort.Slice(cls.LowUsage, func(i, j int) bool {
			return cls.LowUsage[i].Package < cls.LowUsage[j].Package
		})
	}

	return cls
}
